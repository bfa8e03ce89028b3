package models

import "time"

// UserStatus is the presence view of a user. LastSeen is nil until the user
// disconnects for the first time.
type UserStatus struct {
	IsOnline bool       `db:"is_online" json:"is_online"`
	LastSeen *time.Time `db:"last_seen" json:"last_seen,omitempty"`
}
