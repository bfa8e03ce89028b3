package models

import "time"

// Message is an append-only chat message. SendAt is stamped by the server at
// insert time. IsRead is a denormalized cache of the watermark comparison and
// is only rewritten when the receiver's watermark advances; the watermark is
// the canonical unread source.
type Message struct {
	MessageID  int       `db:"message_id" json:"message_id"`
	RoomID     int       `db:"room_id" json:"room_id"`
	SenderID   string    `db:"sender_id" json:"sender_id"`
	ReceiverID string    `db:"receiver_id" json:"receiver_id"`
	Content    string    `db:"content" json:"content"`
	IsRead     bool      `db:"is_read" json:"is_read"`
	SendAt     time.Time `db:"send_at" json:"send_at"`
}
