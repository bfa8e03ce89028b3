package models

import "time"

// Room is a private conversation between exactly two users. The pair is
// stored canonicalized (User1ID sorts before User2ID) so that a single row
// exists per unordered pair no matter which side initiated the chat.
type Room struct {
	RoomID             int        `db:"room_id" json:"room_id"`
	User1ID            string     `db:"user1_id" json:"user1_id"`
	User2ID            string     `db:"user2_id" json:"user2_id"`
	LastMessageContent *string    `db:"last_message_content" json:"last_message_content,omitempty"`
	LastMessageAt      time.Time  `db:"last_message_at" json:"last_message_at"`
	User1LastReadAt    *time.Time `db:"user1_last_read_at" json:"-"`
	User2LastReadAt    *time.Time `db:"user2_last_read_at" json:"-"`
}

// OtherUserID returns the counterpart of userID in the room.
func (r Room) OtherUserID(userID string) string {
	if r.User1ID == userID {
		return r.User2ID
	}
	return r.User1ID
}

// RoomSummary is the chat-list view of a room for one user: the counterpart's
// identity and presence plus an unread count computed from the viewer's
// read watermark.
type RoomSummary struct {
	RoomID              int        `db:"room_id" json:"room_id"`
	LastMessageContent  *string    `db:"last_message_content" json:"last_message_content,omitempty"`
	LastMessageAt       time.Time  `db:"last_message_at" json:"last_message_at"`
	OtherUserID         string     `db:"other_user_id" json:"other_user_id"`
	OtherUserNickname   *string    `db:"other_user_nickname" json:"other_user_nickname,omitempty"`
	OtherUserProfileURL *string    `db:"other_user_profile_url" json:"other_user_profile_url,omitempty"`
	OtherUserIsOnline   bool       `db:"other_user_is_online" json:"other_user_is_online"`
	OtherUserLastSeen   *time.Time `db:"other_user_last_seen" json:"other_user_last_seen,omitempty"`
	UnreadCount         int        `db:"unread_count" json:"unread_count"`
}
