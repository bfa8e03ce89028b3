package models

import (
	"encoding/json"
	"errors"
	"time"
)

// Inbound websocket event names.
const (
	EventJoin           = "join"
	EventPrivateMessage = "private_message"
	EventMessageRead    = "message_read"
)

// Outbound websocket event names.
const (
	EventNewMessage        = "new_message"
	EventUpdateChatList    = "update_chat_list"
	EventUpdateUnreadCount = "update_unread_count"
	EventMessagesWereRead  = "messages_were_read"
	EventUserStatusChanged = "user_status_changed"
)

// InboundEvent is the tagged envelope for client-to-server frames. Data is
// decoded into the payload matching Event and validated at the boundary;
// malformed frames are rejected instead of being branched on permissively.
type InboundEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// OutboundEvent is the envelope for server-to-client frames.
type OutboundEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// JoinPayload binds a connection to a user.
type JoinPayload struct {
	UserID string `json:"user_id"`
}

func (p JoinPayload) Validate() error {
	if p.UserID == "" {
		return errors.New("user_id is required")
	}
	return nil
}

// PrivateMessagePayload carries an inbound 1:1 message.
type PrivateMessagePayload struct {
	RoomID     int    `json:"room_id"`
	SenderID   string `json:"sender_id"`
	ReceiverID string `json:"receiver_id"`
	Content    string `json:"content"`
}

func (p PrivateMessagePayload) Validate() error {
	switch {
	case p.RoomID == 0:
		return errors.New("room_id is required")
	case p.SenderID == "":
		return errors.New("sender_id is required")
	case p.ReceiverID == "":
		return errors.New("receiver_id is required")
	case p.Content == "":
		return errors.New("content is required")
	}
	return nil
}

// MessageReadPayload reports that the reader has caught up in a room.
type MessageReadPayload struct {
	RoomID   int    `json:"room_id"`
	ReaderID string `json:"reader_id"`
	SenderID string `json:"sender_id"`
}

func (p MessageReadPayload) Validate() error {
	switch {
	case p.RoomID == 0:
		return errors.New("room_id is required")
	case p.ReaderID == "":
		return errors.New("reader_id is required")
	case p.SenderID == "":
		return errors.New("sender_id is required")
	}
	return nil
}

// RoomRef points a client at a room that needs refreshing.
type RoomRef struct {
	RoomID int `json:"room_id"`
}

// UnreadRoomCountPayload carries the receiver's recomputed unread room count.
type UnreadRoomCountPayload struct {
	UnreadRoomCount int `json:"unread_room_count"`
}

// StatusChangedPayload is broadcast to every connected client when a user's
// presence flips.
type StatusChangedPayload struct {
	UserID   string     `json:"user_id"`
	IsOnline bool       `json:"is_online"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
}
