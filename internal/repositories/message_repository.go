package repositories

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"sns-chat-service/internal/models"
)

const messageColumns = `message_id, room_id, sender_id, receiver_id, content, is_read, send_at`

// MessageRepository defines interactions for chat messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, roomID int, senderID, receiverID, content string) (models.Message, error)
	ListRoomMessages(ctx context.Context, roomID int) ([]models.Message, error)
	UnreadCount(ctx context.Context, roomID int, viewerID string) (int, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage appends a message and refreshes the room's last-message
// summary in one transaction. Both rows carry the same NOW() so the chat
// list ordering matches the message timestamp.
func (r *MessageRepo) CreateMessage(ctx context.Context, roomID int, senderID, receiverID, content string) (models.Message, error) {
	if roomID == 0 || senderID == "" || receiverID == "" || content == "" {
		return models.Message{}, errors.New("room, sender, receiver and content are required")
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE chat_rooms SET last_message_content=$1, last_message_at=NOW() WHERE room_id=$2`, content, roomID)
	if err != nil {
		return models.Message{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return models.Message{}, err
	}
	if affected == 0 {
		return models.Message{}, ErrRoomNotFound
	}

	var msg models.Message
	err = tx.QueryRowxContext(ctx, `INSERT INTO messages (room_id, sender_id, receiver_id, content)
        VALUES ($1, $2, $3, $4) RETURNING `+messageColumns, roomID, senderID, receiverID, content).
		StructScan(&msg)
	if err != nil {
		return models.Message{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// ListRoomMessages returns the room's messages oldest first.
func (r *MessageRepo) ListRoomMessages(ctx context.Context, roomID int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM messages WHERE room_id=$1 ORDER BY send_at ASC`, roomID)
	return msgs, err
}

// UnreadCount counts messages addressed to the viewer that are newer than
// the viewer's watermark in the room. A NULL watermark counts everything.
func (r *MessageRepo) UnreadCount(ctx context.Context, roomID int, viewerID string) (int, error) {
	query := `SELECT COUNT(*) FROM messages m
        JOIN chat_rooms cr ON cr.room_id = m.room_id
        WHERE m.room_id=$1
          AND m.receiver_id=$2
          AND m.send_at > COALESCE(CASE WHEN cr.user1_id = $2 THEN cr.user1_last_read_at ELSE cr.user2_last_read_at END, 'epoch'::timestamptz)`
	var count int
	err := r.db.GetContext(ctx, &count, query, roomID, viewerID)
	return count, err
}
