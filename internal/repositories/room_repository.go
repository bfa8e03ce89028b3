package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"sns-chat-service/internal/models"
)

var ErrRoomNotFound = errors.New("room not found")

const roomColumns = `room_id, user1_id, user2_id, last_message_content, last_message_at, user1_last_read_at, user2_last_read_at`

// RoomRepository abstracts chat room persistence, including the per-side
// read watermarks and the unread accounting derived from them.
type RoomRepository interface {
	CreateOrGetRoom(ctx context.Context, userID, otherID string) (models.Room, error)
	GetRoom(ctx context.Context, roomID int) (models.Room, error)
	AdvanceWatermark(ctx context.Context, roomID int, readerID string, at time.Time) error
	ListRoomsForUser(ctx context.Context, userID string) ([]models.RoomSummary, error)
	UnreadRoomCount(ctx context.Context, userID string) (int, error)
}

// RoomRepo is a sqlx implementation of RoomRepository.
type RoomRepo struct {
	db *sqlx.DB
}

// NewRoomRepo constructs a RoomRepo.
func NewRoomRepo(db *sqlx.DB) *RoomRepo {
	return &RoomRepo{db: db}
}

// canonicalPair orders two user ids so the lexicographically smaller one is
// side 1. Both sides of a pair always map to the same (user1, user2).
func canonicalPair(a, b string) (string, string) {
	if a < b {
		return a, b
	}
	return b, a
}

// CreateOrGetRoom returns the room for the unordered pair, creating it on
// first contact. The insert races against the unique constraint rather than
// check-then-insert, so two users messaging each other in the same instant
// still end up with a single room.
func (r *RoomRepo) CreateOrGetRoom(ctx context.Context, userID, otherID string) (models.Room, error) {
	if userID == "" || otherID == "" {
		return models.Room{}, errors.New("both user ids are required")
	}
	if userID == otherID {
		return models.Room{}, errors.New("cannot create room with self")
	}
	user1, user2 := canonicalPair(userID, otherID)

	var room models.Room
	insert := `INSERT INTO chat_rooms (user1_id, user2_id, last_message_at) VALUES ($1, $2, NOW())
        ON CONFLICT (user1_id, user2_id) DO NOTHING
        RETURNING ` + roomColumns
	err := r.db.GetContext(ctx, &room, insert, user1, user2)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Room{}, err
	}

	// The conflict path: another insert won, fetch the surviving row.
	err = r.db.GetContext(ctx, &room, `SELECT `+roomColumns+` FROM chat_rooms WHERE user1_id=$1 AND user2_id=$2`, user1, user2)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Room{}, ErrRoomNotFound
	}
	return room, err
}

// GetRoom fetches a room by id.
func (r *RoomRepo) GetRoom(ctx context.Context, roomID int) (models.Room, error) {
	var room models.Room
	err := r.db.GetContext(ctx, &room, `SELECT `+roomColumns+` FROM chat_rooms WHERE room_id=$1`, roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Room{}, ErrRoomNotFound
	}
	return room, err
}

// AdvanceWatermark moves the reader's side watermark to max(current, at).
// The per-message is_read flag is recomputed from the new watermark in the
// same transaction; nothing else ever writes it.
func (r *RoomRepo) AdvanceWatermark(ctx context.Context, roomID int, readerID string, at time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var user1ID string
	if err := tx.GetContext(ctx, &user1ID, `SELECT user1_id FROM chat_rooms WHERE room_id=$1`, roomID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrRoomNotFound
		}
		return err
	}

	column := "user2_last_read_at"
	if user1ID == readerID {
		column = "user1_last_read_at"
	}
	update := fmt.Sprintf(`UPDATE chat_rooms SET %s = GREATEST(COALESCE(%s, 'epoch'::timestamptz), $1) WHERE room_id=$2`, column, column)
	if _, err := tx.ExecContext(ctx, update, at, roomID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE messages SET is_read = TRUE
        WHERE room_id=$1 AND receiver_id=$2 AND is_read = FALSE AND send_at <= $3`, roomID, readerID, at); err != nil {
		return err
	}

	return tx.Commit()
}

// ListRoomsForUser returns the user's rooms newest-activity first, each with
// the counterpart's profile and presence and the unread count derived from
// the viewer's watermark.
func (r *RoomRepo) ListRoomsForUser(ctx context.Context, userID string) ([]models.RoomSummary, error) {
	query := `SELECT
            cr.room_id,
            cr.last_message_content,
            cr.last_message_at,
            CASE WHEN cr.user1_id = $1 THEN u2.user_id ELSE u1.user_id END AS other_user_id,
            CASE WHEN cr.user1_id = $1 THEN u2.nickname ELSE u1.nickname END AS other_user_nickname,
            CASE WHEN cr.user1_id = $1 THEN u2.profile_image_url ELSE u1.profile_image_url END AS other_user_profile_url,
            CASE WHEN cr.user1_id = $1 THEN u2.is_online ELSE u1.is_online END AS other_user_is_online,
            CASE WHEN cr.user1_id = $1 THEN u2.last_seen ELSE u1.last_seen END AS other_user_last_seen,
            (
                SELECT COUNT(*) FROM messages m
                WHERE m.room_id = cr.room_id
                  AND m.receiver_id = $1
                  AND m.send_at > COALESCE(CASE WHEN cr.user1_id = $1 THEN cr.user1_last_read_at ELSE cr.user2_last_read_at END, 'epoch'::timestamptz)
            ) AS unread_count
        FROM chat_rooms cr
        JOIN users u1 ON cr.user1_id = u1.user_id
        JOIN users u2 ON cr.user2_id = u2.user_id
        WHERE cr.user1_id = $1 OR cr.user2_id = $1
        ORDER BY cr.last_message_at DESC`
	var rooms []models.RoomSummary
	err := r.db.SelectContext(ctx, &rooms, query, userID)
	return rooms, err
}

// UnreadRoomCount counts the user's rooms holding at least one unread message.
func (r *RoomRepo) UnreadRoomCount(ctx context.Context, userID string) (int, error) {
	query := `SELECT COUNT(*) FROM (
            SELECT cr.room_id,
                (
                    SELECT COUNT(*) FROM messages m
                    WHERE m.room_id = cr.room_id
                      AND m.receiver_id = $1
                      AND m.send_at > COALESCE(CASE WHEN cr.user1_id = $1 THEN cr.user1_last_read_at ELSE cr.user2_last_read_at END, 'epoch'::timestamptz)
                ) AS unread_messages
            FROM chat_rooms cr
            WHERE cr.user1_id = $1 OR cr.user2_id = $1
        ) t WHERE t.unread_messages > 0`
	var count int
	err := r.db.GetContext(ctx, &count, query, userID)
	return count, err
}
