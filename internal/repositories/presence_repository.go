package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"sns-chat-service/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// PresenceRepository persists the online flag and last-seen timestamp.
type PresenceRepository interface {
	SetOnline(ctx context.Context, userID string) error
	SetOffline(ctx context.Context, userID string, lastSeen time.Time) error
	GetStatus(ctx context.Context, userID string) (models.UserStatus, error)
}

// PresenceRepo is a sqlx implementation of PresenceRepository.
type PresenceRepo struct {
	db *sqlx.DB
}

// NewPresenceRepo constructs a PresenceRepo.
func NewPresenceRepo(db *sqlx.DB) *PresenceRepo {
	return &PresenceRepo{db: db}
}

// SetOnline flips the user online. last_seen is left untouched.
func (r *PresenceRepo) SetOnline(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET is_online = TRUE WHERE user_id=$1`, userID)
	return err
}

// SetOffline flips the user offline and stamps last_seen.
func (r *PresenceRepo) SetOffline(ctx context.Context, userID string, lastSeen time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET is_online = FALSE, last_seen=$2 WHERE user_id=$1`, userID, lastSeen)
	return err
}

// GetStatus reads the user's presence.
func (r *PresenceRepo) GetStatus(ctx context.Context, userID string) (models.UserStatus, error) {
	var status models.UserStatus
	err := r.db.GetContext(ctx, &status, `SELECT is_online, last_seen FROM users WHERE user_id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.UserStatus{}, ErrUserNotFound
	}
	return status, err
}
