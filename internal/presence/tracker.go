package presence

import (
	"context"
	"log"
	"time"

	"sns-chat-service/internal/models"
	"sns-chat-service/internal/repositories"
)

// Broadcaster pushes an event to every connected client.
type Broadcaster interface {
	BroadcastAll(event models.OutboundEvent)
}

// Tracker owns the online/offline transitions. Persistence is best-effort:
// a failed store write is logged and the status broadcast still goes out, so
// a flaky database never blocks the connection lifecycle.
type Tracker struct {
	repo        repositories.PresenceRepository
	broadcaster Broadcaster
}

// NewTracker constructs a Tracker.
func NewTracker(repo repositories.PresenceRepository, broadcaster Broadcaster) *Tracker {
	return &Tracker{repo: repo, broadcaster: broadcaster}
}

// MarkOnline flips the user online and broadcasts the change. last_seen is
// left untouched.
func (t *Tracker) MarkOnline(ctx context.Context, userID string) {
	if err := t.repo.SetOnline(ctx, userID); err != nil {
		log.Printf("presence: set online %s: %v", userID, err)
	}
	t.broadcaster.BroadcastAll(models.OutboundEvent{
		Event: models.EventUserStatusChanged,
		Data:  models.StatusChangedPayload{UserID: userID, IsOnline: true},
	})
}

// MarkOffline flips the user offline, stamps last_seen and broadcasts the
// change.
func (t *Tracker) MarkOffline(ctx context.Context, userID string, at time.Time) {
	if err := t.repo.SetOffline(ctx, userID, at); err != nil {
		log.Printf("presence: set offline %s: %v", userID, err)
	}
	t.broadcaster.BroadcastAll(models.OutboundEvent{
		Event: models.EventUserStatusChanged,
		Data:  models.StatusChangedPayload{UserID: userID, IsOnline: false, LastSeen: &at},
	})
}
