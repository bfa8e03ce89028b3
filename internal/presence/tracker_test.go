package presence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"sns-chat-service/internal/mocks"
	"sns-chat-service/internal/models"
)

type recordingBroadcaster struct {
	events []models.OutboundEvent
}

func (b *recordingBroadcaster) BroadcastAll(event models.OutboundEvent) {
	b.events = append(b.events, event)
}

func TestMarkOnlineBroadcastsStatusChange(t *testing.T) {
	repo := new(mocks.PresenceRepositoryMock)
	broadcaster := &recordingBroadcaster{}
	tracker := NewTracker(repo, broadcaster)

	repo.On("SetOnline", mock.Anything, "alice").Return(nil).Once()

	tracker.MarkOnline(context.Background(), "alice")

	require.Len(t, broadcaster.events, 1)
	assert.Equal(t, models.EventUserStatusChanged, broadcaster.events[0].Event)
	payload := broadcaster.events[0].Data.(models.StatusChangedPayload)
	assert.Equal(t, "alice", payload.UserID)
	assert.True(t, payload.IsOnline)
	assert.Nil(t, payload.LastSeen)
	repo.AssertExpectations(t)
}

func TestMarkOfflineStampsLastSeen(t *testing.T) {
	repo := new(mocks.PresenceRepositoryMock)
	broadcaster := &recordingBroadcaster{}
	tracker := NewTracker(repo, broadcaster)

	at := time.Now()
	repo.On("SetOffline", mock.Anything, "alice", at).Return(nil).Once()

	tracker.MarkOffline(context.Background(), "alice", at)

	require.Len(t, broadcaster.events, 1)
	payload := broadcaster.events[0].Data.(models.StatusChangedPayload)
	assert.Equal(t, "alice", payload.UserID)
	assert.False(t, payload.IsOnline)
	require.NotNil(t, payload.LastSeen)
	assert.Equal(t, at, *payload.LastSeen)
	repo.AssertExpectations(t)
}

func TestStoreFailureIsSwallowedAndStatusStillBroadcast(t *testing.T) {
	repo := new(mocks.PresenceRepositoryMock)
	broadcaster := &recordingBroadcaster{}
	tracker := NewTracker(repo, broadcaster)

	repo.On("SetOnline", mock.Anything, "alice").Return(assert.AnError).Once()
	repo.On("SetOffline", mock.Anything, "alice", mock.AnythingOfType("time.Time")).Return(assert.AnError).Once()

	tracker.MarkOnline(context.Background(), "alice")
	tracker.MarkOffline(context.Background(), "alice", time.Now())

	assert.Len(t, broadcaster.events, 2)
	repo.AssertExpectations(t)
}
