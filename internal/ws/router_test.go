package ws

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"sns-chat-service/internal/mocks"
	"sns-chat-service/internal/models"
)

func TestRouterMessageSentRecomputesUnreadForReceiver(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	router := NewRouter(NewHub(), rooms)

	rooms.On("UnreadRoomCount", mock.Anything, "bob").Return(2, nil).Once()

	router.MessageSent(context.Background(), models.Message{
		MessageID:  7,
		RoomID:     5,
		SenderID:   "alice",
		ReceiverID: "bob",
		Content:    "hi",
	})

	rooms.AssertExpectations(t)
}

func TestRouterMessageSentSurvivesCountFailure(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	router := NewRouter(NewHub(), rooms)

	rooms.On("UnreadRoomCount", mock.Anything, "bob").Return(0, assert.AnError).Once()

	// Delivery is fire-and-forget; a failed count read must not panic or
	// block, the receiver just gets the signal without a payload.
	router.MessageSent(context.Background(), models.Message{RoomID: 5, SenderID: "alice", ReceiverID: "bob", Content: "hi"})

	rooms.AssertExpectations(t)
}

func TestRouterMessagesReadTargetsSenderOnly(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	router := NewRouter(NewHub(), rooms)

	// No connections registered: the emit is silently dropped and no
	// repository call is made.
	router.MessagesRead(5, "alice")

	rooms.AssertExpectations(t)
}
