package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"

	"sns-chat-service/internal/mocks"
)

func TestEmitPublishesEnvelope(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := NewAuditEmitter(publisher, "audit.chat", "sns-chat-service", "test")

	userID := "alice"
	publisher.On("Publish", mock.Anything, "audit.chat", mock.MatchedBy(func(event any) bool {
		envelope, ok := event.(AuditEnvelope)
		return ok &&
			envelope.EventType == "audit_log" &&
			envelope.Service == "sns-chat-service" &&
			envelope.Payload.Level == "INFO" &&
			envelope.Payload.Text == "chat room ready" &&
			envelope.UserID != nil && *envelope.UserID == "alice"
	})).Return(nil).Once()

	emitter.Emit(context.Background(), "INFO", "chat room ready", "req-1", &userID)

	publisher.AssertExpectations(t)
}

func TestNilEmitterIsSafe(t *testing.T) {
	var emitter *AuditEmitter
	emitter.Emit(context.Background(), "INFO", "ignored", "req-1", nil)
}
