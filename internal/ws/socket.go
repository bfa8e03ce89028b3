package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"sns-chat-service/internal/models"
	"sns-chat-service/internal/observability"
	"sns-chat-service/internal/presence"
	"sns-chat-service/internal/repositories"
)

// SocketHandler owns the websocket lifecycle: upgrade, inbound event
// dispatch, and the unbind-plus-offline transition on close.
type SocketHandler struct {
	hub      *Hub
	router   *Router
	tracker  *presence.Tracker
	messages repositories.MessageRepository
	rooms    repositories.RoomRepository
}

// NewSocketHandler constructs a SocketHandler.
func NewSocketHandler(hub *Hub, router *Router, tracker *presence.Tracker, rooms repositories.RoomRepository, messages repositories.MessageRepository) *SocketHandler {
	return &SocketHandler{hub: hub, router: router, tracker: tracker, rooms: rooms, messages: messages}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection and starts the read loop.
func (h *SocketHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("sns-chat-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	traceID := span.SpanContext().TraceID().String()
	requestID := observability.RequestIDFromRequest(c.Request)
	info := ConnInfo{
		ConnID:      newConnID(),
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   requestID,
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}

	observability.IncWSActive("chat")
	observability.IncWSEvent("chat", "ws_connect")
	_ = observability.PublishEvent(ctx, "ws_events.chats", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_connect",
		Payload:   lifecyclePayload("ws_connect", info, 0, ""),
	}, observability.BuildHeaders(requestID, traceID))

	go h.readLoop(conn, info)
}

// readLoop dispatches inbound frames until the connection closes. Repository
// work and lifecycle publishes run on a background context: the request
// context dies with the handshake, but in-flight writes must not.
func (h *SocketHandler) readLoop(conn *websocket.Conn, info ConnInfo) {
	var closeReason string
	opCtx := context.Background()
	defer func() {
		h.teardown(opCtx, conn, info, closeReason)
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("chat", "ws_error")
				_ = observability.PublishEvent(opCtx, "ws_events.chats", observability.EventEnvelope{
					EventType: "ws_events",
					EventName: "ws_error",
					Payload:   lifecyclePayload("ws_error", info, time.Since(info.ConnectedAt).Milliseconds(), closeReason),
				}, observability.BuildHeaders(info.RequestID, info.TraceID))
			}
			return
		}

		var event models.InboundEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			log.Printf("websocket: malformed frame from conn %s: %v", info.ConnID, err)
			observability.IncWSEvent("chat", "invalid_frame")
			continue
		}

		switch event.Event {
		case models.EventJoin:
			h.handleJoin(opCtx, conn, &info, event.Data)
		case models.EventPrivateMessage:
			h.handlePrivateMessage(opCtx, event.Data)
		case models.EventMessageRead:
			h.handleMessageRead(opCtx, event.Data)
		default:
			log.Printf("websocket: unknown event %q from conn %s", event.Event, info.ConnID)
			observability.IncWSEvent("chat", "invalid_frame")
		}
	}
}

// handleJoin binds the connection to the user and marks them online.
func (h *SocketHandler) handleJoin(ctx context.Context, conn *websocket.Conn, info *ConnInfo, data json.RawMessage) {
	var payload models.JoinPayload
	if err := unmarshalPayload(data, &payload); err != nil {
		log.Printf("websocket: dropped join event: %v", err)
		observability.IncWSEvent("chat", "invalid_frame")
		return
	}

	info.UserID = payload.UserID
	h.hub.Register(payload.UserID, conn, *info)
	h.tracker.MarkOnline(ctx, payload.UserID)
}

// handlePrivateMessage persists the message and routes it to the receiver.
// There is no error channel back to the sender: a failed persist is logged
// and the event dropped, and the sending client reconciles via REST reads.
func (h *SocketHandler) handlePrivateMessage(ctx context.Context, data json.RawMessage) {
	var payload models.PrivateMessagePayload
	if err := unmarshalPayload(data, &payload); err != nil {
		log.Printf("websocket: dropped private_message event: %v", err)
		observability.IncWSEvent("chat", "invalid_frame")
		return
	}

	room, err := h.rooms.GetRoom(ctx, payload.RoomID)
	if err != nil {
		log.Printf("websocket: room %d lookup failed: %v", payload.RoomID, err)
		return
	}
	if !isParticipant(room, payload.SenderID) || room.OtherUserID(payload.SenderID) != payload.ReceiverID {
		log.Printf("websocket: dropped private_message: %s -> %s does not match room %d", payload.SenderID, payload.ReceiverID, payload.RoomID)
		observability.IncWSEvent("chat", "invalid_frame")
		return
	}

	msg, err := h.messages.CreateMessage(ctx, payload.RoomID, payload.SenderID, payload.ReceiverID, payload.Content)
	if err != nil {
		log.Printf("websocket: persist message in room %d failed: %v", payload.RoomID, err)
		return
	}
	h.router.MessageSent(ctx, msg)
}

// handleMessageRead advances the reader's watermark and tells the sender.
// A reader outside the room is dropped before the watermark moves: the
// watermark column is picked by participant side, so a stray reader_id would
// land on the counterpart's column and zero their unreads.
func (h *SocketHandler) handleMessageRead(ctx context.Context, data json.RawMessage) {
	var payload models.MessageReadPayload
	if err := unmarshalPayload(data, &payload); err != nil {
		log.Printf("websocket: dropped message_read event: %v", err)
		observability.IncWSEvent("chat", "invalid_frame")
		return
	}

	room, err := h.rooms.GetRoom(ctx, payload.RoomID)
	if err != nil {
		log.Printf("websocket: room %d lookup failed: %v", payload.RoomID, err)
		return
	}
	if !isParticipant(room, payload.ReaderID) || room.OtherUserID(payload.ReaderID) != payload.SenderID {
		log.Printf("websocket: dropped message_read: %s reading %s does not match room %d", payload.ReaderID, payload.SenderID, payload.RoomID)
		observability.IncWSEvent("chat", "invalid_frame")
		return
	}

	if err := h.rooms.AdvanceWatermark(ctx, payload.RoomID, payload.ReaderID, time.Now()); err != nil {
		log.Printf("websocket: advance watermark in room %d failed: %v", payload.RoomID, err)
		return
	}
	h.router.MessagesRead(payload.RoomID, payload.SenderID)
}

// teardown unbinds the connection and, when it was the user's last one,
// flips presence offline. A second device keeps the user online.
func (h *SocketHandler) teardown(ctx context.Context, conn *websocket.Conn, info ConnInfo, closeReason string) {
	userID, last, bound := h.hub.Unregister(conn)
	if bound && last {
		h.tracker.MarkOffline(ctx, userID, time.Now())
	}

	observability.DecWSActive("chat")
	observability.IncWSEvent("chat", "ws_disconnect")
	_ = observability.PublishEvent(ctx, "ws_events.chats", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_disconnect",
		Payload:   lifecyclePayload("ws_disconnect", info, time.Since(info.ConnectedAt).Milliseconds(), closeReason),
	}, observability.BuildHeaders(info.RequestID, info.TraceID))
	conn.Close()
}

func isParticipant(room models.Room, userID string) bool {
	return room.User1ID == userID || room.User2ID == userID
}

// unmarshalPayload decodes the event data and runs the payload's own
// validation. A bare string or mistyped field fails here instead of being
// branched on downstream.
func unmarshalPayload(data json.RawMessage, payload interface{ Validate() error }) error {
	if err := json.Unmarshal(data, payload); err != nil {
		return err
	}
	return payload.Validate()
}

func lifecyclePayload(event string, info ConnInfo, durationMS int64, reason string) map[string]interface{} {
	return map[string]interface{}{
		"ws": map[string]interface{}{
			"kind":        "chat",
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": durationMS,
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}
}
