package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"sns-chat-service/internal/models"
	"sns-chat-service/internal/observability"
)

// Hub is the connection registry. It binds each websocket connection to the
// user who joined on it and keeps a per-user logical channel: the set of all
// connections held by that user. A user with two devices has two entries in
// the set, and events addressed to the user fan out to every one of them.
type Hub struct {
	userConns map[string]map[*websocket.Conn]bool
	byConn    map[*websocket.Conn]*binding
	mu        sync.RWMutex
}

type binding struct {
	userID string
	info   ConnInfo
	// gorilla allows a single concurrent writer per connection
	writeMu sync.Mutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		userConns: make(map[string]map[*websocket.Conn]bool),
		byConn:    make(map[*websocket.Conn]*binding),
	}
}

// Register binds a connection to a user and joins it to the user's channel.
// Registering the same connection again is a no-op; registering it for a
// different user rebinds it. Returns true when this is the user's first
// active connection.
func (h *Hub) Register(userID string, conn *websocket.Conn, info ConnInfo) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.byConn[conn]; ok {
		if existing.userID == userID {
			return false
		}
		h.removeLocked(conn, existing.userID)
	}

	first := len(h.userConns[userID]) == 0
	if _, ok := h.userConns[userID]; !ok {
		h.userConns[userID] = make(map[*websocket.Conn]bool)
	}
	h.userConns[userID][conn] = true
	h.byConn[conn] = &binding{userID: userID, info: info}
	return first
}

// Unregister removes the connection's binding. It reports the user the
// connection belonged to and whether that was the user's last connection.
// Unknown connections are a no-op with ok=false.
func (h *Hub) Unregister(conn *websocket.Conn) (userID string, last bool, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	bound, exists := h.byConn[conn]
	if !exists {
		return "", false, false
	}
	h.removeLocked(conn, bound.userID)
	return bound.userID, len(h.userConns[bound.userID]) == 0, true
}

func (h *Hub) removeLocked(conn *websocket.Conn, userID string) {
	delete(h.byConn, conn)
	if conns, ok := h.userConns[userID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.userConns, userID)
		}
	}
}

// ConnInfo returns the metadata recorded when the connection joined.
func (h *Hub) ConnInfo(conn *websocket.Conn) (ConnInfo, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if bound, ok := h.byConn[conn]; ok {
		return bound.info, true
	}
	return ConnInfo{}, false
}

// ActiveConnections reports how many connections the user currently holds.
func (h *Hub) ActiveConnections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.userConns[userID])
}

// EmitToUser sends the event to every connection of the user. Delivery is
// fire-and-forget: a user with no connections misses the event and recovers
// the state on the next REST read, and a failed write closes that connection.
func (h *Hub) EmitToUser(userID string, event models.OutboundEvent) {
	h.mu.RLock()
	targets := make([]*websocket.Conn, 0, len(h.userConns[userID]))
	for conn := range h.userConns[userID] {
		targets = append(targets, conn)
	}
	h.mu.RUnlock()

	h.write(targets, event)
}

// BroadcastAll sends the event to every connected client. Used for presence
// status changes, which any client may be observing.
func (h *Hub) BroadcastAll(event models.OutboundEvent) {
	h.mu.RLock()
	targets := make([]*websocket.Conn, 0, len(h.byConn))
	for conn := range h.byConn {
		targets = append(targets, conn)
	}
	h.mu.RUnlock()

	h.write(targets, event)
}

func (h *Hub) write(targets []*websocket.Conn, event models.OutboundEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("websocket marshal error: %v", err)
		return
	}

	for _, conn := range targets {
		h.mu.RLock()
		bound, ok := h.byConn[conn]
		h.mu.RUnlock()
		if !ok {
			continue
		}

		bound.writeMu.Lock()
		err := conn.WriteMessage(websocket.TextMessage, payload)
		bound.writeMu.Unlock()
		if err != nil {
			log.Printf("websocket write error: %v", err)
			conn.Close()
			h.Unregister(conn)
			h.publishWSError(bound.info, err)
		}
	}
}

func (h *Hub) publishWSError(info ConnInfo, err error) {
	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"event":       "ws_error",
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      err.Error(),
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(context.Background(), "ws_events.chats", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Payload:   payload,
	}, headers)
	observability.IncWSEvent("chat", "ws_error")
}
