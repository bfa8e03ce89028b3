package ws

import "time"

// ConnInfo carries per-connection metadata recorded at upgrade time, used in
// websocket lifecycle events and audit attribution. UserID is empty until
// the client sends its join event.
type ConnInfo struct {
	ConnID      string
	UserID      string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}
