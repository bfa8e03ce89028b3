package ws

import (
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubRegisterAndUnregister(t *testing.T) {
	hub := NewHub()
	conn := &websocket.Conn{}

	first := hub.Register("alice", conn, ConnInfo{ConnID: "c1", UserID: "alice"})
	require.True(t, first)
	assert.Equal(t, 1, hub.ActiveConnections("alice"))

	userID, last, ok := hub.Unregister(conn)
	require.True(t, ok)
	assert.Equal(t, "alice", userID)
	assert.True(t, last)
	assert.Equal(t, 0, hub.ActiveConnections("alice"))
}

func TestHubRegisterIsIdempotentPerConnection(t *testing.T) {
	hub := NewHub()
	conn := &websocket.Conn{}

	require.True(t, hub.Register("alice", conn, ConnInfo{ConnID: "c1"}))
	require.False(t, hub.Register("alice", conn, ConnInfo{ConnID: "c1"}))
	assert.Equal(t, 1, hub.ActiveConnections("alice"))
}

func TestHubSecondDeviceKeepsUserConnected(t *testing.T) {
	hub := NewHub()
	phone := &websocket.Conn{}
	laptop := &websocket.Conn{}

	require.True(t, hub.Register("alice", phone, ConnInfo{ConnID: "phone"}))
	require.False(t, hub.Register("alice", laptop, ConnInfo{ConnID: "laptop"}))
	assert.Equal(t, 2, hub.ActiveConnections("alice"))

	_, last, ok := hub.Unregister(phone)
	require.True(t, ok)
	assert.False(t, last, "one device closing must not flip the user offline")

	_, last, ok = hub.Unregister(laptop)
	require.True(t, ok)
	assert.True(t, last)
}

func TestHubUnregisterUnknownConnIsNoop(t *testing.T) {
	hub := NewHub()

	userID, last, ok := hub.Unregister(&websocket.Conn{})
	assert.False(t, ok)
	assert.False(t, last)
	assert.Empty(t, userID)
}

func TestHubRebindMovesConnBetweenUsers(t *testing.T) {
	hub := NewHub()
	conn := &websocket.Conn{}

	hub.Register("alice", conn, ConnInfo{ConnID: "c1"})
	hub.Register("bob", conn, ConnInfo{ConnID: "c1"})

	assert.Equal(t, 0, hub.ActiveConnections("alice"))
	assert.Equal(t, 1, hub.ActiveConnections("bob"))

	userID, _, ok := hub.Unregister(conn)
	require.True(t, ok)
	assert.Equal(t, "bob", userID)
}

func TestHubConnInfo(t *testing.T) {
	hub := NewHub()
	conn := &websocket.Conn{}

	hub.Register("alice", conn, ConnInfo{ConnID: "c1", UserID: "alice", DeviceID: "d1"})

	info, ok := hub.ConnInfo(conn)
	require.True(t, ok)
	assert.Equal(t, "c1", info.ConnID)
	assert.Equal(t, "d1", info.DeviceID)

	_, ok = hub.ConnInfo(&websocket.Conn{})
	assert.False(t, ok)
}
