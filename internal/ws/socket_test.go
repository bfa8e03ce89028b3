package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"sns-chat-service/internal/mocks"
	"sns-chat-service/internal/models"
	"sns-chat-service/internal/observability"
	"sns-chat-service/internal/presence"
)

type socketFixture struct {
	server       *httptest.Server
	hub          *Hub
	rooms        *mocks.RoomRepositoryMock
	messages     *mocks.MessageRepositoryMock
	presenceRepo *mocks.PresenceRepositoryMock
}

func newSocketFixture(t *testing.T) *socketFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &socketFixture{
		hub:          NewHub(),
		rooms:        new(mocks.RoomRepositoryMock),
		messages:     new(mocks.MessageRepositoryMock),
		presenceRepo: new(mocks.PresenceRepositoryMock),
	}

	tracker := presence.NewTracker(f.presenceRepo, f.hub)
	handler := NewSocketHandler(f.hub, NewRouter(f.hub, f.rooms), tracker, f.rooms, f.messages)

	router := gin.New()
	router.GET("/ws", handler.Handle)
	f.server = httptest.NewServer(router)
	t.Cleanup(f.server.Close)
	return f
}

func (f *socketFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (f *socketFixture) join(t *testing.T, conn *websocket.Conn, userID string) {
	t.Helper()
	writeEvent(t, conn, models.EventJoin, models.JoinPayload{UserID: userID})
	require.Eventually(t, func() bool {
		return f.hub.ActiveConnections(userID) > 0
	}, 2*time.Second, 10*time.Millisecond)
}

func writeEvent(t *testing.T, conn *websocket.Conn, event string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(models.InboundEvent{Event: event, Data: data}))
}

// readUntil drains frames until the named event arrives.
func readUntil(t *testing.T, conn *websocket.Conn, event string) models.InboundEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var got models.InboundEvent
		require.NoError(t, conn.ReadJSON(&got))
		if got.Event == event {
			return got
		}
	}
}

func TestPrivateMessageRoutesToReceiverOnly(t *testing.T) {
	f := newSocketFixture(t)
	f.presenceRepo.On("SetOnline", mock.Anything, mock.Anything).Return(nil)
	f.presenceRepo.On("SetOffline", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	alice := f.dial(t)
	bob := f.dial(t)
	f.join(t, alice, "alice")
	f.join(t, bob, "bob")

	stored := models.Message{MessageID: 7, RoomID: 5, SenderID: "alice", ReceiverID: "bob", Content: "hi", SendAt: time.Now()}
	f.rooms.On("GetRoom", mock.Anything, 5).Return(models.Room{RoomID: 5, User1ID: "alice", User2ID: "bob"}, nil).Once()
	f.messages.On("CreateMessage", mock.Anything, 5, "alice", "bob", "hi").Return(stored, nil).Once()
	f.rooms.On("UnreadRoomCount", mock.Anything, "bob").Return(1, nil).Once()

	writeEvent(t, alice, models.EventPrivateMessage, models.PrivateMessagePayload{
		RoomID: 5, SenderID: "alice", ReceiverID: "bob", Content: "hi",
	})

	got := readUntil(t, bob, models.EventNewMessage)
	var msg models.Message
	require.NoError(t, json.Unmarshal(got.Data, &msg))
	require.Equal(t, 7, msg.MessageID)
	require.Equal(t, "hi", msg.Content)

	// Chat list refresh and unread count follow, in commit order.
	refresh := readUntil(t, bob, models.EventUpdateChatList)
	var ref models.RoomRef
	require.NoError(t, json.Unmarshal(refresh.Data, &ref))
	require.Equal(t, 5, ref.RoomID)

	counts := readUntil(t, bob, models.EventUpdateUnreadCount)
	var unread models.UnreadRoomCountPayload
	require.NoError(t, json.Unmarshal(counts.Data, &unread))
	require.Equal(t, 1, unread.UnreadRoomCount)

	f.messages.AssertExpectations(t)
	f.rooms.AssertExpectations(t)
}

func TestMessageReadNotifiesOriginalSender(t *testing.T) {
	f := newSocketFixture(t)
	f.presenceRepo.On("SetOnline", mock.Anything, mock.Anything).Return(nil)
	f.presenceRepo.On("SetOffline", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	alice := f.dial(t)
	bob := f.dial(t)
	f.join(t, alice, "alice")
	f.join(t, bob, "bob")

	f.rooms.On("GetRoom", mock.Anything, 5).Return(models.Room{RoomID: 5, User1ID: "alice", User2ID: "bob"}, nil).Once()
	f.rooms.On("AdvanceWatermark", mock.Anything, 5, "bob", mock.AnythingOfType("time.Time")).Return(nil).Once()

	writeEvent(t, bob, models.EventMessageRead, models.MessageReadPayload{
		RoomID: 5, ReaderID: "bob", SenderID: "alice",
	})

	got := readUntil(t, alice, models.EventMessagesWereRead)
	var ref models.RoomRef
	require.NoError(t, json.Unmarshal(got.Data, &ref))
	require.Equal(t, 5, ref.RoomID)

	f.rooms.AssertExpectations(t)
}

func TestMessageReadFromOutsiderLeavesWatermarkAlone(t *testing.T) {
	f := newSocketFixture(t)
	f.presenceRepo.On("SetOnline", mock.Anything, mock.Anything).Return(nil)
	f.presenceRepo.On("SetOffline", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	mallory := f.dial(t)
	f.join(t, mallory, "mallory")

	// A reader outside the room must not advance either participant's
	// watermark: the column choice falls through to user2's side.
	f.rooms.On("GetRoom", mock.Anything, 5).Return(models.Room{RoomID: 5, User1ID: "alice", User2ID: "bob"}, nil).Twice()
	writeEvent(t, mallory, models.EventMessageRead, models.MessageReadPayload{
		RoomID: 5, ReaderID: "mallory", SenderID: "alice",
	})
	// A participant naming someone other than the counterpart is dropped too.
	writeEvent(t, mallory, models.EventMessageRead, models.MessageReadPayload{
		RoomID: 5, ReaderID: "bob", SenderID: "mallory",
	})

	writeEvent(t, mallory, models.EventJoin, models.JoinPayload{UserID: "mallory"})
	readUntil(t, mallory, models.EventUserStatusChanged)
	readUntil(t, mallory, models.EventUserStatusChanged)

	f.rooms.AssertNotCalled(t, "AdvanceWatermark", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.rooms.AssertExpectations(t)
}

func TestMalformedEventIsDroppedWithoutPersisting(t *testing.T) {
	f := newSocketFixture(t)
	f.presenceRepo.On("SetOnline", mock.Anything, mock.Anything).Return(nil)
	f.presenceRepo.On("SetOffline", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	alice := f.dial(t)
	f.join(t, alice, "alice")

	// Missing content: validation rejects the payload before any store call.
	writeEvent(t, alice, models.EventPrivateMessage, models.PrivateMessagePayload{
		RoomID: 5, SenderID: "alice", ReceiverID: "bob",
	})
	// A bare string where an object is expected is rejected the same way.
	require.NoError(t, alice.WriteJSON(models.InboundEvent{Event: models.EventPrivateMessage, Data: json.RawMessage(`"hi"`)}))

	// A receiver who is not the room counterpart is dropped after lookup.
	f.rooms.On("GetRoom", mock.Anything, 5).Return(models.Room{RoomID: 5, User1ID: "alice", User2ID: "bob"}, nil).Once()
	writeEvent(t, alice, models.EventPrivateMessage, models.PrivateMessagePayload{
		RoomID: 5, SenderID: "alice", ReceiverID: "charlie", Content: "hi",
	})

	// A second join gives a full round trip: the server handles frames from
	// one connection in order, so once its status broadcast arrives the
	// malformed frames are known-processed. The first join's broadcast is
	// already queued, hence two reads.
	writeEvent(t, alice, models.EventJoin, models.JoinPayload{UserID: "alice"})
	readUntil(t, alice, models.EventUserStatusChanged)
	readUntil(t, alice, models.EventUserStatusChanged)

	f.messages.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// recordingPublisher captures the context state of every lifecycle publish.
type recordingPublisher struct {
	mu      sync.Mutex
	ctxErrs map[string]error
}

func (p *recordingPublisher) PublishJSON(ctx context.Context, _ string, message interface{}, _ map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if env, ok := message.(observability.EventEnvelope); ok {
		p.ctxErrs[env.EventName] = ctx.Err()
	}
	return nil
}

func (p *recordingPublisher) seen(event string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.ctxErrs[event]
	return ok
}

func TestLifecyclePublishesOutliveHandshakeContext(t *testing.T) {
	f := newSocketFixture(t)
	pub := &recordingPublisher{ctxErrs: map[string]error{}}
	observability.SetPublisher(pub)
	t.Cleanup(func() { observability.SetPublisher(nil) })

	f.presenceRepo.On("SetOnline", mock.Anything, mock.Anything).Return(nil)
	f.presenceRepo.On("SetOffline", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	conn := f.dial(t)
	f.join(t, conn, "alice")
	conn.Close()

	// The disconnect publish happens after net/http has canceled the
	// handshake request context, so it must not ride on that context.
	require.Eventually(t, func() bool {
		return pub.seen("ws_disconnect")
	}, 2*time.Second, 10*time.Millisecond)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	for event, err := range pub.ctxErrs {
		require.NoError(t, err, "publish for %s ran on a dead context", event)
	}
}

func TestLastDisconnectFlipsPresenceOffline(t *testing.T) {
	f := newSocketFixture(t)
	f.presenceRepo.On("SetOnline", mock.Anything, "alice").Return(nil)

	offline := make(chan struct{})
	f.presenceRepo.On("SetOffline", mock.Anything, "alice", mock.AnythingOfType("time.Time")).
		Run(func(mock.Arguments) { close(offline) }).Return(nil).Once()

	phone := f.dial(t)
	laptop := f.dial(t)
	f.join(t, phone, "alice")
	f.join(t, laptop, "alice")
	require.Equal(t, 2, f.hub.ActiveConnections("alice"))

	phone.Close()
	require.Eventually(t, func() bool {
		return f.hub.ActiveConnections("alice") == 1
	}, 2*time.Second, 10*time.Millisecond)

	select {
	case <-offline:
		t.Fatal("presence went offline while a device was still connected")
	case <-time.After(100 * time.Millisecond):
	}

	laptop.Close()
	select {
	case <-offline:
	case <-time.After(2 * time.Second):
		t.Fatal("presence never went offline after the last disconnect")
	}
}
