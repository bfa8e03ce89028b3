package ws

import (
	"context"
	"log"

	"sns-chat-service/internal/models"
	"sns-chat-service/internal/repositories"
)

// Router decides who must hear about a committed message or read event and
// pushes the signals to the right logical channels. Delivery is best-effort:
// a recipient with no connection simply misses the push and re-derives the
// state from the store on its next poll.
type Router struct {
	hub   *Hub
	rooms repositories.RoomRepository
}

// NewRouter constructs a Router.
func NewRouter(hub *Hub, rooms repositories.RoomRepository) *Router {
	return &Router{hub: hub, rooms: rooms}
}

// MessageSent notifies the receiver of a freshly committed message: the
// message itself, a chat-list refresh for the room, and the receiver's
// recomputed unread room count. The sender gets no echo; its client renders
// the send optimistically.
func (r *Router) MessageSent(ctx context.Context, msg models.Message) {
	r.hub.EmitToUser(msg.ReceiverID, models.OutboundEvent{Event: models.EventNewMessage, Data: msg})
	r.hub.EmitToUser(msg.ReceiverID, models.OutboundEvent{Event: models.EventUpdateChatList, Data: models.RoomRef{RoomID: msg.RoomID}})

	event := models.OutboundEvent{Event: models.EventUpdateUnreadCount}
	if count, err := r.rooms.UnreadRoomCount(ctx, msg.ReceiverID); err != nil {
		log.Printf("unread room count for %s failed: %v", msg.ReceiverID, err)
	} else {
		event.Data = models.UnreadRoomCountPayload{UnreadRoomCount: count}
	}
	r.hub.EmitToUser(msg.ReceiverID, event)
}

// MessagesRead tells the original sender that the other side caught up in
// the room.
func (r *Router) MessagesRead(roomID int, senderID string) {
	r.hub.EmitToUser(senderID, models.OutboundEvent{Event: models.EventMessagesWereRead, Data: models.RoomRef{RoomID: roomID}})
}
