package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"sns-chat-service/internal/repositories"
	"sns-chat-service/internal/telemetry"
)

// ChatHandler serves the REST side of the messaging core. Every response is
// the `{"success": bool, ...}` envelope the mobile clients expect.
type ChatHandler struct {
	rooms    repositories.RoomRepository
	messages repositories.MessageRepository
	audit    *telemetry.AuditEmitter
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(rooms repositories.RoomRepository, messages repositories.MessageRepository, audit *telemetry.AuditEmitter) *ChatHandler {
	return &ChatHandler{rooms: rooms, messages: messages, audit: audit}
}

// StartChat creates or returns the room for the caller and the other user.
func (h *ChatHandler) StartChat(c *gin.Context) {
	var req struct {
		MyID    string `json:"my_id" binding:"required"`
		OtherID string `json:"other_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "my_id and other_id are required"})
		return
	}
	if req.MyID == req.OtherID {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "cannot start a chat with yourself"})
		return
	}

	room, err := h.rooms.CreateOrGetRoom(c.Request.Context(), req.MyID, req.OtherID)
	if err != nil {
		h.emitAudit(c, "ERROR", "could not create chat room")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "could not create chat room"})
		return
	}

	h.emitAudit(c, "INFO", "chat room ready")
	c.JSON(http.StatusOK, gin.H{"success": true, "room_id": room.RoomID})
}

// ListRooms returns the user's chat list, newest activity first.
func (h *ChatHandler) ListRooms(c *gin.Context) {
	userID := c.Param("user_id")

	rooms, err := h.rooms.ListRoomsForUser(c.Request.Context(), userID)
	if err != nil {
		h.emitAudit(c, "ERROR", "failed to load chat rooms")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "failed to load chat rooms"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "rooms": rooms})
}

// GetRoomMessages returns the room's messages oldest first.
func (h *ChatHandler) GetRoomMessages(c *gin.Context) {
	roomID, err := strconv.Atoi(c.Param("room_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid room id"})
		return
	}

	msgs, err := h.messages.ListRoomMessages(c.Request.Context(), roomID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "failed to load messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "messages": msgs})
}

// MarkRoomRead advances the caller's read watermark to now. Repeating the
// call is a no-op because the watermark only moves forward.
func (h *ChatHandler) MarkRoomRead(c *gin.Context) {
	roomID, err := strconv.Atoi(c.Param("room_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid room id"})
		return
	}

	var req struct {
		UserID string `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "user_id is required"})
		return
	}

	room, err := h.rooms.GetRoom(c.Request.Context(), roomID)
	if err != nil {
		if errors.Is(err, repositories.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "chat room not found"})
			return
		}
		h.emitAudit(c, "ERROR", "failed to mark messages read")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "failed to mark messages read"})
		return
	}
	// The watermark column is picked by participant side, so an outsider's
	// user_id would land on a participant's column and wipe their unreads.
	if room.User1ID != req.UserID && room.User2ID != req.UserID {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "not a participant of this chat room"})
		return
	}

	if err := h.rooms.AdvanceWatermark(c.Request.Context(), roomID, req.UserID, time.Now()); err != nil {
		if errors.Is(err, repositories.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "chat room not found"})
			return
		}
		h.emitAudit(c, "ERROR", "failed to mark messages read")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "failed to mark messages read"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "all messages marked as read"})
}

// UnreadRoomCount returns how many of the user's rooms hold unread messages.
func (h *ChatHandler) UnreadRoomCount(c *gin.Context) {
	userID := c.Param("user_id")

	count, err := h.rooms.UnreadRoomCount(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "failed to count unread rooms"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "unread_room_count": count})
}

func (h *ChatHandler) emitAudit(c *gin.Context, level, text string) {
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}
