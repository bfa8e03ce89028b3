package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"sns-chat-service/internal/repositories"
)

// StatusHandler serves presence reads.
type StatusHandler struct {
	presence repositories.PresenceRepository
}

// NewStatusHandler builds a StatusHandler.
func NewStatusHandler(presence repositories.PresenceRepository) *StatusHandler {
	return &StatusHandler{presence: presence}
}

// GetUserStatus returns the user's online flag and last-seen timestamp.
func (h *StatusHandler) GetUserStatus(c *gin.Context) {
	userID := c.Param("user_id")

	status, err := h.presence.GetStatus(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "failed to load user status"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "status": status})
}
