package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"realtime-service/internal/repositories"
)

// RoomHandler manages the room-membership records the dispatcher reads.
// Internal API, called by the chat persistence service when rooms change.
type RoomHandler struct {
	rooms repositories.RoomRepository
}

// NewRoomHandler builds a RoomHandler.
func NewRoomHandler(rooms repositories.RoomRepository) *RoomHandler {
	return &RoomHandler{rooms: rooms}
}

// AddParticipant registers a user as a member of a room. Idempotent.
func (h *RoomHandler) AddParticipant(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.rooms.AddParticipant(c.Request.Context(), c.Param("room_id"), req.UserID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add participant"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Participants returns the userIds registered as members of a room.
func (h *RoomHandler) Participants(c *gin.Context) {
	roomID := c.Param("room_id")
	ids, err := h.rooms.Participants(c.Request.Context(), roomID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load participants"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"room_id": roomID, "participants": ids})
}
