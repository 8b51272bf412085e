package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"realtime-service/internal/models"
)

// PresenceView is the read-only slice of the connection hub the REST surface
// exposes.
type PresenceView interface {
	ListOnline() []models.OnlineUser
	IsOnline(userID string) bool
	PresentUserIDs(roomID string) []string
}

// PresenceHandler exposes presence snapshots over REST.
type PresenceHandler struct {
	hub PresenceView
}

// NewPresenceHandler builds a PresenceHandler.
func NewPresenceHandler(hub PresenceView) *PresenceHandler {
	return &PresenceHandler{hub: hub}
}

// Online returns the global online-user snapshot.
func (h *PresenceHandler) Online(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"online": h.hub.ListOnline()})
}

// RoomPresence returns the userIds currently present in a room.
func (h *PresenceHandler) RoomPresence(c *gin.Context) {
	roomID := c.Param("room_id")
	c.JSON(http.StatusOK, gin.H{
		"room_id": roomID,
		"present": h.hub.PresentUserIDs(roomID),
	})
}

// UserOnline reports whether one user is reachable right now.
func (h *PresenceHandler) UserOnline(c *gin.Context) {
	userID := c.Param("user_id")
	c.JSON(http.StatusOK, gin.H{
		"user_id": userID,
		"online":  h.hub.IsOnline(userID),
	})
}
