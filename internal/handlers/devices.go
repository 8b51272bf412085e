package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"realtime-service/internal/pushtokens"
)

// DeviceHandler manages push-token registration endpoints.
type DeviceHandler struct {
	tokens pushtokens.Store
}

// NewDeviceHandler builds a DeviceHandler.
func NewDeviceHandler(tokens pushtokens.Store) *DeviceHandler {
	return &DeviceHandler{tokens: tokens}
}

// Register stores a device push token for the authenticated user.
func (h *DeviceHandler) Register(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.tokens.Add(c.Request.Context(), userIDFromContext(c), req.Token); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register device"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Unregister removes a device push token for the authenticated user.
func (h *DeviceHandler) Unregister(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.tokens.Remove(c.Request.Context(), userIDFromContext(c), req.Token); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to unregister device"})
		return
	}
	c.Status(http.StatusNoContent)
}
