package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"realtime-service/internal/models"
	"realtime-service/internal/repositories"
)

// UnreadPublisher pushes a refreshed unread count to a user's live
// connections after a count-affecting operation.
type UnreadPublisher interface {
	PublishUnreadCount(ctx context.Context, userID string)
}

// NotificationCreator persists a notification and performs its realtime and
// push side effects.
type NotificationCreator interface {
	Dispatch(ctx context.Context, n models.Notification) (models.Notification, error)
}

// NotificationHandler manages the notification REST endpoints.
type NotificationHandler struct {
	repo       repositories.NotificationRepository
	dispatcher NotificationCreator
	unread     UnreadPublisher
}

// NewNotificationHandler builds a NotificationHandler.
func NewNotificationHandler(repo repositories.NotificationRepository, dispatcher NotificationCreator, unread UnreadPublisher) *NotificationHandler {
	return &NotificationHandler{repo: repo, dispatcher: dispatcher, unread: unread}
}

// List returns the authenticated user's notifications.
func (h *NotificationHandler) List(c *gin.Context) {
	userID := userIDFromContext(c)

	list, err := h.repo.ListForUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load notifications"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

// UnreadCount returns the authenticated user's unread notification count.
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	userID := userIDFromContext(c)

	count, err := h.repo.CountUnread(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count notifications"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}

// Create stores a notification on behalf of another backend service and fans
// out its realtime side effects. Internal API.
func (h *NotificationHandler) Create(c *gin.Context) {
	var req struct {
		RecipientID string `json:"recipient_id" binding:"required"`
		SenderID    string `json:"sender_id" binding:"required"`
		Type        string `json:"type" binding:"required"`
		Content     string `json:"content" binding:"required"`
		EntityID    string `json:"entity_id"`
		EntityType  string `json:"entity_type"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.dispatcher.Dispatch(c.Request.Context(), models.Notification{
		RecipientID: req.RecipientID,
		SenderID:    req.SenderID,
		Type:        req.Type,
		Content:     req.Content,
		EntityID:    req.EntityID,
		EntityType:  req.EntityType,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create notification"})
		return
	}
	c.JSON(http.StatusCreated, created)
}

// MarkRead flags one notification as read and refreshes the live unread count.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, ok := parseNotificationID(c)
	if !ok {
		return
	}
	userID := userIDFromContext(c)

	if err := h.repo.MarkRead(c.Request.Context(), id, userID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrNotificationNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "notification not found"})
		return
	}

	h.unread.PublishUnreadCount(c.Request.Context(), userID)
	c.Status(http.StatusNoContent)
}

// MarkAllRead flags all of the user's notifications as read.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID := userIDFromContext(c)

	if err := h.repo.MarkAllRead(c.Request.Context(), userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update notifications"})
		return
	}

	h.unread.PublishUnreadCount(c.Request.Context(), userID)
	c.Status(http.StatusNoContent)
}

// Delete removes one of the user's notifications.
func (h *NotificationHandler) Delete(c *gin.Context) {
	id, ok := parseNotificationID(c)
	if !ok {
		return
	}
	userID := userIDFromContext(c)

	if err := h.repo.Delete(c.Request.Context(), id, userID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrNotificationNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "notification not found"})
		return
	}

	h.unread.PublishUnreadCount(c.Request.Context(), userID)
	c.Status(http.StatusNoContent)
}

func parseNotificationID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("notification_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
		return 0, false
	}
	return id, true
}
