package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"realtime-service/internal/mocks"
	"realtime-service/internal/models"
	"realtime-service/internal/repositories"
)

func setupNotificationRouter(handler *NotificationHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", "u1")
		c.Next()
	})
	r.GET("/notifications", handler.List)
	r.GET("/notifications/unread-count", handler.UnreadCount)
	r.POST("/notifications", handler.Create)
	r.POST("/notifications/:notification_id/read", handler.MarkRead)
	r.POST("/notifications/read-all", handler.MarkAllRead)
	r.DELETE("/notifications/:notification_id", handler.Delete)
	return r
}

func TestListNotificationsSuccess(t *testing.T) {
	repo := new(mocks.NotificationRepositoryMock)
	dispatcher := new(mocks.DispatcherMock)
	handler := NewNotificationHandler(repo, dispatcher, dispatcher)
	router := setupNotificationRouter(handler)

	repo.On("ListForUser", mock.Anything, "u1").Return([]models.Notification{
		{ID: 1, RecipientID: "u1", Type: "chat_message", Content: "hola", CreatedAt: time.Now()},
	}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/notifications", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	repo.AssertExpectations(t)
}

func TestUnreadCountSuccess(t *testing.T) {
	repo := new(mocks.NotificationRepositoryMock)
	dispatcher := new(mocks.DispatcherMock)
	handler := NewNotificationHandler(repo, dispatcher, dispatcher)
	router := setupNotificationRouter(handler)

	repo.On("CountUnread", mock.Anything, "u1").Return(7, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/notifications/unread-count", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"unread_count":7}`, rec.Body.String())
}

func TestCreateNotificationSuccess(t *testing.T) {
	repo := new(mocks.NotificationRepositoryMock)
	dispatcher := new(mocks.DispatcherMock)
	handler := NewNotificationHandler(repo, dispatcher, dispatcher)
	router := setupNotificationRouter(handler)

	dispatcher.On("Dispatch", mock.Anything, models.Notification{
		RecipientID: "u2",
		SenderID:    "u1",
		Type:        "achievement",
		Content:     "10k steps",
		EntityID:    "ach-9",
		EntityType:  "achievement",
	}).Return(models.Notification{ID: 5, RecipientID: "u2"}, nil).Once()

	body := bytes.NewBufferString(`{"recipient_id":"u2","sender_id":"u1","type":"achievement","content":"10k steps","entity_id":"ach-9","entity_type":"achievement"}`)
	req := httptest.NewRequest(http.MethodPost, "/notifications", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	dispatcher.AssertExpectations(t)
}

func TestCreateNotificationInvalidBody(t *testing.T) {
	repo := new(mocks.NotificationRepositoryMock)
	dispatcher := new(mocks.DispatcherMock)
	handler := NewNotificationHandler(repo, dispatcher, dispatcher)
	router := setupNotificationRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/notifications", bytes.NewBufferString(`{"recipient_id":""}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	dispatcher.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
}

func TestMarkReadPushesFreshCount(t *testing.T) {
	repo := new(mocks.NotificationRepositoryMock)
	dispatcher := new(mocks.DispatcherMock)
	handler := NewNotificationHandler(repo, dispatcher, dispatcher)
	router := setupNotificationRouter(handler)

	repo.On("MarkRead", mock.Anything, int64(12), "u1").Return(nil).Once()
	dispatcher.On("PublishUnreadCount", mock.Anything, "u1").Once()

	req := httptest.NewRequest(http.MethodPost, "/notifications/12/read", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	repo.AssertExpectations(t)
	dispatcher.AssertExpectations(t)
}

func TestMarkReadNotFound(t *testing.T) {
	repo := new(mocks.NotificationRepositoryMock)
	dispatcher := new(mocks.DispatcherMock)
	handler := NewNotificationHandler(repo, dispatcher, dispatcher)
	router := setupNotificationRouter(handler)

	repo.On("MarkRead", mock.Anything, int64(12), "u1").Return(repositories.ErrNotificationNotFound).Once()

	req := httptest.NewRequest(http.MethodPost, "/notifications/12/read", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	dispatcher.AssertNotCalled(t, "PublishUnreadCount", mock.Anything, mock.Anything)
}

func TestMarkReadInvalidID(t *testing.T) {
	repo := new(mocks.NotificationRepositoryMock)
	dispatcher := new(mocks.DispatcherMock)
	handler := NewNotificationHandler(repo, dispatcher, dispatcher)
	router := setupNotificationRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/notifications/abc/read", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMarkAllReadPushesFreshCount(t *testing.T) {
	repo := new(mocks.NotificationRepositoryMock)
	dispatcher := new(mocks.DispatcherMock)
	handler := NewNotificationHandler(repo, dispatcher, dispatcher)
	router := setupNotificationRouter(handler)

	repo.On("MarkAllRead", mock.Anything, "u1").Return(nil).Once()
	dispatcher.On("PublishUnreadCount", mock.Anything, "u1").Once()

	req := httptest.NewRequest(http.MethodPost, "/notifications/read-all", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	dispatcher.AssertExpectations(t)
}

func TestDeleteNotificationNotFound(t *testing.T) {
	repo := new(mocks.NotificationRepositoryMock)
	dispatcher := new(mocks.DispatcherMock)
	handler := NewNotificationHandler(repo, dispatcher, dispatcher)
	router := setupNotificationRouter(handler)

	repo.On("Delete", mock.Anything, int64(3), "u1").Return(repositories.ErrNotificationNotFound).Once()

	req := httptest.NewRequest(http.MethodDelete, "/notifications/3", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}
