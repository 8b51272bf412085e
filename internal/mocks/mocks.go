package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"realtime-service/internal/identity"
	"realtime-service/internal/models"
	"realtime-service/internal/notifications"
)

type NotificationRepositoryMock struct {
	mock.Mock
}

func (m *NotificationRepositoryMock) Create(ctx context.Context, n models.Notification) (models.Notification, error) {
	args := m.Called(ctx, n)
	var created models.Notification
	if val := args.Get(0); val != nil {
		created = val.(models.Notification)
	}
	return created, args.Error(1)
}

func (m *NotificationRepositoryMock) ListForUser(ctx context.Context, userID string) ([]models.Notification, error) {
	args := m.Called(ctx, userID)
	var list []models.Notification
	if val := args.Get(0); val != nil {
		list = val.([]models.Notification)
	}
	return list, args.Error(1)
}

func (m *NotificationRepositoryMock) CountUnread(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *NotificationRepositoryMock) MarkRead(ctx context.Context, id int64, userID string) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}

func (m *NotificationRepositoryMock) MarkAllRead(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *NotificationRepositoryMock) Delete(ctx context.Context, id int64, userID string) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}

type RoomRepositoryMock struct {
	mock.Mock
}

func (m *RoomRepositoryMock) Participants(ctx context.Context, roomID string) ([]string, error) {
	args := m.Called(ctx, roomID)
	var ids []string
	if val := args.Get(0); val != nil {
		ids = val.([]string)
	}
	return ids, args.Error(1)
}

func (m *RoomRepositoryMock) AddParticipant(ctx context.Context, roomID, userID string) error {
	args := m.Called(ctx, roomID, userID)
	return args.Error(0)
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) FindByID(ctx context.Context, id string) (models.User, error) {
	args := m.Called(ctx, id)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

type TokenVerifierMock struct {
	mock.Mock
}

func (m *TokenVerifierMock) Verify(ctx context.Context, token string) (identity.Claims, error) {
	args := m.Called(ctx, token)
	var claims identity.Claims
	if val := args.Get(0); val != nil {
		claims = val.(identity.Claims)
	}
	return claims, args.Error(1)
}

type TokenStoreMock struct {
	mock.Mock
}

func (m *TokenStoreMock) Add(ctx context.Context, userID, token string) error {
	args := m.Called(ctx, userID, token)
	return args.Error(0)
}

func (m *TokenStoreMock) Remove(ctx context.Context, userID, token string) error {
	args := m.Called(ctx, userID, token)
	return args.Error(0)
}

func (m *TokenStoreMock) Tokens(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	var tokens []string
	if val := args.Get(0); val != nil {
		tokens = val.([]string)
	}
	return tokens, args.Error(1)
}

type PushSenderMock struct {
	mock.Mock
}

func (m *PushSenderMock) Send(ctx context.Context, payload notifications.PushPayload) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}

type LiveConnectionsMock struct {
	mock.Mock
}

func (m *LiveConnectionsMock) PresentUserIDs(roomID string) []string {
	args := m.Called(roomID)
	var ids []string
	if val := args.Get(0); val != nil {
		ids = val.([]string)
	}
	return ids
}

func (m *LiveConnectionsMock) SendToUser(userID string, event models.ServerEvent) int {
	args := m.Called(userID, event)
	return args.Int(0)
}

type DispatcherMock struct {
	mock.Mock
}

func (m *DispatcherMock) Dispatch(ctx context.Context, n models.Notification) (models.Notification, error) {
	args := m.Called(ctx, n)
	var created models.Notification
	if val := args.Get(0); val != nil {
		created = val.(models.Notification)
	}
	return created, args.Error(1)
}

func (m *DispatcherMock) PublishUnreadCount(ctx context.Context, userID string) {
	m.Called(ctx, userID)
}

func (m *DispatcherMock) EnqueueMessage(roomID, senderID, content string) {
	m.Called(roomID, senderID, content)
}

type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}
