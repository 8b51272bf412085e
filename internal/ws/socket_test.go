package ws

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"realtime-service/internal/identity"
	"realtime-service/internal/mocks"
	"realtime-service/internal/models"
)

type socketFixture struct {
	handler    *SocketHandler
	hub        *Hub
	verifier   *mocks.TokenVerifierMock
	users      *mocks.UserRepositoryMock
	notifs     *mocks.NotificationRepositoryMock
	dispatcher *mocks.DispatcherMock
}

func newSocketFixture() *socketFixture {
	verifier := new(mocks.TokenVerifierMock)
	users := new(mocks.UserRepositoryMock)
	notifs := new(mocks.NotificationRepositoryMock)
	dispatcher := new(mocks.DispatcherMock)
	hub := NewHub()
	handler := NewSocketHandler(hub, identity.NewResolver(verifier), users, notifs, dispatcher, nil)
	return &socketFixture{handler: handler, hub: hub, verifier: verifier, users: users, notifs: notifs, dispatcher: dispatcher}
}

func rawPayload(t *testing.T, payload any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return data
}

func lastEvent(t *testing.T, conn *fakeConn, eventType string) models.ServerEvent {
	t.Helper()
	events := conn.events(t)
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type == eventType {
			return events[i]
		}
	}
	t.Fatalf("no %s event received", eventType)
	return models.ServerEvent{}
}

func TestSendMessageBroadcastsNormalizedMessage(t *testing.T) {
	f := newSocketFixture()
	receiver, receiverConn := testClient("u1", "Ana")
	sender, _ := testClient("u2", "Bruno")
	f.hub.Register(receiver)
	f.hub.Register(sender)
	f.hub.JoinRoom(receiver, "r1")
	f.hub.JoinRoom(sender, "r1")

	f.dispatcher.On("EnqueueMessage", "r1", "u2", "hi").Once()

	f.handler.handleSendMessage(sender, rawPayload(t, map[string]string{"roomId": "r1", "content": "hi"}))

	event := lastEvent(t, receiverConn, models.EventNewMessage)
	raw, err := json.Marshal(event.Payload)
	require.NoError(t, err)
	var msg models.Message
	require.NoError(t, json.Unmarshal(raw, &msg))
	require.Equal(t, "r1", msg.RoomID)
	require.Equal(t, "u2", msg.SenderID)
	require.Equal(t, "Bruno", msg.SenderName)
	require.Equal(t, "hi", msg.Content)
	require.NotEmpty(t, msg.ID)
	require.WithinDuration(t, time.Now(), msg.Timestamp, time.Minute)

	f.dispatcher.AssertExpectations(t)
}

func TestSendMessageMissingContentIsDropped(t *testing.T) {
	f := newSocketFixture()
	receiver, receiverConn := testClient("u1", "Ana")
	sender, _ := testClient("u2", "Bruno")
	f.hub.Register(receiver)
	f.hub.Register(sender)
	f.hub.JoinRoom(receiver, "r1")
	f.hub.JoinRoom(sender, "r1")

	f.handler.handleSendMessage(sender, rawPayload(t, map[string]string{"roomId": "r1"}))

	require.Equal(t, 0, receiverConn.countEvents(t, models.EventNewMessage))
	f.dispatcher.AssertNotCalled(t, "EnqueueMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestSendMessageMissingRoomIsDropped(t *testing.T) {
	f := newSocketFixture()
	sender, _ := testClient("u2", "Bruno")
	f.hub.Register(sender)

	f.handler.handleSendMessage(sender, rawPayload(t, map[string]string{"content": "hi"}))

	f.dispatcher.AssertNotCalled(t, "EnqueueMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestSendMessageReachesSenderOtherConnections(t *testing.T) {
	f := newSocketFixture()
	phone, phoneConn := testClient("u2", "Bruno")
	laptop, _ := testClient("u2", "Bruno")
	f.hub.Register(phone)
	f.hub.Register(laptop)
	f.hub.JoinRoom(phone, "r1")
	f.hub.JoinRoom(laptop, "r1")

	f.dispatcher.On("EnqueueMessage", "r1", "u2", "hi").Once()

	f.handler.handleSendMessage(laptop, rawPayload(t, map[string]string{"roomId": "r1", "content": "hi"}))

	require.Equal(t, 1, phoneConn.countEvents(t, models.EventNewMessage))
}

func TestTypingRelayedToOtherMembersOnly(t *testing.T) {
	f := newSocketFixture()
	a, connA := testClient("u1", "Ana")
	b, connB := testClient("u2", "Bruno")
	f.hub.Register(a)
	f.hub.Register(b)
	f.hub.JoinRoom(a, "r1")
	f.hub.JoinRoom(b, "r1")

	f.handler.handleTyping(a, rawPayload(t, map[string]string{"roomId": "r1"}))

	require.Equal(t, 0, connA.countEvents(t, models.EventUserTyping))
	event := lastEvent(t, connB, models.EventUserTyping)
	raw, err := json.Marshal(event.Payload)
	require.NoError(t, err)
	var typing models.RoomPresenceEvent
	require.NoError(t, json.Unmarshal(raw, &typing))
	require.Equal(t, models.RoomPresenceEvent{UserID: "u1", Username: "Ana", RoomID: "r1"}, typing)
}

func TestTypingWithoutIdentityIsDropped(t *testing.T) {
	f := newSocketFixture()
	anon := newClient(&fakeConn{}, identity.Identity{Trust: identity.TrustNone})
	other, otherConn := testClient("u2", "Bruno")
	f.hub.Register(anon)
	f.hub.Register(other)
	f.hub.JoinRoom(anon, "r1")
	f.hub.JoinRoom(other, "r1")

	f.handler.handleTyping(anon, rawPayload(t, map[string]string{"roomId": "r1"}))

	require.Equal(t, 0, otherConn.countEvents(t, models.EventUserTyping))
}

func TestTokenUpdatedFailureKeepsTrustAndSignalsClient(t *testing.T) {
	f := newSocketFixture()
	client, conn := testClient("u1", "Ana")
	f.hub.Register(client)

	f.verifier.On("Verify", mock.Anything, "stale-token").Return(identity.Claims{}, errors.New("expired")).Once()

	f.handler.handleTokenUpdated(client, rawPayload(t, map[string]string{"token": "stale-token"}))

	require.Equal(t, identity.TrustUnverified, client.Identity().Trust)
	require.True(t, f.hub.IsRegistered(client.ID), "connection must survive a failed re-auth")
	event := lastEvent(t, conn, models.EventTokenExpired)
	require.Equal(t, models.EventTokenExpired, event.Type)
	f.verifier.AssertExpectations(t)
}

func TestTokenUpdatedSuccessUpgradesTrustInPlace(t *testing.T) {
	f := newSocketFixture()
	client, _ := testClient("u1", "Ana")
	f.hub.Register(client)

	f.verifier.On("Verify", mock.Anything, "fresh-token").
		Return(identity.Claims{UserID: "u1", Username: "Ana Maria", Role: "user"}, nil).Once()

	f.handler.handleTokenUpdated(client, rawPayload(t, map[string]string{"token": "fresh-token"}))

	id := client.Identity()
	require.Equal(t, identity.TrustVerified, id.Trust)
	require.Equal(t, "Ana Maria", id.Username)
	require.True(t, f.hub.IsOnline("u1"))
}

func TestUnreadCountQueryRepliesOnSameConnection(t *testing.T) {
	f := newSocketFixture()
	client, conn := testClient("u1", "Ana")
	f.hub.Register(client)

	f.notifs.On("CountUnread", mock.Anything, "u1").Return(3, nil).Once()

	f.handler.handleUnreadCount(client)

	event := lastEvent(t, conn, models.EventUnreadCount)
	require.Equal(t, float64(3), event.Payload)
	f.notifs.AssertExpectations(t)
}

func TestUnreadCountQueryFailureIsSilent(t *testing.T) {
	f := newSocketFixture()
	client, conn := testClient("u1", "Ana")
	f.hub.Register(client)

	f.notifs.On("CountUnread", mock.Anything, "u1").Return(0, errors.New("db down")).Once()

	f.handler.handleUnreadCount(client)

	require.Equal(t, 0, conn.countEvents(t, models.EventUnreadCount))
}

func TestUnreadCountSkippedWhenConnectionGone(t *testing.T) {
	f := newSocketFixture()
	client, conn := testClient("u1", "Ana")
	f.hub.Register(client)

	// Simulate a disconnect racing the persistence call.
	f.notifs.On("CountUnread", mock.Anything, "u1").Return(3, nil).Once().Run(func(mock.Arguments) {
		f.hub.Unregister(client)
	})

	f.handler.handleUnreadCount(client)

	require.Equal(t, 0, conn.countEvents(t, models.EventUnreadCount))
}

func TestDispatchIgnoresMalformedFrames(t *testing.T) {
	f := newSocketFixture()
	client, _ := testClient("u1", "Ana")
	f.hub.Register(client)

	require.NotPanics(t, func() {
		f.handler.dispatch(client, []byte("not json"))
		f.handler.dispatch(client, []byte(`{"type":"unknown_event","payload":{}}`))
	})
}
