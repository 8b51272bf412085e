package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"realtime-service/internal/identity"
	"realtime-service/internal/models"
	"realtime-service/internal/observability"
	"realtime-service/internal/repositories"
	"realtime-service/internal/telemetry"
)

const wsKind = "realtime"

// Dispatcher hands broadcast messages off for presence-aware notification
// fan-out. Enqueueing must never block message delivery.
type Dispatcher interface {
	EnqueueMessage(roomID, senderID, content string)
}

// SocketHandler owns the websocket endpoint: handshake, identity resolution,
// registration and the per-connection event loop.
type SocketHandler struct {
	hub        *Hub
	resolver   *identity.Resolver
	users      repositories.UserRepository
	notifs     repositories.NotificationRepository
	dispatcher Dispatcher
	audit      *telemetry.AuditEmitter
}

// NewSocketHandler constructs a SocketHandler.
func NewSocketHandler(hub *Hub, resolver *identity.Resolver, users repositories.UserRepository, notifs repositories.NotificationRepository, dispatcher Dispatcher, audit *telemetry.AuditEmitter) *SocketHandler {
	return &SocketHandler{
		hub:        hub,
		resolver:   resolver,
		users:      users,
		notifs:     notifs,
		dispatcher: dispatcher,
		audit:      audit,
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection, resolves the handshake identity and starts
// the event loop. Bad authentication is the only reason a connection attempt
// is refused.
func (h *SocketHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("realtime-service/ws").Start(c.Request.Context(), "ws.handshake", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	creds := credentialsFromRequest(c)
	id, err := h.resolver.Resolve(ctx, creds)
	if err != nil {
		observability.IncWSEvent(wsKind, "auth_reject")
		h.audit.Emit(ctx, "WARN", "ws_handshake_rejected", requestID(c), nil)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "insufficient authentication"})
		return
	}

	// Claimed identities without a display name get one from persistence when
	// available; a failed lookup falls back to the placeholder.
	if id.Trust == identity.TrustUnverified && id.Username == identity.PlaceholderUsername {
		if user, lookupErr := h.users.FindByID(ctx, id.UserID); lookupErr == nil {
			id.Username = user.Username
		} else if !errors.Is(lookupErr, repositories.ErrUserNotFound) {
			log.Printf("ws: username lookup failed user=%s: %v", id.UserID, lookupErr)
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := newClient(conn, id)
	client.DeviceID = observability.DeviceIDFromRequest(c.Request)
	client.IP = observability.IPFromRequest(c.Request)
	client.RequestID = requestID(c)
	client.TraceID = span.SpanContext().TraceID().String()

	h.hub.Register(client)
	observability.IncWSActive(wsKind)
	observability.IncWSEvent(wsKind, "ws_connect")
	observability.PublishWSEvent(ctx, "ws_connect", "", connMeta(client))

	go h.readLoop(conn, client)
}

func (h *SocketHandler) readLoop(conn *websocket.Conn, client *Client) {
	var closeReason string
	defer func() {
		h.hub.Unregister(client)
		observability.DecWSActive(wsKind)
		observability.IncWSEvent(wsKind, "ws_disconnect")
		observability.PublishWSEvent(context.Background(), "ws_disconnect", closeReason, connMeta(client))
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent(wsKind, "ws_error")
				observability.PublishWSEvent(context.Background(), "ws_error", closeReason, connMeta(client))
			}
			return
		}
		h.dispatch(client, data)
	}
}

// dispatch routes one inbound frame. Malformed payloads are dropped and
// logged, never surfaced to other clients.
func (h *SocketHandler) dispatch(client *Client, data []byte) {
	var event clientEvent
	if err := json.Unmarshal(data, &event); err != nil {
		log.Printf("ws: malformed frame conn=%s: %v", client.ID, err)
		observability.IncWSEvent(wsKind, "invalid_payload")
		return
	}

	switch event.Type {
	case models.EventTokenUpdated:
		h.handleTokenUpdated(client, event.Payload)
	case models.EventJoinRoom:
		h.handleJoinRoom(client, event.Payload)
	case models.EventSendMessage:
		h.handleSendMessage(client, event.Payload)
	case models.EventTyping:
		h.handleTyping(client, event.Payload)
	case models.EventGetUnreadCount:
		h.handleUnreadCount(client)
	default:
		log.Printf("ws: unknown event type %q conn=%s", event.Type, client.ID)
	}
}

func (h *SocketHandler) handleTokenUpdated(client *Client, payload json.RawMessage) {
	var p tokenUpdatedPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		log.Printf("ws: bad token_updated payload conn=%s: %v", client.ID, err)
		return
	}

	id, err := h.resolver.Reauth(context.Background(), p.Token)
	if err != nil {
		// The connection keeps its current trust level; only the client is told.
		observability.IncWSEvent(wsKind, "token_expired")
		if sendErr := client.Send(models.ServerEvent{
			Type:    models.EventTokenExpired,
			Payload: models.TokenExpiredEvent{Message: "token expired or invalid"},
		}); sendErr != nil {
			log.Printf("ws: token_expired send failed conn=%s: %v", client.ID, sendErr)
		}
		return
	}
	h.hub.UpdateIdentity(client, id)
}

func (h *SocketHandler) handleJoinRoom(client *Client, payload json.RawMessage) {
	var p joinRoomPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		log.Printf("ws: bad join_room payload conn=%s: %v", client.ID, err)
		return
	}
	h.hub.JoinRoom(client, p.RoomID)
}

// handleSendMessage is the broadcast engine entry point: validate, normalize,
// fan out to the room, then hand off to the notification dispatcher without
// waiting for it.
func (h *SocketHandler) handleSendMessage(client *Client, payload json.RawMessage) {
	var p sendMessagePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		log.Printf("ws: bad send_message payload conn=%s: %v", client.ID, err)
		return
	}
	if p.RoomID == "" || p.Content == "" {
		log.Printf("ws: send_message missing roomId or content conn=%s", client.ID)
		observability.IncWSEvent(wsKind, "invalid_payload")
		return
	}

	id := client.Identity()
	msg := models.Message{
		ID:         uuid.NewString(),
		RoomID:     p.RoomID,
		SenderID:   firstNonEmpty(p.SenderID, id.UserID),
		SenderName: firstNonEmpty(p.SenderName, id.Username, identity.PlaceholderUsername),
		Content:    p.Content,
		Timestamp:  time.Now().UTC(),
	}
	if p.Timestamp != nil {
		msg.Timestamp = *p.Timestamp
	}

	h.hub.BroadcastToRoom(msg.RoomID, models.ServerEvent{Type: models.EventNewMessage, Payload: msg})
	h.dispatcher.EnqueueMessage(msg.RoomID, msg.SenderID, msg.Content)
}

func (h *SocketHandler) handleTyping(client *Client, payload json.RawMessage) {
	var p typingPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		log.Printf("ws: bad typing payload conn=%s: %v", client.ID, err)
		return
	}
	id := client.Identity()
	if id.UserID == "" || p.RoomID == "" {
		return
	}
	h.hub.BroadcastToRoomExcept(p.RoomID, client.ID, models.ServerEvent{
		Type:    models.EventUserTyping,
		Payload: models.RoomPresenceEvent{UserID: id.UserID, Username: id.Username, RoomID: p.RoomID},
	})
}

func (h *SocketHandler) handleUnreadCount(client *Client) {
	id := client.Identity()
	if id.UserID == "" {
		return
	}

	count, err := h.notifs.CountUnread(context.Background(), id.UserID)
	if err != nil {
		log.Printf("ws: unread count query failed user=%s: %v", id.UserID, err)
		return
	}
	// The count query went to persistence; the connection may be gone by now.
	if !h.hub.IsRegistered(client.ID) {
		return
	}
	if err := client.Send(models.ServerEvent{Type: models.EventUnreadCount, Payload: count}); err != nil {
		log.Printf("ws: unread count send failed conn=%s: %v", client.ID, err)
	}
}

func credentialsFromRequest(c *gin.Context) identity.Credentials {
	token := c.GetHeader("Authorization")
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		token = token[len("bearer "):]
	}
	if token == "" {
		token = c.Query("token")
	}
	return identity.Credentials{
		Token:           token,
		ClaimedUserID:   c.Query("user_id"),
		ClaimedUsername: c.Query("username"),
	}
}

func requestID(c *gin.Context) string {
	if id := c.GetHeader("X-Request-ID"); id != "" {
		return id
	}
	return uuid.NewString()
}

func connMeta(client *Client) observability.ConnMeta {
	id := client.Identity()
	return observability.ConnMeta{
		ConnID:      client.ID,
		UserID:      id.UserID,
		DeviceID:    client.DeviceID,
		IP:          client.IP,
		RequestID:   client.RequestID,
		TraceID:     client.TraceID,
		ConnectedAt: client.ConnectedAt,
	}
}
