package models

import "time"

// Socket event names, client to server.
const (
	EventTokenUpdated   = "token_updated"
	EventJoinRoom       = "join_room"
	EventSendMessage    = "send_message"
	EventTyping         = "typing"
	EventGetUnreadCount = "get_unread_notifications_count"
)

// Socket event names, server to client.
const (
	EventTokenExpired    = "token_expired"
	EventUserJoined      = "user_joined"
	EventNewMessage      = "new_message"
	EventUserTyping      = "user_typing"
	EventOnlineUsers     = "online_users"
	EventNotification    = "notification"
	EventNewNotification = "new_notification"
	EventUnreadCount     = "unread_notifications_count"
)

// ServerEvent is the envelope every server-to-client frame uses.
type ServerEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// OnlineUser is one entry of the global online_users snapshot.
type OnlineUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// RoomPresenceEvent is the payload of user_joined and user_typing.
type RoomPresenceEvent struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	RoomID   string `json:"roomId"`
}

// TokenExpiredEvent signals a failed post-handshake re-authentication.
type TokenExpiredEvent struct {
	Message string `json:"message"`
}

// NotificationEvent is the generic notification frame pushed to live connections.
type NotificationEvent struct {
	Type       string     `json:"type"`
	Content    string     `json:"content"`
	SenderInfo SenderInfo `json:"senderInfo"`
	EntityInfo EntityInfo `json:"entityInfo"`
	Timestamp  time.Time  `json:"timestamp"`
}

type SenderInfo struct {
	ID string `json:"id"`
}

type EntityInfo struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}
