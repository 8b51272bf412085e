package ws

import (
	"encoding/json"
	"time"
)

// clientEvent is the envelope every client-to-server frame uses.
type clientEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type tokenUpdatedPayload struct {
	Token string `json:"token"`
}

type joinRoomPayload struct {
	RoomID string `json:"roomId"`
}

type typingPayload struct {
	RoomID string `json:"roomId"`
}

type sendMessagePayload struct {
	RoomID     string     `json:"roomId"`
	SenderID   string     `json:"senderId"`
	SenderName string     `json:"senderName"`
	Content    string     `json:"content"`
	Timestamp  *time.Time `json:"timestamp"`
}
