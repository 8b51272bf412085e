package models

import "time"

// Message is a chat message as it crosses the realtime core. Durable storage of
// messages belongs to the chat persistence service; this service only normalizes
// and fans the message out.
type Message struct {
	ID         string    `json:"id"`
	RoomID     string    `json:"roomId"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
}
