package models

import "time"

// Notification is a persisted notification record created by the dispatcher.
type Notification struct {
	ID          int64     `db:"id" json:"id"`
	RecipientID string    `db:"recipient_id" json:"recipient_id"`
	SenderID    string    `db:"sender_id" json:"sender_id"`
	Type        string    `db:"type" json:"type"`
	Content     string    `db:"content" json:"content"`
	EntityID    string    `db:"entity_id" json:"entity_id"`
	EntityType  string    `db:"entity_type" json:"entity_type"`
	IsRead      bool      `db:"is_read" json:"is_read"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// User is the slice of the user record this service reads (display names).
type User struct {
	ID       string `db:"id" json:"id"`
	Username string `db:"username" json:"username"`
}
