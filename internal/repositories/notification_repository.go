package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"realtime-service/internal/models"
)

var ErrNotificationNotFound = errors.New("notification not found")

// NotificationRepository defines interactions with persisted notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n models.Notification) (models.Notification, error)
	ListForUser(ctx context.Context, userID string) ([]models.Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id int64, userID string) error
	MarkAllRead(ctx context.Context, userID string) error
	Delete(ctx context.Context, id int64, userID string) error
}

// NotificationRepo is a sqlx-backed repository.
type NotificationRepo struct {
	db *sqlx.DB
}

// NewNotificationRepo constructs NotificationRepo.
func NewNotificationRepo(db *sqlx.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

// Create stores a notification record.
func (r *NotificationRepo) Create(ctx context.Context, n models.Notification) (models.Notification, error) {
	err := r.db.QueryRowxContext(ctx, `INSERT INTO notifications (recipient_id, sender_id, type, content, entity_id, entity_type)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, recipient_id, sender_id, type, content, entity_id, entity_type, is_read, created_at`,
		n.RecipientID, n.SenderID, n.Type, n.Content, n.EntityID, n.EntityType).
		Scan(&n.ID, &n.RecipientID, &n.SenderID, &n.Type, &n.Content, &n.EntityID, &n.EntityType, &n.IsRead, &n.CreatedAt)
	return n, err
}

// ListForUser returns a user's notifications, newest first.
func (r *NotificationRepo) ListForUser(ctx context.Context, userID string) ([]models.Notification, error) {
	var list []models.Notification
	err := r.db.SelectContext(ctx, &list, `SELECT id, recipient_id, sender_id, type, content, entity_id, entity_type, is_read, created_at
        FROM notifications WHERE recipient_id=$1 ORDER BY created_at DESC`, userID)
	return list, err
}

// CountUnread returns the number of unread notifications for a user.
func (r *NotificationRepo) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM notifications WHERE recipient_id=$1 AND is_read = FALSE`, userID)
	return count, err
}

// MarkRead flags one of the user's notifications as read.
func (r *NotificationRepo) MarkRead(ctx context.Context, id int64, userID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE id=$1 AND recipient_id=$2`, id, userID)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// MarkAllRead flags all of the user's notifications as read.
func (r *NotificationRepo) MarkAllRead(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE recipient_id=$1 AND is_read = FALSE`, userID)
	return err
}

// Delete removes one of the user's notifications.
func (r *NotificationRepo) Delete(ctx context.Context, id int64, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE id=$1 AND recipient_id=$2`, id, userID)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func checkAffected(res sql.Result) error {
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
