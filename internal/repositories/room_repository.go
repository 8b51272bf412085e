package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// RoomRepository exposes the room participant records owned by the chat
// persistence service.
type RoomRepository interface {
	Participants(ctx context.Context, roomID string) ([]string, error)
	AddParticipant(ctx context.Context, roomID, userID string) error
}

// RoomRepo is a sqlx-backed repository.
type RoomRepo struct {
	db *sqlx.DB
}

// NewRoomRepo constructs RoomRepo.
func NewRoomRepo(db *sqlx.DB) *RoomRepo {
	return &RoomRepo{db: db}
}

// Participants returns the userIds registered as members of a room.
func (r *RoomRepo) Participants(ctx context.Context, roomID string) ([]string, error) {
	var ids []string
	err := r.db.SelectContext(ctx, &ids, `SELECT user_id FROM room_participants WHERE room_id=$1`, roomID)
	return ids, err
}

// AddParticipant registers a user as a member of a room. Idempotent.
func (r *RoomRepo) AddParticipant(ctx context.Context, roomID, userID string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO room_participants (room_id, user_id) VALUES ($1, $2)
        ON CONFLICT (room_id, user_id) DO NOTHING`, roomID, userID)
	return err
}
