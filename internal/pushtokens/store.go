package pushtokens

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultTTL = 30 * 24 * time.Hour

// Store keeps the set of push-delivery tokens registered per user.
type Store interface {
	Add(ctx context.Context, userID, token string) error
	Remove(ctx context.Context, userID, token string) error
	Tokens(ctx context.Context, userID string) ([]string, error)
}

// RedisStore is a redis-set-backed Store. Token sets expire so tokens of
// users who stop using the app age out.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore constructs a RedisStore.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, ttl: defaultTTL}
}

// Add registers a token for a user and refreshes the set's TTL.
func (s *RedisStore) Add(ctx context.Context, userID, token string) error {
	key := s.key(userID)
	if err := s.client.SAdd(ctx, key, token).Err(); err != nil {
		return fmt.Errorf("add push token: %w", err)
	}
	return s.client.Expire(ctx, key, s.ttl).Err()
}

// Remove drops a token for a user.
func (s *RedisStore) Remove(ctx context.Context, userID, token string) error {
	if err := s.client.SRem(ctx, s.key(userID), token).Err(); err != nil {
		return fmt.Errorf("remove push token: %w", err)
	}
	return nil
}

// Tokens returns a user's registered tokens.
func (s *RedisStore) Tokens(ctx context.Context, userID string) ([]string, error) {
	tokens, err := s.client.SMembers(ctx, s.key(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list push tokens: %w", err)
	}
	return tokens, nil
}

func (s *RedisStore) key(userID string) string {
	return "push_tokens:" + userID
}
