package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"timed-quiz-service/internal/domain"
)

// EphemeralStore keeps short-lived values (trial answer keys) in Redis and lets
// Redis expire them.
type EphemeralStore struct {
	client *redis.Client
}

func NewEphemeralStore(client *redis.Client) *EphemeralStore {
	return &EphemeralStore{client: client}
}

func (s *EphemeralStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *EphemeralStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrKeyNotFound
	}
	return data, err
}

func (s *EphemeralStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}
