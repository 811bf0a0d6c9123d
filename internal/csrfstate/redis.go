package csrfstate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyStatePrefix = "authstate:"

// Redis-backed store for horizontally scaled deployments. Expiry is
// delegated to redis TTLs and consumption uses GETDEL so that exactly one
// instance wins a concurrent replay.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// creates a redis-backed state store with the given token lifetime
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Issue(ctx context.Context, provider string) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}

	if err := s.client.Set(ctx, keyStatePrefix+token, provider, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store state token: %w", err)
	}

	return token, nil
}

func (s *RedisStore) Consume(ctx context.Context, token string) (string, error) {
	provider, err := s.client.GetDel(ctx, keyStatePrefix+token).Result()

	if errors.Is(err, redis.Nil) {
		return "", ErrInvalidState
	}

	if err != nil {
		return "", fmt.Errorf("failed to consume state token: %w", err)
	}

	return provider, nil
}
