package token

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyRevokedPrefix = "revoked:"

// RevocationSet records token IDs invalidated before their natural expiry.
// Shared across all concurrent requests; implementations must be safe for
// concurrent use.
type RevocationSet interface {
	// marks a token ID revoked until the token's own expiry
	Add(ctx context.Context, tokenID string, expiresAt time.Time) error

	// reports whether a token ID has been revoked
	Contains(ctx context.Context, tokenID string) (bool, error)
}

// in-process revocation set. Membership checks are O(1); expired entries are
// dropped by the janitor since the tokens they belong to can no longer
// validate anyway.
type MemoryRevocations struct {
	mu      sync.RWMutex
	entries map[string]time.Time

	// injectable for tests
	now func() time.Time
}

// creates an in-memory revocation set
func NewMemoryRevocations() *MemoryRevocations {
	return &MemoryRevocations{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (m *MemoryRevocations) Add(_ context.Context, tokenID string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[tokenID] = expiresAt
	return nil
}

func (m *MemoryRevocations) Contains(_ context.Context, tokenID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	expiresAt, ok := m.entries[tokenID]
	if !ok {
		return false, nil
	}

	// past the token's own expiry the entry is dead weight but still a
	// truthful answer
	return !m.now().After(expiresAt.Add(clockSkewLeeway)), nil
}

// drops entries whose tokens have expired naturally; called periodically by
// the janitor
func (m *MemoryRevocations) PruneExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	pruned := 0

	for tokenID, expiresAt := range m.entries {
		if now.After(expiresAt.Add(clockSkewLeeway)) {
			delete(m.entries, tokenID)
			pruned++
		}
	}

	return pruned
}

// redis-backed revocation set for multi-instance deployments. Entries expire
// with the token they revoke, so the set never needs explicit pruning.
type RedisRevocations struct {
	client *redis.Client
}

// creates a redis-backed revocation set
func NewRedisRevocations(client *redis.Client) *RedisRevocations {
	return &RedisRevocations{client: client}
}

func (r *RedisRevocations) Add(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt.Add(clockSkewLeeway))
	if ttl <= 0 {
		// token already expired; nothing to revoke
		return nil
	}

	if err := r.client.Set(ctx, keyRevokedPrefix+tokenID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to record revocation: %w", err)
	}

	return nil
}

func (r *RedisRevocations) Contains(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.client.Exists(ctx, keyRevokedPrefix+tokenID).Result()

	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("failed to check revocation: %w", err)
	}

	return n > 0, nil
}
