package csrfstate

import (
	"context"
	"sync"
	"time"
)

// in-process store. Suitable for a single instance; multi-instance
// deployments should use the Redis store so any instance can consume a
// token issued by another.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]pendingState
	ttl    time.Duration

	// injectable for tests
	now func() time.Time
}

type pendingState struct {
	provider  string
	expiresAt time.Time
}

// creates an in-memory state store with the given token lifetime
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		states: make(map[string]pendingState),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *MemoryStore) Issue(_ context.Context, provider string) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.states[token] = pendingState{
		provider:  provider,
		expiresAt: s.now().Add(s.ttl),
	}

	return token, nil
}

func (s *MemoryStore) Consume(_ context.Context, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[token]
	if !ok {
		return "", ErrInvalidState
	}

	// deleting under the lock makes consumption exactly-once: a concurrent
	// caller no longer finds the token
	delete(s.states, token)

	if s.now().After(state.expiresAt) {
		return "", ErrInvalidState
	}

	return state.provider, nil
}

// drops states past their expiry; called periodically by the janitor
func (s *MemoryStore) PruneExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	pruned := 0

	for token, state := range s.states {
		if now.After(state.expiresAt) {
			delete(s.states, token)
			pruned++
		}
	}

	return pruned
}
