// Package csrfstate issues and consumes the single-use state tokens that
// bind an OAuth initiation to its callback. A token is accepted by Consume
// at most once; unknown, expired and already-consumed tokens are
// indistinguishable to callers.
package csrfstate

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

// state tokens carry 256 bits of entropy
const tokenBytes = 32

// returned by Consume for any token that cannot be redeemed. Deliberately a
// single error: distinguishing "expired" from "never issued" would leak
// information to a forger.
var ErrInvalidState = errors.New("invalid or expired state token")

// Store binds an OAuth initiation to its callback across instances.
type Store interface {
	// issues a fresh single-use token bound to a provider tag
	Issue(ctx context.Context, provider string) (string, error)

	// redeems a token exactly once, returning the provider it was issued
	// for. Concurrent consumption of the same token yields one success.
	Consume(ctx context.Context, token string) (string, error)
}

// generates an unguessable url-safe token
func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}
