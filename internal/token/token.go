// Package token mints and validates the signed session tokens returned to
// clients after authentication, and tracks explicit revocations.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// grace window applied to expiry checks so distributed clock drift does not
// cause false rejections
const clockSkewLeeway = 30 * time.Second

// Issuer mints, validates and revokes session tokens. The signing secret is
// held server-side only and never reaches clients.
type Issuer struct {
	secret      []byte
	ttl         time.Duration
	revocations RevocationSet

	// injectable for tests
	now func() time.Time
}

// creates a token issuer with the given signing secret and session lifetime
func NewIssuer(secret string, ttl time.Duration, revocations RevocationSet) *Issuer {
	return &Issuer{
		secret:      []byte(secret),
		ttl:         ttl,
		revocations: revocations,
		now:         time.Now,
	}
}

// Issue mints a signed session token for a user. Each token carries a unique
// jti so it can be individually revoked.
func (i *Issuer) Issue(userID, email string) (string, error) {
	if len(i.secret) == 0 {
		return "", fmt.Errorf("signing secret not configured")
	}

	now := i.now()

	claims := Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := tok.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// Validate checks a presented token and returns its claims. Checks run in
// order: structure and signature (ErrInvalid), expiry with skew grace
// (ErrExpired), then revocation set membership (ErrRevoked).
func (i *Issuer) Validate(ctx context.Context, tokenString string) (*Claims, error) {
	tok, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}

			return i.secret, nil
		},
		jwt.WithLeeway(clockSkewLeeway),
		jwt.WithTimeFunc(i.now),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}

		return nil, ErrInvalid
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid || claims.ID == "" || claims.UserID == "" {
		return nil, ErrInvalid
	}

	revoked, err := i.revocations.Contains(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check revocation set: %w", err)
	}

	if revoked {
		return nil, ErrRevoked
	}

	return claims, nil
}

// Revoke invalidates a token by its jti until the moment it would have
// expired naturally. Entries past that point need not be retained.
func (i *Issuer) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	return i.revocations.Add(ctx, tokenID, expiresAt)
}
