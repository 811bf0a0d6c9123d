package token

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// represents the signed session claims
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

var (
	// the token is malformed, mis-signed, or carries unexpected claims
	ErrInvalid = errors.New("invalid token")

	// the token was well-formed and correctly signed but is past its expiry
	ErrExpired = errors.New("token expired")

	// the token was explicitly revoked before its natural expiry
	ErrRevoked = errors.New("token revoked")
)
