package users

import (
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// handles user database operations
type Repository struct {
	db *pgxpool.Pool
}

// represents an account in the system. An account always carries at least
// one usable credential: a password digest, a Google subject, or an Apple
// subject (enforced by a CHECK constraint).
type User struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	PasswordDigest *string    `json:"-"`
	GoogleSubject  *string    `json:"-"`
	AppleSubject   *string    `json:"-"`
	DisplayName    string     `json:"name"`
	AvatarURL      *string    `json:"avatar_url,omitempty"`
	IsVerified     bool       `json:"is_verified"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	LastLoginAt    *time.Time `json:"-"`
}

var (
	// no user matches the lookup
	ErrNotFound = errors.New("user not found")

	// the email address is already registered, possibly under a different
	// credential type
	ErrEmailTaken = errors.New("email already registered")

	// the provider tag is not one of google or apple
	ErrUnknownProvider = errors.New("unknown identity provider")
)

// HasPassword reports whether the account can be used for password login.
func (u *User) HasPassword() bool {
	return u.PasswordDigest != nil && *u.PasswordDigest != ""
}

// SubjectFor returns the stored federated subject for a provider, if any.
func (u *User) SubjectFor(provider string) string {
	switch provider {
	case "google":
		if u.GoogleSubject != nil {
			return *u.GoogleSubject
		}
	case "apple":
		if u.AppleSubject != nil {
			return *u.AppleSubject
		}
	}

	return ""
}
