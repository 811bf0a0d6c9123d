package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// postgres unique_violation
const pgUniqueViolation = "23505"

// creates a new user repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// finds a user by their ID
func (r *Repository) FindByID(ctx context.Context, userID string) (*User, error) {
	return r.queryOne(ctx, queryFindByID, userID)
}

// finds a user by email, case-insensitively
func (r *Repository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.queryOne(ctx, queryFindByEmail, email)
}

// finds a user by the subject an identity provider asserted for them
func (r *Repository) FindByProviderSubject(ctx context.Context, provider, subject string) (*User, error) {
	query, err := subjectQuery(provider)
	if err != nil {
		return nil, err
	}

	return r.queryOne(ctx, query, subject)
}

// creates a password account. The uniqueness check and the insert are a
// single statement so concurrent registrations for the same email cannot
// both succeed.
func (r *Repository) CreateLocal(ctx context.Context, email, passwordDigest string) (*User, error) {
	user, err := r.queryOne(ctx, queryCreateLocal, email, passwordDigest)
	if isUniqueViolation(err) {
		return nil, ErrEmailTaken
	}

	return user, err
}

// creates an account whose sole credential is a federated identity
func (r *Repository) CreateFederated(
	ctx context.Context,
	provider, subject, email, displayName, avatarURL string,
	emailVerified bool,
) (*User, error) {
	var query string

	switch provider {
	case "google":
		query = queryCreateGoogleUser
	case "apple":
		query = queryCreateAppleUser
	default:
		return nil, ErrUnknownProvider
	}

	user, err := r.queryOne(ctx, query, email, subject, displayName, avatarURL, emailVerified)
	if isUniqueViolation(err) {
		return nil, ErrEmailTaken
	}

	return user, err
}

// attaches a federated subject to an existing account. Fails with
// ErrNotFound if the account already has an identity for this provider,
// so a race between two link attempts resolves to exactly one winner.
func (r *Repository) LinkProvider(ctx context.Context, userID, provider, subject string) (*User, error) {
	var query string

	switch provider {
	case "google":
		query = queryLinkGoogleSubject
	case "apple":
		query = queryLinkAppleSubject
	default:
		return nil, ErrUnknownProvider
	}

	return r.queryOne(ctx, query, subject, userID)
}

// refreshes mutable profile fields from newly supplied claims. Empty claim
// values leave the stored fields untouched.
func (r *Repository) UpdateFederatedProfile(
	ctx context.Context,
	userID, displayName, avatarURL string,
	emailVerified bool,
) (*User, error) {
	return r.queryOne(ctx, queryUpdateFederatedProfile, displayName, avatarURL, emailVerified, userID)
}

// records a successful login
func (r *Repository) TouchLastLogin(ctx context.Context, userID string) error {
	if _, err := r.db.Exec(ctx, queryTouchLastLogin, userID); err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}

	return nil
}

// runs a single-row query and scans the user columns
func (r *Repository) queryOne(ctx context.Context, query string, args ...any) (*User, error) {
	var user User

	err := r.db.QueryRow(ctx, query, args...).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordDigest,
		&user.GoogleSubject,
		&user.AppleSubject,
		&user.DisplayName,
		&user.AvatarURL,
		&user.IsVerified,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.LastLoginAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, err
	}

	return &user, nil
}

// maps a provider tag to its subject lookup query
func subjectQuery(provider string) (string, error) {
	switch provider {
	case "google":
		return queryFindByGoogleSubject, nil
	case "apple":
		return queryFindByAppleSubject, nil
	default:
		return "", ErrUnknownProvider
	}
}

// reports whether err is a postgres unique constraint violation
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
