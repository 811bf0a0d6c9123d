// Package authflow is the authentication orchestrator: a short linear state
// machine per entry flow (password login, OAuth initiate, OAuth callback)
// with an explicit failure exit at every state.
package authflow

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/keyline/server/internal/cryptox"
	"github.com/keyline/server/internal/logger"
	"github.com/keyline/server/keyline/users"
)

const minPasswordLength = 8

// Register creates a password account. The email-uniqueness check and insert
// are atomic in the store, so concurrent registrations for one email resolve
// to a single account and users.ErrEmailTaken for the rest.
func (s *Service) Register(ctx context.Context, email, password string) (*users.User, error) {
	email, err := validateEmail(email)
	if err != nil {
		return nil, err
	}

	if len(password) < minPasswordLength {
		return nil, &ValidationError{Field: "password", Reason: fmt.Sprintf("must be at least %d characters", minPasswordLength)}
	}

	digest, err := cryptox.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.store.CreateLocal(ctx, email, digest)
	if err != nil {
		return nil, err
	}

	logger.Info("user registered", "user_id", user.ID)

	return user, nil
}

// PasswordLogin verifies email+password and issues a session. The failure is
// ErrInvalidCredentials uniformly for "no such email", "wrong password" and
// "account has no password": response content must not reveal which.
func (s *Service) PasswordLogin(ctx context.Context, email, password string) (*Result, error) {
	email, err := validateEmail(email)
	if err != nil {
		return nil, err
	}

	if password == "" {
		return nil, &ValidationError{Field: "password", Reason: "is required"}
	}

	user, err := s.store.FindByEmail(ctx, email)
	if errors.Is(err, users.ErrNotFound) {
		// burn a hash comparison anyway so timing does not reveal whether
		// the account exists
		_ = cryptox.VerifyDummyPassword(password)
		return nil, ErrInvalidCredentials
	}

	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if !user.HasPassword() {
		_ = cryptox.VerifyDummyPassword(password)
		return nil, ErrInvalidCredentials
	}

	if err := cryptox.VerifyPassword(password, *user.PasswordDigest); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			return nil, ErrInvalidCredentials
		}

		return nil, fmt.Errorf("failed to verify password: %w", err)
	}

	if s.requireVerifiedEmail && !user.IsVerified {
		return nil, ErrEmailNotVerified
	}

	return s.issueSession(ctx, user, false)
}

// Logout revokes the presented session token by its ID. Revocation outlives
// client-side cookie deletion, which only removes local possession.
func (s *Service) Logout(ctx context.Context, rawToken string) error {
	claims, err := s.issuer.Validate(ctx, rawToken)
	if err != nil {
		return err
	}

	if err := s.issuer.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	logger.Info("session revoked", "user_id", claims.UserID, "token_id", claims.ID)

	return nil
}

// CurrentUser resolves the account behind a validated user ID.
func (s *Service) CurrentUser(ctx context.Context, userID string) (*users.User, error) {
	return s.store.FindByID(ctx, userID)
}

// final orchestration step shared by every flow: mint the token, then record
// the login
func (s *Service) issueSession(ctx context.Context, user *users.User, isNew bool) (*Result, error) {
	signed, err := s.issuer.Issue(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}

	// last_login_at moves only after full orchestration success
	if err := s.store.TouchLastLogin(ctx, user.ID); err != nil {
		logger.ErrorErr(err, "failed to record login time", "user_id", user.ID)
	}

	return &Result{Token: signed, User: user, IsNewAccount: isNew}, nil
}

// normalizes and validates an email address, returning the normalized form
func validateEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if email == "" {
		return "", &ValidationError{Field: "email", Reason: "is required"}
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", &ValidationError{Field: "email", Reason: "is not a valid address"}
	}

	return email, nil
}
