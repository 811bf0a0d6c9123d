package authflow

import (
	"context"
	"errors"
	"time"

	"github.com/keyline/server/internal/csrfstate"
	"github.com/keyline/server/internal/identity"
	"github.com/keyline/server/internal/token"
	"github.com/keyline/server/keyline/users"
)

// Result is returned to the boundary layer after successful authentication.
type Result struct {
	Token string
	User  *users.User

	// true when this authentication created the account
	IsNewAccount bool
}

// UserStore is the slice of the user repository the orchestrator needs.
type UserStore interface {
	FindByID(ctx context.Context, userID string) (*users.User, error)
	FindByEmail(ctx context.Context, email string) (*users.User, error)
	FindByProviderSubject(ctx context.Context, provider, subject string) (*users.User, error)
	CreateLocal(ctx context.Context, email, passwordDigest string) (*users.User, error)
	CreateFederated(ctx context.Context, provider, subject, email, displayName, avatarURL string, emailVerified bool) (*users.User, error)
	LinkProvider(ctx context.Context, userID, provider, subject string) (*users.User, error)
	UpdateFederatedProfile(ctx context.Context, userID, displayName, avatarURL string, emailVerified bool) (*users.User, error)
	TouchLastLogin(ctx context.Context, userID string) error
}

// TokenIssuer is the session-issuance capability the orchestrator depends on.
type TokenIssuer interface {
	Issue(userID, email string) (string, error)
	Validate(ctx context.Context, tokenString string) (*token.Claims, error)
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
}

// Service ties the credential verifier, identity providers, account
// resolution, CSRF state store and session issuer together for the three
// entry flows.
type Service struct {
	store     UserStore
	providers *identity.Registry
	states    csrfstate.Store
	issuer    TokenIssuer

	// bound on the provider code-for-token exchange; no flow may hang
	exchangeTimeout time.Duration

	// when set, password login is rejected for unverified accounts
	requireVerifiedEmail bool
}

// Option configures optional service behavior.
type Option func(*Service)

// WithExchangeTimeout bounds provider token-exchange calls.
func WithExchangeTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.exchangeTimeout = d
		}
	}
}

// WithRequireVerifiedEmail gates password login on a verified email address.
func WithRequireVerifiedEmail(require bool) Option {
	return func(s *Service) {
		s.requireVerifiedEmail = require
	}
}

// creates the auth orchestrator
func NewService(store UserStore, providers *identity.Registry, states csrfstate.Store, issuer TokenIssuer, opts ...Option) *Service {
	s := &Service{
		store:           store,
		providers:       providers,
		states:          states,
		issuer:          issuer,
		exchangeTimeout: 10 * time.Second,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

var (
	// uniform failure for unknown email, wrong password, and password login
	// against a federated-only account. Callers must not branch user-visible
	// messaging on which case occurred.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// password login rejected because the email is unverified (policy-gated)
	ErrEmailNotVerified = errors.New("email not verified")

	// the provider code-for-token exchange exceeded its deadline
	ErrProviderTimeout = errors.New("provider exchange timed out")

	// federated identity carries no verified email and no matching account;
	// there is nothing safe to link or create
	ErrUnusableIdentity = errors.New("provider identity has no usable email")
)

// ValidationError reports a field-level input problem the user can correct.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}

// AsValidationError unwraps err into a *ValidationError if it is one.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}

	return nil, false
}
