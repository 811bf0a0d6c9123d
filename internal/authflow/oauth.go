package authflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/keyline/server/internal/csrfstate"
	"github.com/keyline/server/internal/identity"
	"github.com/keyline/server/internal/logger"
	"github.com/keyline/server/keyline/users"
)

// OAuthInitiate issues a single-use state token bound to the provider and
// returns the authorization URL to redirect the user to. The orchestrator
// holds no further state; the binding lives in the CSRF state store.
func (s *Service) OAuthInitiate(ctx context.Context, providerName string) (string, error) {
	provider, err := s.providers.Get(providerName)
	if err != nil {
		return "", err
	}

	state, err := s.states.Issue(ctx, provider.Name())
	if err != nil {
		return "", fmt.Errorf("failed to issue state token: %w", err)
	}

	return provider.AuthCodeURL(state), nil
}

// OAuthCallback drives the callback state machine:
// state consumed, code exchanged, identity resolved, session issued.
// A provider-supplied error parameter exits early before any exchange, and a
// failed state consume is always terminal; both still destroy the pending
// state so the token cannot be replayed.
func (s *Service) OAuthCallback(ctx context.Context, providerName, code, state, providerErr, userPayload string) (*Result, error) {
	if providerErr != "" {
		// the user denied consent (or the provider failed the request);
		// consume the state so the flow cannot be resumed
		if state != "" {
			_, _ = s.states.Consume(ctx, state)
		}

		logger.Info("provider returned error on callback", "provider", providerName, "provider_error", providerErr)

		return nil, identity.ErrDenied
	}

	boundProvider, err := s.states.Consume(ctx, state)
	if err != nil {
		return nil, err
	}

	// a state issued for one provider cannot authorize another's callback
	if boundProvider != providerName {
		return nil, csrfstate.ErrInvalidState
	}

	if code == "" {
		return nil, &ValidationError{Field: "code", Reason: "is required"}
	}

	provider, err := s.providers.Get(providerName)
	if err != nil {
		return nil, err
	}

	exchangeCtx, cancel := context.WithTimeout(ctx, s.exchangeTimeout)
	defer cancel()

	claims, err := provider.Exchange(exchangeCtx, code)
	if err != nil {
		if exchangeCtx.Err() != nil && errors.Is(exchangeCtx.Err(), context.DeadlineExceeded) {
			return nil, ErrProviderTimeout
		}

		return nil, err
	}

	// apple relays name/email through the client on first authorization only
	if providerName == identity.ProviderApple {
		identity.MergeAppleUserPayload(claims, userPayload)
	}

	user, isNew, err := s.resolveFederated(ctx, providerName, claims)
	if err != nil {
		return nil, err
	}

	return s.issueSession(ctx, user, isNew)
}

// resolveFederated maps a verified identity to a user record: find by
// subject, link by verified email, or create. Linking is the deliberate
// account-merge path and is logged for audit.
func (s *Service) resolveFederated(ctx context.Context, providerName string, claims *identity.Claims) (*users.User, bool, error) {
	// 1. known federated identity
	user, err := s.store.FindByProviderSubject(ctx, providerName, claims.Subject)
	if err == nil {
		// refresh profile from any newly supplied claims; absent claims
		// leave stored fields untouched
		updated, uerr := s.store.UpdateFederatedProfile(ctx, user.ID, claims.Name, claims.Picture, claims.EmailVerified)
		if uerr != nil {
			logger.ErrorErr(uerr, "failed to refresh federated profile", "user_id", user.ID)
			return user, false, nil
		}

		return updated, false, nil
	}

	if !errors.Is(err, users.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to look up federated identity: %w", err)
	}

	// 2. existing account sharing the email. Auto-linking requires the
	// provider to have verified the email, otherwise a matching-but-forged
	// federated email could take over the account.
	if claims.Email != "" && claims.EmailVerified {
		existing, err := s.store.FindByEmail(ctx, claims.Email)

		if err == nil && existing.SubjectFor(providerName) == "" {
			linked, lerr := s.store.LinkProvider(ctx, existing.ID, providerName, claims.Subject)

			if errors.Is(lerr, users.ErrNotFound) {
				// lost a link race; the winner stored a subject for this
				// provider, so resolve through it
				return s.resolveLinkRace(ctx, providerName, claims)
			}

			if lerr != nil {
				return nil, false, fmt.Errorf("failed to link provider identity: %w", lerr)
			}

			logger.Info("federated identity linked to existing account",
				"user_id", linked.ID,
				"provider", providerName,
			)

			if updated, uerr := s.store.UpdateFederatedProfile(ctx, linked.ID, claims.Name, claims.Picture, claims.EmailVerified); uerr == nil {
				linked = updated
			}

			return linked, false, nil
		}

		if err != nil && !errors.Is(err, users.ErrNotFound) {
			return nil, false, fmt.Errorf("failed to look up account by email: %w", err)
		}
	}

	// 3. first login for an unseen identity: create an account with the
	// federated identity as its sole credential
	if claims.Email == "" {
		return nil, false, ErrUnusableIdentity
	}

	user, err = s.store.CreateFederated(ctx, providerName, claims.Subject, claims.Email, claims.Name, claims.Picture, claims.EmailVerified)
	if err != nil {
		return nil, false, err
	}

	logger.Info("user created from federated login", "user_id", user.ID, "provider", providerName)

	return user, true, nil
}

// after losing a concurrent link race, the subject lookup must now succeed
func (s *Service) resolveLinkRace(ctx context.Context, providerName string, claims *identity.Claims) (*users.User, bool, error) {
	user, err := s.store.FindByProviderSubject(ctx, providerName, claims.Subject)
	if err != nil {
		return nil, false, fmt.Errorf("failed to resolve link race: %w", err)
	}

	return user, false, nil
}
