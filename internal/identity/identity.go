// Package identity wraps the Google and Apple OpenID Connect flows behind a
// single provider interface: building authorization URLs and exchanging
// authorization codes for verified identity claims.
package identity

import (
	"context"
	"errors"
	"fmt"
)

// provider tags used in routes, state records and user columns
const (
	ProviderGoogle = "google"
	ProviderApple  = "apple"
)

// Claims are the normalized attributes extracted from a validated provider
// identity token. Email and profile fields are optional: Apple only supplies
// them on the user's first authorization, and absence on later logins means
// "not provided this time", never "cleared".
type Claims struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// Provider is the capability a federated identity provider exposes to the
// rest of the service. Implementations differ in callback transport and
// claim availability but not in shape.
type Provider interface {
	// the provider tag, e.g. "google"
	Name() string

	// builds the authorization redirect URL embedding the given CSRF state
	AuthCodeURL(state string) string

	// performs the server-to-server code-for-token exchange and validates
	// the returned identity token before normalizing its claims
	Exchange(ctx context.Context, code string) (*Claims, error)
}

var (
	// the user denied consent at the provider
	ErrDenied = errors.New("user denied provider consent")

	// the code-for-token exchange failed (network or token endpoint error)
	ErrExchangeFailed = errors.New("provider token exchange failed")

	// the identity token failed signature or claim validation
	ErrTokenInvalid = errors.New("provider identity token invalid")

	// no provider registered under the requested tag
	ErrUnknownProvider = errors.New("unknown identity provider")
)

// Registry holds the configured providers keyed by tag.
type Registry struct {
	providers map[string]Provider
}

// creates a registry from the given providers
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}

	for _, p := range providers {
		r.providers[p.Name()] = p
	}

	return r
}

// returns the provider registered under a tag
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}

	return p, nil
}
