package identity

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newTestGoogleProvider() *GoogleProvider {
	return &GoogleProvider{
		oauth: &oauth2.Config{
			ClientID:     "client-id.apps.googleusercontent.com",
			ClientSecret: "client-secret",
			RedirectURL:  "https://api.example.com/api/v1/auth/google/callback",
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://accounts.google.com/o/oauth2/v2/auth",
				TokenURL: "https://oauth2.googleapis.com/token",
			},
			Scopes: []string{"openid", "profile", "email"},
		},
		limiter: newExchangeLimiter(),
	}
}

func TestGoogleAuthCodeURL(t *testing.T) {
	provider := newTestGoogleProvider()

	authURL := provider.AuthCodeURL("state-token-1")

	parsed, err := url.Parse(authURL)
	require.NoError(t, err)

	query := parsed.Query()
	assert.Equal(t, "state-token-1", query.Get("state"))
	assert.Equal(t, "client-id.apps.googleusercontent.com", query.Get("client_id"))
	assert.Equal(t, "openid profile email", query.Get("scope"))
	assert.Equal(t, "code", query.Get("response_type"))
	assert.Equal(t, "select_account", query.Get("prompt"))
	assert.Equal(t, "https://api.example.com/api/v1/auth/google/callback", query.Get("redirect_uri"))
}

func TestRegistry(t *testing.T) {
	google := newTestGoogleProvider()
	registry := NewRegistry(google)

	got, err := registry.Get(ProviderGoogle)
	require.NoError(t, err)
	assert.Same(t, google, got)

	_, err = registry.Get("github")
	assert.ErrorIs(t, err, ErrUnknownProvider)

	_, err = registry.Get(ProviderApple)
	assert.ErrorIs(t, err, ErrUnknownProvider, "unconfigured providers are unknown")
}
