package authflow

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyline/server/internal/csrfstate"
	"github.com/keyline/server/internal/identity"
	"github.com/keyline/server/keyline/users"
)

// pulls the state parameter back out of an authorization URL
func stateFrom(t *testing.T, authURL string) string {
	t.Helper()

	parsed, err := url.Parse(authURL)
	require.NoError(t, err)

	state := parsed.Query().Get("state")
	require.NotEmpty(t, state)

	return state
}

func TestOAuthInitiate_EmbedsIssuedState(t *testing.T) {
	h := newTestHarness(t)

	authURL, err := h.service.OAuthInitiate(context.Background(), identity.ProviderGoogle)

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(authURL, "https://provider.example/authorize"))

	state := stateFrom(t, authURL)

	provider, err := h.states.Consume(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, identity.ProviderGoogle, provider, "state is bound to the initiating provider")
}

func TestOAuthInitiate_UnknownProvider(t *testing.T) {
	h := newTestHarness(t)

	_, err := h.service.OAuthInitiate(context.Background(), "github")
	assert.ErrorIs(t, err, identity.ErrUnknownProvider)
}

func TestOAuthCallback_CreatesAccountOnFirstLogin(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	h.google.identities["code-1"] = &identity.Claims{
		Subject:       "google-sub-1",
		Email:         "alice@example.com",
		EmailVerified: true,
		Name:          "Alice Smith",
		Picture:       "https://img.example/alice.png",
	}

	authURL, err := h.service.OAuthInitiate(ctx, identity.ProviderGoogle)
	require.NoError(t, err)

	result, err := h.service.OAuthCallback(ctx, identity.ProviderGoogle, "code-1", stateFrom(t, authURL), "", "")

	require.NoError(t, err)
	assert.True(t, result.IsNewAccount)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, "alice@example.com", result.User.Email)
	assert.Equal(t, "Alice Smith", result.User.DisplayName)
	assert.Equal(t, "google-sub-1", result.User.SubjectFor(identity.ProviderGoogle))
	assert.True(t, result.User.IsVerified)
	assert.False(t, result.User.HasPassword())
}

func TestOAuthCallback_SecondLoginResolvesSameAccount(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	h.google.identities["code-1"] = &identity.Claims{
		Subject:       "google-sub-1",
		Email:         "alice@example.com",
		EmailVerified: true,
		Name:          "Alice Smith",
	}

	authURL, err := h.service.OAuthInitiate(ctx, identity.ProviderGoogle)
	require.NoError(t, err)

	first, err := h.service.OAuthCallback(ctx, identity.ProviderGoogle, "code-1", stateFrom(t, authURL), "", "")
	require.NoError(t, err)

	authURL, err = h.service.OAuthInitiate(ctx, identity.ProviderGoogle)
	require.NoError(t, err)

	second, err := h.service.OAuthCallback(ctx, identity.ProviderGoogle, "code-1", stateFrom(t, authURL), "", "")
	require.NoError(t, err)

	assert.Equal(t, first.User.ID, second.User.ID)
	assert.False(t, second.IsNewAccount)
}

func TestOAuthCallback_NeverIssuedState(t *testing.T) {
	h := newTestHarness(t)

	_, err := h.service.OAuthCallback(context.Background(), identity.ProviderGoogle, "code-1", "forged-state", "", "")

	assert.ErrorIs(t, err, csrfstate.ErrInvalidState)
	assert.Zero(t, h.google.exchanges, "no exchange may be attempted without a valid state")
}

func TestOAuthCallback_StateIsSingleUse(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	h.google.identities["code-1"] = &identity.Claims{
		Subject:       "google-sub-1",
		Email:         "alice@example.com",
		EmailVerified: true,
	}

	authURL, err := h.service.OAuthInitiate(ctx, identity.ProviderGoogle)
	require.NoError(t, err)
	state := stateFrom(t, authURL)

	_, err = h.service.OAuthCallback(ctx, identity.ProviderGoogle, "code-1", state, "", "")
	require.NoError(t, err)

	_, err = h.service.OAuthCallback(ctx, identity.ProviderGoogle, "code-1", state, "", "")
	assert.ErrorIs(t, err, csrfstate.ErrInvalidState, "a consumed state cannot be replayed")
}

func TestOAuthCallback_CrossProviderState(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	authURL, err := h.service.OAuthInitiate(ctx, identity.ProviderApple)
	require.NoError(t, err)

	_, err = h.service.OAuthCallback(ctx, identity.ProviderGoogle, "code-1", stateFrom(t, authURL), "", "")

	assert.ErrorIs(t, err, csrfstate.ErrInvalidState, "a state issued for one provider cannot authorize another")
	assert.Zero(t, h.google.exchanges)
}

func TestOAuthCallback_ProviderErrorExitsEarly(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	authURL, err := h.service.OAuthInitiate(ctx, identity.ProviderGoogle)
	require.NoError(t, err)
	state := stateFrom(t, authURL)

	_, err = h.service.OAuthCallback(ctx, identity.ProviderGoogle, "", state, "access_denied", "")

	assert.ErrorIs(t, err, identity.ErrDenied)
	assert.Zero(t, h.google.exchanges, "a denied callback must not reach the exchange")

	// the pending state was destroyed on the way out
	_, err = h.states.Consume(ctx, state)
	assert.ErrorIs(t, err, csrfstate.ErrInvalidState)
}

func TestOAuthCallback_MissingCode(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	authURL, err := h.service.OAuthInitiate(ctx, identity.ProviderGoogle)
	require.NoError(t, err)

	_, err = h.service.OAuthCallback(ctx, identity.ProviderGoogle, "", stateFrom(t, authURL), "", "")

	ve, ok := AsValidationError(err)
	require.True(t, ok, "expected a validation error, got %v", err)
	assert.Equal(t, "code", ve.Field)
}

func TestOAuthCallback_ExchangeTimeout(t *testing.T) {
	h := newTestHarness(t)
	h.service.exchangeTimeout = 50 * time.Millisecond
	h.google.hang = true
	ctx := context.Background()

	authURL, err := h.service.OAuthInitiate(ctx, identity.ProviderGoogle)
	require.NoError(t, err)

	start := time.Now()
	_, err = h.service.OAuthCallback(ctx, identity.ProviderGoogle, "code-1", stateFrom(t, authURL), "", "")

	assert.ErrorIs(t, err, ErrProviderTimeout)
	assert.Less(t, time.Since(start), 5*time.Second, "a hung provider must not hang the flow")
}

func TestOAuthCallback_ExchangeFailure(t *testing.T) {
	h := newTestHarness(t)
	h.google.exchangeErr = identity.ErrExchangeFailed
	ctx := context.Background()

	authURL, err := h.service.OAuthInitiate(ctx, identity.ProviderGoogle)
	require.NoError(t, err)

	_, err = h.service.OAuthCallback(ctx, identity.ProviderGoogle, "code-1", stateFrom(t, authURL), "", "")
	assert.ErrorIs(t, err, identity.ErrExchangeFailed)
}

func TestOAuthCallback_LinksVerifiedEmailToExistingAccount(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	registered, err := h.service.Register(ctx, "bob@example.com", "correct-horse")
	require.NoError(t, err)

	h.google.identities["code-1"] = &identity.Claims{
		Subject:       "google-sub-bob",
		Email:         "bob@example.com",
		EmailVerified: true,
		Name:          "Bob Jones",
	}

	authURL, err := h.service.OAuthInitiate(ctx, identity.ProviderGoogle)
	require.NoError(t, err)

	result, err := h.service.OAuthCallback(ctx, identity.ProviderGoogle, "code-1", stateFrom(t, authURL), "", "")

	require.NoError(t, err)
	assert.Equal(t, registered.ID, result.User.ID, "verified matching email links to the existing account")
	assert.False(t, result.IsNewAccount)
	assert.Equal(t, "google-sub-bob", result.User.SubjectFor(identity.ProviderGoogle))
	assert.True(t, result.User.HasPassword(), "linking preserves the password credential")
	assert.True(t, result.User.IsVerified)

	// password login still works after linking
	_, err = h.service.PasswordLogin(ctx, "bob@example.com", "correct-horse")
	assert.NoError(t, err)
}

func TestOAuthCallback_UnverifiedEmailNeverLinks(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	_, err := h.service.Register(ctx, "bob@example.com", "correct-horse")
	require.NoError(t, err)

	h.google.identities["code-1"] = &identity.Claims{
		Subject: "google-sub-bob",
		Email:   "bob@example.com",
		// provider did not verify the address; linking would allow takeover
		EmailVerified: false,
	}

	authURL, err := h.service.OAuthInitiate(ctx, identity.ProviderGoogle)
	require.NoError(t, err)

	_, err = h.service.OAuthCallback(ctx, identity.ProviderGoogle, "code-1", stateFrom(t, authURL), "", "")

	assert.ErrorIs(t, err, users.ErrEmailTaken)

	bob, err := h.store.FindByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Empty(t, bob.SubjectFor(identity.ProviderGoogle), "the account must remain unlinked")
}

func TestOAuthCallback_IdentityWithoutEmail(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	h.apple.identities["code-1"] = &identity.Claims{Subject: "apple-sub-1"}

	authURL, err := h.service.OAuthInitiate(ctx, identity.ProviderApple)
	require.NoError(t, err)

	_, err = h.service.OAuthCallback(ctx, identity.ProviderApple, "code-1", stateFrom(t, authURL), "", "")
	assert.ErrorIs(t, err, ErrUnusableIdentity)
}

func TestOAuthCallback_AppleUserPayloadFillsFirstLogin(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	// apple relays the name only through the form payload, never the token
	h.apple.identities["code-1"] = &identity.Claims{
		Subject:       "apple-sub-1",
		Email:         "carol@example.com",
		EmailVerified: true,
	}

	payload := `{"name":{"firstName":"Carol","lastName":"Reed"},"email":"carol@example.com"}`

	authURL, err := h.service.OAuthInitiate(ctx, identity.ProviderApple)
	require.NoError(t, err)

	result, err := h.service.OAuthCallback(ctx, identity.ProviderApple, "code-1", stateFrom(t, authURL), "", payload)

	require.NoError(t, err)
	assert.True(t, result.IsNewAccount)
	assert.Equal(t, "Carol Reed", result.User.DisplayName)
}

func TestOAuthCallback_AbsentClaimsPreserveProfile(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	h.apple.identities["code-1"] = &identity.Claims{
		Subject:       "apple-sub-1",
		Email:         "carol@example.com",
		EmailVerified: true,
		Name:          "Carol Reed",
	}

	authURL, err := h.service.OAuthInitiate(ctx, identity.ProviderApple)
	require.NoError(t, err)

	first, err := h.service.OAuthCallback(ctx, identity.ProviderApple, "code-1", stateFrom(t, authURL), "", "")
	require.NoError(t, err)
	require.Equal(t, "Carol Reed", first.User.DisplayName)

	// subsequent logins omit the name and email entirely
	h.apple.identities["code-2"] = &identity.Claims{
		Subject:       "apple-sub-1",
		EmailVerified: true,
	}

	authURL, err = h.service.OAuthInitiate(ctx, identity.ProviderApple)
	require.NoError(t, err)

	second, err := h.service.OAuthCallback(ctx, identity.ProviderApple, "code-2", stateFrom(t, authURL), "", "")

	require.NoError(t, err)
	assert.Equal(t, first.User.ID, second.User.ID)
	assert.Equal(t, "Carol Reed", second.User.DisplayName, "absent claims never erase stored profile fields")
	assert.Equal(t, "carol@example.com", second.User.Email)
}
