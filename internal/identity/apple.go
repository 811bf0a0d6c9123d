package identity

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	appleIssuer = "https://appleid.apple.com"

	// apple client secrets may live up to six months; short-lived
	// per-exchange secrets avoid managing rotation
	appleSecretTTL = 5 * time.Minute
)

// Apple identity provider. Differs from Google in three ways: the client
// secret is a short-lived ES256 JWT minted from a configured private key,
// the callback arrives as a form POST (response_mode=form_post is mandatory
// when scopes are requested), and name/email claims are only supplied on the
// user's first authorization.
type AppleProvider struct {
	clientID   string
	teamID     string
	keyID      string
	privateKey *ecdsa.PrivateKey

	endpoint    oauth2.Endpoint
	redirectURL string
	verifier    *oidc.IDTokenVerifier
	limiter     *rate.Limiter

	// injectable for tests
	now func() time.Time
}

// creates the Apple provider from the developer team credentials
func NewApple(ctx context.Context, clientID, teamID, keyID, privateKeyPEM, redirectURL string) (*AppleProvider, error) {
	key, err := jwt.ParseECPrivateKeyFromPEM([]byte(privateKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("failed to parse apple private key: %w", err)
	}

	provider, err := oidc.NewProvider(ctx, appleIssuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover apple oidc endpoints: %w", err)
	}

	return &AppleProvider{
		clientID:    clientID,
		teamID:      teamID,
		keyID:       keyID,
		privateKey:  key,
		endpoint:    provider.Endpoint(),
		redirectURL: redirectURL,
		verifier:    provider.Verifier(&oidc.Config{ClientID: clientID}),
		limiter:     newExchangeLimiter(),
		now:         time.Now,
	}, nil
}

func (a *AppleProvider) Name() string {
	return ProviderApple
}

func (a *AppleProvider) AuthCodeURL(state string) string {
	cfg := a.oauthConfig("")

	return cfg.AuthCodeURL(
		state,
		// required by apple whenever name or email scopes are requested
		oauth2.SetAuthURLParam("response_mode", "form_post"),
	)
}

func (a *AppleProvider) Exchange(ctx context.Context, code string) (*Claims, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}

	secret, err := a.clientSecret()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}

	cfg := a.oauthConfig(secret)

	oauthToken, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}

	rawIDToken, ok := oauthToken.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, fmt.Errorf("%w: no id_token in token response", ErrTokenInvalid)
	}

	idToken, err := a.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	var raw struct {
		Sub           string       `json:"sub"`
		Email         string       `json:"email"`
		EmailVerified stringOrBool `json:"email_verified"`
	}

	if err := idToken.Claims(&raw); err != nil {
		return nil, fmt.Errorf("%w: failed to parse claims: %v", ErrTokenInvalid, err)
	}

	if raw.Sub == "" {
		return nil, fmt.Errorf("%w: missing subject claim", ErrTokenInvalid)
	}

	return &Claims{
		Subject:       raw.Sub,
		Email:         raw.Email,
		EmailVerified: bool(raw.EmailVerified),
	}, nil
}

func (a *AppleProvider) oauthConfig(secret string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     a.clientID,
		ClientSecret: secret,
		RedirectURL:  a.redirectURL,
		Endpoint:     a.endpoint,
		Scopes:       []string{"name", "email"},
	}
}

// mints the ES256 client secret apple expects in place of a static secret
func (a *AppleProvider) clientSecret() (string, error) {
	now := a.now()

	claims := jwt.RegisteredClaims{
		Issuer:    a.teamID,
		Subject:   a.clientID,
		Audience:  jwt.ClaimStrings{appleIssuer},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(appleSecretTTL)),
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	tok.Header["kid"] = a.keyID

	return tok.SignedString(a.privateKey)
}

// MergeAppleUserPayload folds the one-time `user` form field apple sends on
// first authorization into already-verified claims. The payload is
// client-relayed and unsigned, so it only ever fills blanks; it never
// overrides a claim from the verified identity token.
func MergeAppleUserPayload(claims *Claims, payload string) {
	payload = strings.TrimSpace(payload)
	if claims == nil || payload == "" {
		return
	}

	var user struct {
		Name struct {
			FirstName string `json:"firstName"`
			LastName  string `json:"lastName"`
		} `json:"name"`
		Email string `json:"email"`
	}

	if err := json.Unmarshal([]byte(payload), &user); err != nil {
		return
	}

	if claims.Name == "" {
		claims.Name = strings.TrimSpace(user.Name.FirstName + " " + user.Name.LastName)
	}

	if claims.Email == "" {
		claims.Email = user.Email
	}
}

// apple serializes email_verified as either a JSON bool or the strings
// "true"/"false" depending on the flow
type stringOrBool bool

func (b *stringOrBool) UnmarshalJSON(data []byte) error {
	switch strings.Trim(string(data), `"`) {
	case "true":
		*b = true
	default:
		*b = false
	}

	return nil
}
