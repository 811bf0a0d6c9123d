package oauth

import (
	"net/http"
	"strings"

	"github.com/gorilla/sessions"

	"github.com/keyline/server/internal/authflow"
)

const (
	// cookie session carrying the token across the callback redirect
	sessionName = "keyline_auth"

	// long enough for the browser to land on the frontend and pick the
	// token up, no longer
	sessionMaxAge = 300
)

// Deps bundles what the OAuth handlers need beyond the orchestrator
type Deps struct {
	Service     *authflow.Service
	FrontendURL string
	Cookies     *sessions.CookieStore
}

// builds the handler dependencies, configuring the one-time token cookie
func NewDeps(svc *authflow.Service, baseURL, frontendURL, cookieSecret string) *Deps {
	store := sessions.NewCookieStore([]byte(cookieSecret))

	// configure cookie for OAuth redirects
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		Secure:   strings.HasPrefix(baseURL, "https://"),
		SameSite: http.SameSiteLaxMode,
	}

	return &Deps{
		Service:     svc,
		FrontendURL: strings.TrimSuffix(frontendURL, "/"),
		Cookies:     store,
	}
}

// SessionResponse returned when the frontend picks up its one-time token
type SessionResponse struct {
	Token string `json:"token"`
}
