package oauth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/keyline/server/internal/authflow"
	"github.com/keyline/server/internal/csrfstate"
	apierrors "github.com/keyline/server/internal/errors"
	"github.com/keyline/server/internal/identity"
	"github.com/keyline/server/internal/logger"
	"github.com/keyline/server/keyline/users"
)

// InitiateHandler godoc
// @Summary Start OAuth authentication
// @Description Issue a single-use state token and redirect to the provider (google, apple)
// @Tags oauth
// @Param provider path string true "OAuth provider" Enums(google, apple)
// @Success 302 {string} string "Redirect to OAuth provider"
// @Failure 400 {object} apierrors.ErrorResponse
// @Router /api/v1/auth/{provider}/initiate [get]
func InitiateHandler(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		provider := c.Param("provider")

		redirectURL, err := deps.Service.OAuthInitiate(c.Request.Context(), provider)
		if err != nil {
			if errors.Is(err, identity.ErrUnknownProvider) {
				apierrors.BadRequest(c, "invalid provider", nil)
				return
			}

			apierrors.InternalError(c, "failed to start authentication", err)
			return
		}

		c.Redirect(http.StatusFound, redirectURL)
	}
}

// GoogleCallbackHandler godoc
// @Summary Google OAuth callback
// @Description Provider redirect target; completes the flow and redirects to the frontend
// @Tags oauth
// @Param code query string false "Authorization code"
// @Param state query string false "CSRF state token"
// @Param error query string false "Provider error"
// @Success 302 {string} string "Redirect to frontend"
// @Router /api/v1/auth/google/callback [get]
func GoogleCallbackHandler(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		completeCallback(c, deps, identity.ProviderGoogle,
			c.Query("code"),
			c.Query("state"),
			c.Query("error"),
			"",
		)
	}
}

// AppleCallbackHandler godoc
// @Summary Apple OAuth callback
// @Description Apple posts the callback as form data (response_mode=form_post)
// @Tags oauth
// @Param code formData string false "Authorization code"
// @Param state formData string false "CSRF state token"
// @Param error formData string false "Provider error"
// @Param user formData string false "First-authorization user payload"
// @Success 302 {string} string "Redirect to frontend"
// @Router /api/v1/auth/apple/callback [post]
func AppleCallbackHandler(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		completeCallback(c, deps, identity.ProviderApple,
			c.PostForm("code"),
			c.PostForm("state"),
			c.PostForm("error"),
			c.PostForm("user"),
		)
	}
}

// SessionHandler godoc
// @Summary Pick up the session token after an OAuth redirect
// @Description Returns the token delivered via the one-time cookie and clears it
// @Tags oauth
// @Produce json
// @Success 200 {object} SessionResponse
// @Failure 401 {object} apierrors.ErrorResponse
// @Router /api/v1/auth/session [get]
func SessionHandler(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := deps.Cookies.Get(c.Request, sessionName)
		if err != nil {
			apierrors.Unauthorized(c, "")
			return
		}

		raw, ok := session.Values["token"].(string)
		if !ok || raw == "" {
			apierrors.Unauthorized(c, "")
			return
		}

		// one-time delivery: clear the cookie before handing the token over
		session.Options.MaxAge = -1
		delete(session.Values, "token")

		if err := session.Save(c.Request, c.Writer); err != nil {
			logger.ErrorErr(err, "failed to clear auth session cookie")
		}

		c.JSON(http.StatusOK, SessionResponse{Token: raw})
	}
}

// runs the callback flow and translates the outcome into a server-controlled
// frontend redirect. Provider and storage detail never reaches the browser;
// only a coarse reason code does.
func completeCallback(c *gin.Context, deps *Deps, provider, code, state, providerErr, userPayload string) {
	result, err := deps.Service.OAuthCallback(c.Request.Context(), provider, code, state, providerErr, userPayload)
	if err != nil {
		redirectError(c, deps, provider, err)
		return
	}

	session, err := deps.Cookies.New(c.Request, sessionName)
	if err != nil {
		// a stale or mis-keyed cookie decodes dirty but the fresh session
		// is still usable
		logger.Warn("decoding previous auth session failed", "error", err)
	}

	session.Values["token"] = result.Token

	if err := session.Save(c.Request, c.Writer); err != nil {
		apierrors.InternalError(c, "failed to persist session", err)
		return
	}

	c.Redirect(http.StatusFound, deps.FrontendURL+"/auth/complete")
}

// maps a callback failure to a coarse reason code on the frontend error page
func redirectError(c *gin.Context, deps *Deps, provider string, err error) {
	reason := "server_error"

	switch {
	case errors.Is(err, csrfstate.ErrInvalidState):
		reason = "invalid_state"
	case errors.Is(err, identity.ErrDenied):
		reason = "denied"
	case errors.Is(err, authflow.ErrProviderTimeout):
		reason = "provider_timeout"
	case errors.Is(err, identity.ErrExchangeFailed), errors.Is(err, identity.ErrTokenInvalid):
		reason = "provider_error"
	case errors.Is(err, users.ErrEmailTaken):
		reason = "email_conflict"
	case errors.Is(err, authflow.ErrUnusableIdentity):
		reason = "missing_email"
	}

	if _, ok := authflow.AsValidationError(err); ok {
		reason = "invalid_callback"
	}

	// full detail stays server-side
	logger.ErrorErr(err, "oauth callback failed", "provider", provider, "reason", reason)

	c.Redirect(http.StatusFound, deps.FrontendURL+"/auth/error?reason="+reason)
}
