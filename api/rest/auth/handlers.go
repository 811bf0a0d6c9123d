package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/keyline/server/internal/authflow"
	apierrors "github.com/keyline/server/internal/errors"
	"github.com/keyline/server/internal/token"
	"github.com/keyline/server/keyline/users"
)

// RegisterHandler godoc
// @Summary Register with email and password
// @Description Create a password account. Email is unique across all creation paths.
// @Tags auth
// @Accept json
// @Produce json
// @Success 201 {object} RegisterResponse
// @Failure 400 {object} apierrors.ErrorResponse
// @Failure 409 {object} apierrors.ErrorResponse
// @Router /api/v1/auth/register [post]
func RegisterHandler(svc *authflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest

		if err := c.ShouldBindJSON(&req); err != nil {
			apierrors.ValidationError(c, err)
			return
		}

		user, err := svc.Register(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			if ve, ok := authflow.AsValidationError(err); ok {
				apierrors.BadRequest(c, ve.Error(), nil)
				return
			}

			if errors.Is(err, users.ErrEmailTaken) {
				apierrors.Conflict(c, apierrors.CodeEmailTaken, "email is already registered")
				return
			}

			apierrors.InternalError(c, "failed to register", err)
			return
		}

		c.JSON(http.StatusCreated, RegisterResponse{User: summarize(user)})
	}
}

// LoginHandler godoc
// @Summary Login with email and password
// @Description Verify credentials and return a session token. Unknown email and wrong password produce identical responses.
// @Tags auth
// @Accept json
// @Produce json
// @Success 200 {object} LoginResponse
// @Failure 400 {object} apierrors.ErrorResponse
// @Failure 401 {object} apierrors.ErrorResponse
// @Failure 403 {object} apierrors.ErrorResponse
// @Router /api/v1/auth/login [post]
func LoginHandler(svc *authflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest

		if err := c.ShouldBindJSON(&req); err != nil {
			apierrors.ValidationError(c, err)
			return
		}

		result, err := svc.PasswordLogin(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			if ve, ok := authflow.AsValidationError(err); ok {
				apierrors.BadRequest(c, ve.Error(), nil)
				return
			}

			if errors.Is(err, authflow.ErrInvalidCredentials) {
				apierrors.InvalidCredentials(c)
				return
			}

			if errors.Is(err, authflow.ErrEmailNotVerified) {
				apierrors.EmailNotVerified(c)
				return
			}

			apierrors.InternalError(c, "failed to login", err)
			return
		}

		c.JSON(http.StatusOK, LoginResponse{
			Token: result.Token,
			User:  summarize(result.User),
		})
	}
}

// LogoutHandler godoc
// @Summary Logout
// @Description Revoke the presented session token before its natural expiry
// @Tags auth
// @Produce json
// @Success 200 {object} MessageResponse
// @Failure 401 {object} apierrors.ErrorResponse
// @Router /api/v1/auth/logout [post]
// @Security BearerAuth
func LogoutHandler(svc *authflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			apierrors.Unauthorized(c, "")
			return
		}

		if err := svc.Logout(c.Request.Context(), raw); err != nil {
			if errors.Is(err, token.ErrInvalid) || errors.Is(err, token.ErrExpired) || errors.Is(err, token.ErrRevoked) {
				apierrors.Unauthorized(c, "invalid or expired token")
				return
			}

			apierrors.InternalError(c, "failed to logout", err)
			return
		}

		c.JSON(http.StatusOK, MessageResponse{Message: "logged out successfully"})
	}
}

// GetCurrentUserHandler godoc
// @Summary Get current user
// @Description Get authenticated user's profile
// @Tags auth
// @Produce json
// @Success 200 {object} UserResponse
// @Failure 401 {object} apierrors.ErrorResponse
// @Failure 404 {object} apierrors.ErrorResponse
// @Router /api/v1/auth/me [get]
// @Security BearerAuth
func GetCurrentUserHandler(svc *authflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := token.GetUserID(c)
		if !exists {
			apierrors.Unauthorized(c, "")
			return
		}

		user, err := svc.CurrentUser(c.Request.Context(), userID)
		if err != nil {
			apierrors.NotFound(c, "user")
			return
		}

		c.JSON(http.StatusOK, UserResponse{User: user})
	}
}

// extracts the raw bearer token from the Authorization header
func bearerToken(c *gin.Context) string {
	parts := strings.Split(c.GetHeader("Authorization"), " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}

	return parts[1]
}
