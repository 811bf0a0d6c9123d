package token

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// validates bearer tokens and adds user info to context
func (i *Issuer) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			c.Abort()
			return
		}

		claims, err := i.Validate(c.Request.Context(), parts[1])
		if err != nil {
			message := "invalid or expired token"
			if errors.Is(err, ErrRevoked) {
				message = "token has been revoked"
			}

			c.JSON(http.StatusUnauthorized, gin.H{"error": message})
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("user_email", claims.Email)
		c.Set("token_claims", claims)

		c.Next()
	}
}

// extracts user_id from context after Middleware
func GetUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get("user_id")

	if !exists {
		return "", false
	}

	return userID.(string), true
}

// extracts the validated claims from context after Middleware
func GetClaims(c *gin.Context) (*Claims, bool) {
	v, exists := c.Get("token_claims")
	if !exists {
		return nil, false
	}

	claims, ok := v.(*Claims)
	return claims, ok
}
