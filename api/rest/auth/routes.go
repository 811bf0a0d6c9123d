package auth

import (
	"github.com/gin-gonic/gin"

	"github.com/keyline/server/internal/authflow"
	"github.com/keyline/server/internal/token"
)

// registers password and session routes
func RegisterRoutes(router *gin.RouterGroup, svc *authflow.Service, issuer *token.Issuer) {
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", RegisterHandler(svc))
		authGroup.POST("/login", LoginHandler(svc))
		authGroup.POST("/logout", LogoutHandler(svc))
		authGroup.GET("/me", issuer.Middleware(), GetCurrentUserHandler(svc))
	}
}
