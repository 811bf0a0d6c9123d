package main

import (
	"github.com/gin-gonic/gin"

	"github.com/keyline/server/api/rest/auth"
	"github.com/keyline/server/api/rest/health"
	"github.com/keyline/server/api/rest/oauth"
)

// sets up all API routes and middleware
func RegisterRoutes(router *gin.Engine, server *Server) {
	router.Use(CORSMiddleware(server.config))
	router.GET("/health", health.Handler)

	v1 := router.Group("/api/v1")

	{
		v1.GET("/ping", health.PingHandler)

		// authentication endpoints are rate limited as a unit
		limited := v1.Group("", RateLimitMiddleware(server.redis))

		auth.RegisterRoutes(limited, server.authService, server.issuer)

		oauthDeps := oauth.NewDeps(
			server.authService,
			server.config.BaseURL,
			server.config.FrontendURL,
			server.config.SessionSecret,
		)
		oauth.RegisterRoutes(limited, oauthDeps)
	}
}
