package oauth

import (
	"github.com/gin-gonic/gin"
)

// registers the federated login routes. Google calls back with a GET,
// apple with a form POST.
func RegisterRoutes(router *gin.RouterGroup, deps *Deps) {
	authGroup := router.Group("/auth")
	{
		authGroup.GET("/:provider/initiate", InitiateHandler(deps))
		authGroup.GET("/google/callback", GoogleCallbackHandler(deps))
		authGroup.POST("/apple/callback", AppleCallbackHandler(deps))
		authGroup.GET("/session", SessionHandler(deps))
	}
}
