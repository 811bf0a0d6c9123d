package main

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	memorystore "github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/keyline/server/internal/config"
	"github.com/keyline/server/internal/logger"
)

// per-client budget for authentication endpoints; credential stuffing and
// state-token guessing both hit this ceiling
const authRateLimit = "30-M"

// allows the configured frontend origin to call the API with credentials
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.FrontendURL}
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")

	return cors.New(corsConfig)
}

// rate limits by client IP, sharing counters through redis when available
func RateLimitMiddleware(redisClient *redis.Client) gin.HandlerFunc {
	rate, err := limiter.NewRateFromFormatted(authRateLimit)
	if err != nil {
		logger.FatalErr(err, "invalid rate limit format")
	}

	var store limiter.Store

	if redisClient != nil {
		store, err = redisstore.NewStoreWithOptions(redisClient, limiter.StoreOptions{
			Prefix: "ratelimit",
		})
		if err != nil {
			logger.FatalErr(err, "failed to create redis rate limit store")
		}
	} else {
		store = memorystore.NewStore()
	}

	return mgin.NewMiddleware(limiter.New(store, rate))
}
