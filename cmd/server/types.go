package main

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/keyline/server/internal/authflow"
	"github.com/keyline/server/internal/config"
	"github.com/keyline/server/internal/token"
	"github.com/keyline/server/keyline/users"
)

// holds all dependencies and state for the API server
type Server struct {
	db          *pgxpool.Pool
	redis       *redis.Client // nil when running with in-memory state stores
	config      *config.Config
	userRepo    *users.Repository
	issuer      *token.Issuer
	authService *authflow.Service
	janitor     *Janitor
	router      *gin.Engine
}
