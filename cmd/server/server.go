package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/keyline/server/internal/authflow"
	"github.com/keyline/server/internal/config"
	"github.com/keyline/server/internal/csrfstate"
	"github.com/keyline/server/internal/database"
	"github.com/keyline/server/internal/identity"
	"github.com/keyline/server/internal/logger"
	"github.com/keyline/server/internal/token"
	"github.com/keyline/server/keyline/users"
)

const (
	// how often the janitor sweeps expired in-memory state
	janitorInterval = 5 * time.Minute

	// bound on provider code-for-token exchanges
	providerExchangeTimeout = 10 * time.Second
)

// creates and configures a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	ctx := context.Background()

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	db, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	userRepo := users.NewRepository(db)

	// state store and revocation set are shared resources: redis-backed when
	// the service runs as multiple instances, in-memory otherwise
	var (
		redisClient *redis.Client
		states      csrfstate.Store
		revocations token.RevocationSet
		janitor     *Janitor
	)

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to parse redis url: %w", err)
		}

		redisClient = redis.NewClient(opts)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}

		logger.Info("connected to redis, using shared state stores")

		states = csrfstate.NewRedisStore(redisClient, cfg.StateTTL)
		revocations = token.NewRedisRevocations(redisClient)
	} else {
		logger.Warn("REDIS_URL not set, state stores are per-instance memory")

		memStates := csrfstate.NewMemoryStore(cfg.StateTTL)
		memRevocations := token.NewMemoryRevocations()

		states = memStates
		revocations = memRevocations
		janitor = NewJanitor(janitorInterval, memStates, memRevocations)
	}

	issuer := token.NewIssuer(cfg.JWTSecret, cfg.TokenTTL, revocations)

	providers, err := initializeProviders(ctx, cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	authService := authflow.NewService(
		userRepo,
		providers,
		states,
		issuer,
		authflow.WithExchangeTimeout(providerExchangeTimeout),
		authflow.WithRequireVerifiedEmail(cfg.RequireVerifiedEmail),
	)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	server := &Server{
		db:          db,
		redis:       redisClient,
		config:      cfg,
		userRepo:    userRepo,
		issuer:      issuer,
		authService: authService,
		janitor:     janitor,
		router:      router,
	}

	RegisterRoutes(router, server)

	return server, nil
}

// sets up the federated identity providers. Google is required; apple joins
// when its team credentials are configured.
func initializeProviders(ctx context.Context, cfg *config.Config) (*identity.Registry, error) {
	google, err := identity.NewGoogle(
		ctx,
		cfg.GoogleClientID,
		cfg.GoogleClientSecret,
		cfg.BaseURL+"/api/v1/auth/google/callback",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize google provider: %w", err)
	}

	providers := []identity.Provider{google}

	if cfg.AppleEnabled() {
		apple, err := identity.NewApple(
			ctx,
			cfg.AppleClientID,
			cfg.AppleTeamID,
			cfg.AppleKeyID,
			cfg.ApplePrivateKey,
			cfg.BaseURL+"/api/v1/auth/apple/callback",
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize apple provider: %w", err)
		}

		providers = append(providers, apple)
	}

	return identity.NewRegistry(providers...), nil
}
