package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultTokenTTL = 7 * 24 * time.Hour
	defaultStateTTL = 10 * time.Minute
)

// loads configuration from environment variables
func LoadEnvironmentVariables() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		_ = err // not an error - production environments may not have .env file
	}

	cfg := &Config{
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		RedisURL:             os.Getenv("REDIS_URL"),
		Environment:          os.Getenv("ENVIRONMENT"),
		BaseURL:              os.Getenv("BASE_URL"),
		FrontendURL:          os.Getenv("FRONTEND_URL"),
		Port:                 os.Getenv("PORT"),
		JWTSecret:            os.Getenv("JWT_SECRET"),
		SessionSecret:        os.Getenv("SESSION_SECRET"),
		GoogleClientID:       os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret:   os.Getenv("GOOGLE_CLIENT_SECRET"),
		AppleClientID:        os.Getenv("APPLE_CLIENT_ID"),
		AppleTeamID:          os.Getenv("APPLE_TEAM_ID"),
		AppleKeyID:           os.Getenv("APPLE_KEY_ID"),
		ApplePrivateKey:      os.Getenv("APPLE_PRIVATE_KEY"),
		RequireVerifiedEmail: os.Getenv("REQUIRE_VERIFIED_EMAIL") == "true",
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
		return nil, fmt.Errorf("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set")
	}

	if cfg.SessionSecret == "" {
		// cookie integrity falls back to the token signing secret
		cfg.SessionSecret = cfg.JWTSecret
	}

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}

	if cfg.FrontendURL == "" {
		cfg.FrontendURL = "http://localhost:3000"
	}

	if cfg.Port == "" {
		cfg.Port = "8080"
	}

	cfg.TokenTTL = durationFromEnv("TOKEN_TTL", defaultTokenTTL)
	cfg.StateTTL = durationFromEnv("STATE_TTL", defaultStateTTL)

	return cfg, nil
}

// AppleEnabled reports whether the Apple provider is fully configured.
// Apple sign-in is optional; Google is always required.
func (c *Config) AppleEnabled() bool {
	return c.AppleClientID != "" && c.AppleTeamID != "" && c.AppleKeyID != "" && c.ApplePrivateKey != ""
}

// parses a duration from the environment or falls back to the default
func durationFromEnv(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}

	return d
}
