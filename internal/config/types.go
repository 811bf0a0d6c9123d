package config

import "time"

// Config holds all environment-level configuration for the auth service
type Config struct {
	DatabaseURL string
	RedisURL    string // optional; empty selects in-memory state stores
	Environment string

	BaseURL     string
	FrontendURL string
	Port        string

	JWTSecret     string
	SessionSecret string
	TokenTTL      time.Duration
	StateTTL      time.Duration

	GoogleClientID     string
	GoogleClientSecret string

	AppleClientID   string
	AppleTeamID     string
	AppleKeyID      string
	ApplePrivateKey string // PEM-encoded ES256 private key

	// whether password login is gated on a verified email address
	RequireVerifiedEmail bool
}
