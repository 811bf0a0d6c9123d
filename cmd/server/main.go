package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/keyline/server/internal/config"
	"github.com/keyline/server/internal/logger"
)

// @title Keyline Auth API
// @version 1.0
// @description Authentication service: email/password accounts and federated
// @description sign-in with Google and Apple, issuing signed session tokens.

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Session token for authenticated requests. Format: Bearer {token}

func main() {
	logger.Info("starting keyline auth server")

	// load configuration from environment
	cfg, err := config.LoadEnvironmentVariables()
	if err != nil {
		logger.Fatal("failed to load configuration", "error", err)
	}

	// create server with all dependencies
	srv, err := NewServer(cfg)
	if err != nil {
		logger.Fatal("failed to create server", "error", err)
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      srv.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// start server in goroutine
	go func() {
		logger.Info("server listening", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", "error", err)
		}
	}()

	// start the state janitor with a cancellable context (memory stores only)
	janitorCtx, janitorCancel := context.WithCancel(context.Background())
	if srv.janitor != nil {
		go srv.janitor.Start(janitorCtx)
	}

	// wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	janitorCancel()

	logger.Info("shutting down server")

	// graceful shutdown with 10 second timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	// close redis connection if running with shared stores
	if srv.redis != nil {
		srv.redis.Close() //nolint:errcheck,gosec // best-effort cleanup on shutdown
	}

	// close database connection
	srv.db.Close()

	logger.Info("server stopped")
}
