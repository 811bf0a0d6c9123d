package main

import (
	"context"
	"time"

	"github.com/keyline/server/internal/logger"
)

// a store that can drop entries past their expiry
type prunable interface {
	PruneExpired() int
}

// Janitor periodically sweeps the in-memory state store and revocation set.
// Redis-backed stores expire entries themselves and run without one.
type Janitor struct {
	interval time.Duration
	targets  []prunable
}

// creates a janitor over the given stores
func NewJanitor(interval time.Duration, targets ...prunable) *Janitor {
	return &Janitor{interval: interval, targets: targets}
}

// begins the background sweep loop; returns when ctx is cancelled
func (j *Janitor) Start(ctx context.Context) {
	logger.Info("starting state janitor", "interval", j.interval)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("state janitor stopped")
			return
		case <-ticker.C:
			total := 0
			for _, t := range j.targets {
				total += t.PruneExpired()
			}

			if total > 0 {
				logger.Debug("pruned expired auth state", "entries", total)
			}
		}
	}
}
