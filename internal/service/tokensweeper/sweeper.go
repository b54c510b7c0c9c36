package tokensweeper

import (
	"context"
	"time"

	"github.com/sonht113/recipebook/internal/logger"
	"github.com/sonht113/recipebook/internal/repository"
)

const defaultSweepInterval = time.Hour

// Sweeper periodically deletes expired refresh tokens.
// Rotation and validation never depend on it: expired tokens are rejected
// and lazily deleted on use, the sweeper only keeps the table small.
type Sweeper struct {
	interval time.Duration
	refresh  repository.RefreshTokenRepo
	logger   logger.Logger
}

func New(interval time.Duration, refresh repository.RefreshTokenRepo, logger logger.Logger) *Sweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}

	return &Sweeper{
		interval: interval,
		refresh:  refresh,
		logger:   logger,
	}
}

// Run sweeps on a ticker until ctx is cancelled.
// Returned channel is closed when the sweeper has fully stopped.
func (s *Sweeper) Run(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})
	s.logger.Debug("Starting token sweeper", "interval", s.interval)

	go func() {
		defer close(idleStopped)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Debug("Token sweeper stopped by context")
				return

			case <-ticker.C:
				s.Sweep(ctx)
			}
		}
	}()

	return idleStopped
}

// Sweep deletes every token expired by now. Safe to call concurrently with
// any login or refresh: it only ever removes rows.
func (s *Sweeper) Sweep(ctx context.Context) {
	deleted, err := s.refresh.DeleteExpired(ctx, time.Now())
	if err != nil {
		s.logger.Error("Failed to sweep expired refresh tokens", "error", err)
		return
	}

	if deleted > 0 {
		s.logger.Info("Swept expired refresh tokens", "count", deleted)
	}
}
