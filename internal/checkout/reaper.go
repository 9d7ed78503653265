package checkout

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Reaper periodically fails PAYMENT_PENDING sessions whose expiry has
// passed, so a confirmation that never arrives cannot hold a session open
// forever.
type Reaper struct {
	repo     SessionRepository
	interval time.Duration
	logger   *zap.Logger
}

func NewReaper(repo SessionRepository, interval time.Duration, logger *zap.Logger) *Reaper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reaper{repo: repo, interval: interval, logger: logger}
}

// Run blocks until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("checkout reaper started", zap.Duration("interval", r.interval))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("checkout reaper stopped")
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reaper) sweep(ctx context.Context) {
	expired, err := r.repo.ExpireStalePending(ctx, time.Now())
	if err != nil {
		r.logger.Error("failed to expire stale sessions", zap.Error(err))
		return
	}
	if expired > 0 {
		r.logger.Info("expired stale checkout sessions", zap.Int64("count", expired))
	}
}
