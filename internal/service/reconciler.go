package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rajinder-mohan/yt2txt/internal/db/repository"
	"github.com/rajinder-mohan/yt2txt/internal/metrics"
	"github.com/rajinder-mohan/yt2txt/pkg/logger"
)

// Reconciler periodically returns orphaned processing attempts to pending
// so a later request can pick them up.
type Reconciler struct {
	repo       repository.VideoRepository
	staleAfter time.Duration
	interval   time.Duration
}

// NewReconciler creates a Reconciler.
func NewReconciler(repo repository.VideoRepository, staleAfter, interval time.Duration) *Reconciler {
	if staleAfter <= 0 {
		staleAfter = 15 * time.Minute
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Reconciler{
		repo:       repo,
		staleAfter: staleAfter,
		interval:   interval,
	}
}

// Run sweeps on a fixed interval until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	logger.Log.Info("reconciler started",
		zap.Duration("interval", r.interval),
		zap.Duration("stale_after", r.staleAfter),
	)

	// Sweep once up front so a restart clears attempts orphaned by the
	// previous process without waiting a full interval.
	if _, err := r.Sweep(ctx); err != nil {
		logger.Log.Error("reconcile sweep failed", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("reconciler stopped")
			return
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil {
				logger.Log.Error("reconcile sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep runs one reclaim pass and returns the number of videos reset.
func (r *Reconciler) Sweep(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-r.staleAfter)
	reclaimed, err := r.repo.ReclaimStale(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if reclaimed > 0 {
		metrics.StaleReclaimed.Add(float64(reclaimed))
		logger.Log.Warn("reclaimed stale processing attempts",
			zap.Int64("count", reclaimed))
	}
	return reclaimed, nil
}
