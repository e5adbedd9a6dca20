package worker

import (
	"context"
	"log/slog"
	"time"

	"basegraph.app/insight/common/logger"
	"basegraph.app/insight/internal/store"
)

type SweeperConfig struct {
	// RetentionDays bounds how long call metrics and quality rows are
	// kept. Zero or negative disables the sweep entirely.
	RetentionDays int
	Interval      time.Duration
}

const defaultSweepInterval = 6 * time.Hour

// Sweeper deletes expired observability rows (ai_call_metrics and
// ai_result_quality) on a timer. Deletes are idempotent, so concurrent
// sweeps from several worker processes are harmless.
type Sweeper struct {
	metrics store.MetricStore
	quality store.QualityStore
	cfg     SweeperConfig
	logger  *slog.Logger

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewSweeper(metrics store.MetricStore, quality store.QualityStore, cfg SweeperConfig, log *slog.Logger) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultSweepInterval
	}
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{
		metrics:   metrics,
		quality:   quality,
		cfg:       cfg,
		logger:    log,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Run sweeps once immediately, then on every tick. Blocks until Stop()
// is called or ctx ends.
func (s *Sweeper) Run(ctx context.Context) {
	defer close(s.stoppedCh)

	if s.cfg.RetentionDays <= 0 {
		s.logger.InfoContext(ctx, "retention sweeper disabled")
		select {
		case <-ctx.Done():
		case <-s.stopCh:
		}
		return
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "insight.worker.sweeper",
	})

	s.logger.InfoContext(ctx, "retention sweeper started",
		"retention_days", s.cfg.RetentionDays,
		"interval", s.cfg.Interval)

	s.sweepOnce(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			s.logger.InfoContext(ctx, "retention sweeper stopping")
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

// Stop signals the sweeper to stop gracefully.
func (s *Sweeper) Stop() {
	close(s.stopCh)
	<-s.stoppedCh
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.cfg.RetentionDays)

	if n, err := s.metrics.DeleteOlderThan(ctx, cutoff); err != nil {
		s.logger.ErrorContext(ctx, "call metric sweep failed", "error", err)
	} else if n > 0 {
		s.logger.InfoContext(ctx, "expired call metrics deleted",
			"rows", n, "cutoff", cutoff)
	}

	if n, err := s.quality.DeleteOlderThan(ctx, cutoff); err != nil {
		s.logger.ErrorContext(ctx, "quality sweep failed", "error", err)
	} else if n > 0 {
		s.logger.InfoContext(ctx, "expired quality rows deleted",
			"rows", n, "cutoff", cutoff)
	}
}
