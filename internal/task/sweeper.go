// Package task hosts the periodic maintenance loop: each cycle abandons
// records left open past their staleness threshold, then rebuilds the daily
// rollups touched by recent activity.
package task

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// initialBackfill is how far back the first rollup recompute reaches, so
// rollups left stale across a restart are rebuilt promptly.
const initialBackfill = 48 * time.Hour

// StaleAbandoner abandons open records that have outlived their domain's
// staleness threshold.
type StaleAbandoner interface {
	AbandonStale(ctx context.Context) (int, error)
}

// RollupRecomputer rebuilds the daily rollups touched by records updated
// since the given instant.
type RollupRecomputer interface {
	RecomputeRollups(ctx context.Context, since time.Time) (int, error)
}

// SweeperConfig holds configuration for the maintenance loop.
type SweeperConfig struct {
	// Interval between maintenance cycles.
	Interval time.Duration
}

// Sweeper runs the periodic maintenance cycle.
type Sweeper struct {
	lifecycle  StaleAbandoner
	analytics  RollupRecomputer
	config     SweeperConfig
	logger     *slog.Logger
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup

	mu        sync.Mutex
	lastSweep time.Time
}

// NewSweeper creates a Sweeper. It does not start the loop; call Start.
func NewSweeper(
	lifecycle StaleAbandoner,
	analytics RollupRecomputer,
	config SweeperConfig,
	logger *slog.Logger,
) *Sweeper {
	if lifecycle == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("lifecycle service cannot be nil")
	}
	if analytics == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("analytics service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Sweeper{
		lifecycle:  lifecycle,
		analytics:  analytics,
		config:     config,
		logger:     logger.With(slog.String("component", "sweeper")),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start launches the maintenance loop in a background goroutine.
func (s *Sweeper) Start() {
	s.mu.Lock()
	s.lastSweep = time.Now().UTC().Add(-initialBackfill)
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop()
}

// Stop cancels the loop and waits for an in-flight cycle to finish.
func (s *Sweeper) Stop() {
	s.cancelFunc()
	s.wg.Wait()
}

func (s *Sweeper) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.logger.Debug("stopping maintenance loop")
			return

		case <-ticker.C:
			s.RunOnce(s.ctx)
		}
	}
}

// RunOnce executes a single maintenance cycle: sweep, then recompute. A
// failing step is logged and does not abort the cycle or the loop. Safe to
// call concurrently with the periodic loop; the recompute window is tracked
// under a lock.
func (s *Sweeper) RunOnce(ctx context.Context) {
	started := time.Now().UTC()

	s.mu.Lock()
	since := s.lastSweep
	if since.IsZero() {
		since = started.Add(-initialBackfill)
	}
	s.mu.Unlock()

	abandoned, err := s.lifecycle.AbandonStale(ctx)
	if err != nil {
		s.logger.Error("staleness sweep failed",
			slog.String("error", err.Error()))
	}

	written, err := s.analytics.RecomputeRollups(ctx, since)
	if err != nil {
		s.logger.Error("rollup recompute failed",
			slog.String("error", err.Error()))
		// Keep lastSweep so the next cycle retries the same window.
		if abandoned > 0 {
			s.logger.Info("maintenance cycle partially completed",
				slog.Int("abandoned", abandoned))
		}
		return
	}

	s.mu.Lock()
	s.lastSweep = started
	s.mu.Unlock()

	s.logger.Debug("maintenance cycle completed",
		slog.Int("abandoned", abandoned),
		slog.Int("rollups_written", written),
		slog.Duration("elapsed", time.Since(started)))
}
