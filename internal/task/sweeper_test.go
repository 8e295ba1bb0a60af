package task

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAbandoner struct {
	mu    sync.Mutex
	calls int
	count int
	err   error
}

func (s *stubAbandoner) AbandonStale(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.count, s.err
}

type stubRecomputer struct {
	mu     sync.Mutex
	calls  int
	sinces []time.Time
	err    error
}

func (s *stubRecomputer) RecomputeRollups(_ context.Context, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.sinces = append(s.sinces, since)
	return 0, s.err
}

func newTestSweeper(abandoner *stubAbandoner, recomputer *stubRecomputer) *Sweeper {
	return NewSweeper(abandoner, recomputer, SweeperConfig{Interval: time.Hour},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRunOnceInvokesBothSteps(t *testing.T) {
	abandoner := &stubAbandoner{count: 3}
	recomputer := &stubRecomputer{}
	sweeper := newTestSweeper(abandoner, recomputer)

	sweeper.RunOnce(context.Background())

	assert.Equal(t, 1, abandoner.calls)
	assert.Equal(t, 1, recomputer.calls)
}

func TestRunOnceAdvancesRecomputeWindow(t *testing.T) {
	abandoner := &stubAbandoner{}
	recomputer := &stubRecomputer{}
	sweeper := newTestSweeper(abandoner, recomputer)

	before := time.Now().UTC()
	sweeper.RunOnce(context.Background())
	sweeper.RunOnce(context.Background())

	require.Len(t, recomputer.sinces, 2)
	// First cycle backfills; the second starts where the first began.
	assert.True(t, recomputer.sinces[0].Before(before.Add(-24*time.Hour)))
	assert.False(t, recomputer.sinces[1].Before(before))
}

func TestRunOnceSweepFailureStillRecomputes(t *testing.T) {
	abandoner := &stubAbandoner{err: errors.New("db down")}
	recomputer := &stubRecomputer{}
	sweeper := newTestSweeper(abandoner, recomputer)

	sweeper.RunOnce(context.Background())

	assert.Equal(t, 1, recomputer.calls)
}

func TestRunOnceRecomputeFailureRetainsWindow(t *testing.T) {
	abandoner := &stubAbandoner{}
	recomputer := &stubRecomputer{err: errors.New("db down")}
	sweeper := newTestSweeper(abandoner, recomputer)

	sweeper.RunOnce(context.Background())
	recomputer.err = nil
	sweeper.RunOnce(context.Background())

	require.Len(t, recomputer.sinces, 2)
	// The failed cycle's window is retried, not skipped past.
	assert.True(t, recomputer.sinces[1].Equal(recomputer.sinces[0]))
}

func TestStartStop(t *testing.T) {
	abandoner := &stubAbandoner{}
	recomputer := &stubRecomputer{}
	sweeper := NewSweeper(abandoner, recomputer, SweeperConfig{Interval: 10 * time.Millisecond},
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	sweeper.Start()
	time.Sleep(50 * time.Millisecond)
	sweeper.Stop()

	abandoner.mu.Lock()
	calls := abandoner.calls
	abandoner.mu.Unlock()
	assert.Greater(t, calls, 0)

	// Stop is final; no further cycles run.
	time.Sleep(30 * time.Millisecond)
	abandoner.mu.Lock()
	after := abandoner.calls
	abandoner.mu.Unlock()
	assert.Equal(t, calls, after)
}
