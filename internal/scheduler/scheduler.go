package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/EddyMaster88/ml-affiliate-poster/internal/util"
)

// RunFunc is one pipeline pass. The scheduler does not care about the
// pipeline's summary, only whether the pass succeeded.
type RunFunc func(ctx context.Context) error

// Scheduler runs a pipeline on a fixed interval. Cycles never overlap: a
// manual trigger while a cycle is in flight is rejected, and the ticker
// simply fires again later if a cycle outlives the interval.
type Scheduler struct {
	run        RunFunc
	interval   time.Duration
	maxRetries int

	mu       sync.Mutex
	running  bool
	lastRun  time.Time
	lastErr  error
	runCount int
}

func New(run RunFunc, interval time.Duration) *Scheduler {
	return &Scheduler{
		run:        run,
		interval:   interval,
		maxRetries: 2,
	}
}

// Start blocks until ctx is cancelled, executing one cycle immediately and
// then one per interval. A failing cycle is logged and the loop keeps going.
func (s *Scheduler) Start(ctx context.Context) error {
	slog.Info("Scheduler started", "interval", s.interval)

	if err := s.Trigger(ctx); err != nil {
		slog.Error("Initial cycle failed", "error", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Scheduler stopped", "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			if err := s.Trigger(ctx); err != nil {
				slog.Error("Cycle failed", "error", err)
			}
		}
	}
}

// Trigger runs one cycle now, with retries, unless a cycle is already in
// flight. It is safe to call from other goroutines (the HTTP trigger).
func (s *Scheduler) Trigger(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		slog.Warn("Cycle already running, skipping trigger")
		return ErrBusy
	}
	s.running = true
	s.mu.Unlock()

	err := util.RetryWithBackoff(ctx, s.maxRetries, func(attempt int) error {
		if attempt > 0 {
			slog.Warn("Retrying cycle", "attempt", attempt)
		}
		return s.run(ctx)
	})

	s.mu.Lock()
	s.running = false
	s.lastRun = time.Now()
	s.lastErr = err
	s.runCount++
	s.mu.Unlock()
	return err
}

// Status reports the heartbeat surfaced by the health endpoint.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Running:  s.running,
		LastRun:  s.lastRun,
		RunCount: s.runCount,
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	Running   bool      `json:"running"`
	LastRun   time.Time `json:"last_run"`
	RunCount  int       `json:"run_count"`
	LastError string    `json:"last_error,omitempty"`
}
