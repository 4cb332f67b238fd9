package linkvault

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultSweepInterval     = 5 * time.Minute
	DefaultSweepStartupDelay = 5 * time.Second
)

// SweepResult is the outcome of one sweep run.
type SweepResult struct {
	Removed  int
	Duration time.Duration
	Err      error
}

// Sweeper periodically removes expired records in the background.
// Reads enforce expiry on their own, so the sweeper only reclaims space.
type Sweeper struct {
	svc          Service
	interval     time.Duration
	startupDelay time.Duration
	logger       *slog.Logger

	mu sync.Mutex // serializes RunOnce

	lifecycle sync.Mutex // guards cancel and done
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewSweeper creates a sweeper for svc. A non-positive interval or a negative
// startup delay falls back to the default.
func NewSweeper(svc Service, interval, startupDelay time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if startupDelay < 0 {
		startupDelay = DefaultSweepStartupDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		svc:          svc,
		interval:     interval,
		startupDelay: startupDelay,
		logger:       logger.With(slog.String("component", "sweeper")),
	}
}

// Start launches the background loop. It runs once after the startup delay
// and then on every interval tick until ctx is cancelled or Stop is called.
// Starting a running sweeper does nothing.
func (s *Sweeper) Start(ctx context.Context) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	if s.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(runCtx, s.done)

	s.logger.Info("sweeper started",
		slog.String("interval", s.interval.String()),
		slog.String("startup_delay", s.startupDelay.String()),
	)
}

// Stop cancels the background loop and waits for an in-flight run to return.
func (s *Sweeper) Stop() {
	s.lifecycle.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.lifecycle.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("sweeper stopped")
}

func (s *Sweeper) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	if s.startupDelay > 0 {
		timer := time.NewTimer(s.startupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs one sweep. Concurrent calls are serialized.
func (s *Sweeper) RunOnce(ctx context.Context) *SweepResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	removed, err := s.svc.Sweep(ctx)
	result := &SweepResult{
		Removed:  removed,
		Duration: time.Since(start),
		Err:      err,
	}

	sweepRunsTotal.Inc()
	sweepDurationSeconds.Observe(result.Duration.Seconds())

	if err != nil {
		s.logger.Error("sweep failed",
			slog.Int("removed", removed),
			slog.String("error", err.Error()),
		)
		return result
	}

	if removed > 0 {
		s.logger.Info("sweep completed",
			slog.Int("removed", removed),
			slog.Duration("duration", result.Duration),
		)
	} else {
		s.logger.Debug("sweep completed", slog.Duration("duration", result.Duration))
	}

	return result
}
