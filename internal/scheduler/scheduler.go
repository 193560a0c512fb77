package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// RunFunc is one background run. Errors are logged, never propagated; the
// run owns its own retry policy.
type RunFunc func(context.Context) error

// Scheduler triggers a named background run on a fixed interval, plus
// on demand via Trigger. Runs never overlap within one scheduler.
type Scheduler struct {
	name     string
	interval time.Duration
	runFn    RunFunc
	log      *slog.Logger

	running atomic.Bool
	trigger chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(name string, interval time.Duration, runFn RunFunc, log *slog.Logger) (*Scheduler, error) {
	if name == "" {
		return nil, errors.New("name must not be empty")
	}
	if interval <= 0 {
		return nil, errors.New("interval must be > 0")
	}
	if runFn == nil {
		return nil, errors.New("runFn must not be nil")
	}
	return &Scheduler{
		name:     name,
		interval: interval,
		runFn:    runFn,
		log:      log,
		trigger:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}, nil
}

func (s *Scheduler) Name() string { return s.name }

func (s *Scheduler) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running.Store(true)

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.log.Info("scheduler started", "module", s.name, "interval", s.interval.String())

		s.safeRun(ctx)

		for {
			select {
			case <-ctx.Done():
				s.log.Info("scheduler stopping", "module", s.name)
				return
			case <-ticker.C:
				s.safeRun(ctx)
			case <-s.trigger:
				s.safeRun(ctx)
			}
		}
	}()

	return true
}

func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Load() {
		return false
	}

	s.cancel()
	<-s.done
	s.running.Store(false)

	s.log.Info("scheduler stopped", "module", s.name)
	return true
}

func (s *Scheduler) IsRunning() bool {
	return s.running.Load()
}

// Trigger requests an immediate run. A no-op when one is already pending or
// the scheduler is stopped.
func (s *Scheduler) Trigger() {
	if !s.running.Load() {
		return
	}
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

func (s *Scheduler) safeRun(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("run panic recovered", "module", s.name, "panic", r)
		}
	}()

	start := time.Now()
	err := s.runFn(ctx)
	switch {
	case err == nil:
		s.log.Info("run completed", "module", s.name, "duration_ms", time.Since(start).Milliseconds())
	case errors.Is(err, context.Canceled):
		// shutdown, not a failure
	default:
		s.log.Error("run failed", "module", s.name, "error", err,
			"duration_ms", time.Since(start).Milliseconds())
	}
}
