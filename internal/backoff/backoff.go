package backoff

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Policy maps a failed-attempt count to a retry decision. It is pure: the
// same attempt count always yields the same decision.
type Policy struct {
	Min         time.Duration
	MaxAttempts int
}

// Default mirrors the platform scheduler settings: exponential from one
// second, three attempts total.
func Default() Policy {
	return Policy{Min: time.Second, MaxAttempts: 3}
}

// Decide returns the delay before the next try after `attempt` failures.
// ok is false once the attempt budget is exhausted.
func (p Policy) Decide(attempt int) (delay time.Duration, ok bool) {
	if attempt <= 0 {
		return 0, true
	}
	if attempt >= p.MaxAttempts {
		return 0, false
	}
	return p.Min << (attempt - 1), true
}

// Runner executes an operation under a Policy. Outcome classification is
// supplied by the caller so the policy stays independent of any transport
// package: duplicates succeed without consuming an attempt, transients are
// retried, everything else is surfaced immediately.
type Runner struct {
	Policy      Policy
	IsDuplicate func(error) bool
	IsTransient func(error) bool
	Log         *slog.Logger
}

// Run invokes fn until it succeeds, fails non-transiently, or the policy
// gives up. The returned error on give-up wraps the last transient failure.
func (r Runner) Run(ctx context.Context, name string, fn func(context.Context) error) error {
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if r.IsDuplicate != nil && r.IsDuplicate(err) {
			return nil
		}
		if r.IsTransient == nil || !r.IsTransient(err) {
			return err
		}

		delay, ok := r.Policy.Decide(attempt)
		if !ok {
			return fmt.Errorf("%s: giving up after %d attempts: %w", name, attempt, err)
		}
		if r.Log != nil {
			r.Log.Warn("transient failure, retrying",
				"module", name, "attempt", attempt, "delay", delay.String(), "error", err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
