// Package poll awaits eventually-consistent state with bounded cost.
//
// It is used only where a downstream store populates a row asynchronously in
// reaction to a write this system just performed (profile materialization
// after identity creation), never to await arbitrary user action. Keeping the
// retry policy in one tunable unit beats ad hoc sleep loops scattered through
// saga code.
package poll

import (
	"context"
	"errors"
	"time"
)

// ErrExhausted is returned after MaxAttempts fetches without a result.
// Services translate it into the step-typed domain error (ProfileNotReady).
var ErrExhausted = errors.New("poll attempts exhausted")

// Config bounds a poll.
type Config struct {
	// MaxAttempts is the exact number of fetch calls before giving up.
	MaxAttempts int
	// Interval is the delay between attempts. No delay follows the last one.
	Interval time.Duration
	// Multiplier, when > 1, grows the interval after each attempt.
	Multiplier float64
}

// Await calls fetch until it reports a result, the attempts are exhausted, or
// the context is done. fetch returns (value, true, nil) once the state is
// visible and (zero, false, nil) while it is not; a non-nil error aborts
// immediately, because a store failure is not the same as "not yet visible".
//
// The attempt count used is returned alongside the result for metrics.
func Await[T any](ctx context.Context, cfg Config, fetch func(ctx context.Context) (T, bool, error)) (T, int, error) {
	var zero T
	if cfg.MaxAttempts <= 0 {
		return zero, 0, ErrExhausted
	}

	interval := cfg.Interval
	for attempt := 1; ; attempt++ {
		value, ok, err := fetch(ctx)
		if err != nil {
			return zero, attempt, err
		}
		if ok {
			return value, attempt, nil
		}
		if attempt == cfg.MaxAttempts {
			return zero, attempt, ErrExhausted
		}

		select {
		case <-ctx.Done():
			return zero, attempt, ctx.Err()
		case <-time.After(interval):
		}
		if cfg.Multiplier > 1 {
			interval = time.Duration(float64(interval) * cfg.Multiplier)
		}
	}
}
