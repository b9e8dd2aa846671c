// Package retryx wraps github.com/sethvargo/go-retry with the linear policy
// used by the local store queries: wait attempt×step between attempts and
// give up after a fixed number of attempts.
package retryx

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// Policy describes a linear retry schedule.
type Policy struct {
	Attempts int
	Step     time.Duration
}

// DefaultPolicy is three attempts spaced 100ms, 200ms apart.
var DefaultPolicy = Policy{Attempts: 3, Step: 100 * time.Millisecond}

// Backoff returns a go-retry backoff that yields Step, 2×Step, ... and stops
// once Attempts calls to the operation have been made.
func (p Policy) Backoff() retry.Backoff {
	attempt := 0
	return retry.BackoffFunc(func() (time.Duration, bool) {
		attempt++
		if attempt >= p.Attempts {
			return 0, true
		}
		return time.Duration(attempt) * p.Step, false
	})
}

// Do calls fn until it succeeds or the policy is exhausted. Every error
// returned by fn is treated as retryable; the last one is returned.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, p.Backoff(), func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

// Value is Do for operations that produce a value. On exhaustion it returns
// fallback together with the last error so callers can log and move on.
func Value[T any](ctx context.Context, p Policy, fallback T, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := Do(ctx, p, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		return fallback, err
	}
	return out, nil
}
