package timex

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned by Do when the deadline fires before fn settles.
var ErrTimeout = errors.New("operation timed out")

// Do runs fn with a context bounded by d and returns whichever settles
// first: fn's result or the deadline. fn keeps running in the background
// after a timeout if it ignores its context; its late result is dropped.
//
// A parent cancellation is reported as the parent's error, a fired
// deadline as ErrTimeout.
func Do[T any](ctx context.Context, d time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)

	go func() {
		v, err := fn(ctx)
		done <- result{v: v, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			var zero T
			return zero, ErrTimeout
		}
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, ErrTimeout
		}
		return zero, ctx.Err()
	}
}
