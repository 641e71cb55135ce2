package resilience

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/prf-search/pkg/errors"
)

type callResult[T any] struct {
	val T
	err error
}

// Call runs fn under a derived context cancelled after timeout and returns
// its value. When the deadline passes first the error wraps both
// apperrors.ErrTimeout and context.DeadlineExceeded; fn keeps running in the
// background until it observes the cancellation and its result is discarded.
func Call[T any](ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	done := make(chan callResult[T], 1)
	go func() {
		v, err := fn(timeoutCtx)
		done <- callResult[T]{val: v, err: err}
	}()
	var zero T
	select {
	case r := <-done:
		return r.val, r.err
	case <-timeoutCtx.Done():
		if ctx.Err() != nil {
			return zero, fmt.Errorf("%s: parent context cancelled: %w", name, ctx.Err())
		}
		return zero, fmt.Errorf("%s: %w: %w (limit: %v)", name, apperrors.ErrTimeout, context.DeadlineExceeded, timeout)
	}
}
