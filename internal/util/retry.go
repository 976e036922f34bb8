package util

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Backoff returns how long to wait after the given 0-indexed attempt failed.
type Backoff func(attempt int) time.Duration

// FixedBackoff waits d between every attempt.
func FixedBackoff(d time.Duration) Backoff {
	return func(int) time.Duration { return d }
}

// ExponentialBackoff waits base, 2*base, 4*base, ...
func ExponentialBackoff(base time.Duration) Backoff {
	return func(attempt int) time.Duration {
		return base * time.Duration(1<<attempt)
	}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Retry returns it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err (or anything it wraps) was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Retry calls op up to attempts times, waiting backoff(attempt) between failures.
// A Permanent error stops the loop at once. If the context is cancelled while
// waiting, the context error is returned.
func Retry[T any](ctx context.Context, attempts int, backoff Backoff, op func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		v, err := op(ctx, attempt)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if IsPermanent(err) {
			return zero, err
		}

		// Don't wait after the last attempt
		if attempt == attempts-1 {
			break
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		var wait time.Duration
		if backoff != nil {
			wait = backoff(attempt)
		}
		if wait <= 0 {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
	return zero, fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}
