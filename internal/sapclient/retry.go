package sapclient

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy bounds delivery attempts. Attempts run sequentially, each under its own timeout.
type RetryPolicy struct {
	MaxAttempts    int
	AttemptTimeout time.Duration
	Backoff        time.Duration
}

// DefaultRetryPolicy is two attempts of 30s each with a 1s pause in between.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    2,
		AttemptTimeout: 30 * time.Second,
		Backoff:        time.Second,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.AttemptTimeout <= 0 {
		p.AttemptTimeout = def.AttemptTimeout
	}
	if p.Backoff < 0 {
		p.Backoff = 0
	}
	return p
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func timerSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// permanent marks an attempt error that must not be retried.
func permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do runs fn until it succeeds, returns a permanent error, or the attempts are exhausted.
// It reports the number of attempts made and the last error, unwrapped from any permanent marker.
func (p RetryPolicy) Do(ctx context.Context, sleep SleepFunc, fn func(ctx context.Context, attempt int) error) (int, error) {
	p = p.normalized()
	if sleep == nil {
		sleep = timerSleep
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, p.AttemptTimeout)
		err := fn(attemptCtx, attempt)
		cancel()

		if err == nil {
			return attempt, nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return attempt, perm.err
		}

		lastErr = err
		if ctx.Err() != nil {
			return attempt, lastErr
		}

		if attempt < p.MaxAttempts {
			if err := sleep(ctx, p.Backoff); err != nil {
				return attempt, lastErr
			}
		}
	}

	return p.MaxAttempts, lastErr
}
