// Package retry runs store calls under a bounded attempt budget with a fixed
// per-attempt timeout and exponential backoff between attempts.
package retry

import (
	"context"
	"errors"
	"time"
)

// Policy bounds a retried operation.
type Policy struct {
	MaxAttempts    int
	AttemptTimeout time.Duration
	BaseBackoff    time.Duration

	// OnRetry, when set, is told about every failed attempt that will be retried.
	OnRetry func(attempt int, err error)
	// sleep is swapped in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// Default is 3 attempts, 10s each, backing off 1s then 2s.
func Default() Policy {
	return Policy{MaxAttempts: 3, AttemptTimeout: 10 * time.Second, BaseBackoff: time.Second}
}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying. Do returns the wrapped error.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do calls fn until it succeeds, returns a Permanent error, the parent context
// ends, or the attempt budget is spent. The last error is returned.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		lastErr = p.attempt(ctx, fn)
		if lastErr == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(lastErr, &perm) {
			return perm.err
		}
		if ctx.Err() != nil || attempt == attempts-1 {
			break
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, lastErr)
		}
		if err := sleep(ctx, p.backoff(attempt)); err != nil {
			break
		}
	}
	return lastErr
}

func (p Policy) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.AttemptTimeout <= 0 {
		return fn(ctx)
	}
	actx, cancel := context.WithTimeout(ctx, p.AttemptTimeout)
	defer cancel()
	return fn(actx)
}

// backoff is BaseBackoff * 2^attempt.
func (p Policy) backoff(attempt int) time.Duration {
	if p.BaseBackoff <= 0 {
		return 0
	}
	return p.BaseBackoff << uint(attempt)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
