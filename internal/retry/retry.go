// Package retry implements the bounded retry-with-backoff policy applied
// at every network and model call site.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// Policy describes a bounded exponential backoff schedule.
type Policy struct {
	MaxAttempts int
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

// Default mirrors the fetch/model call schedule: up to 3 attempts,
// waits of 1s, 2s, ... capped at 10s.
func Default() Policy {
	return Policy{
		MaxAttempts: 3,
		BackoffBase: time.Second,
		BackoffCap:  10 * time.Second,
	}
}

// WithAttempts returns a copy of the policy with MaxAttempts replaced.
func (p Policy) WithAttempts(n int) Policy {
	p.MaxAttempts = n
	return p
}

// permanentError marks an error that must not be retried.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so Do treats it as terminal.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Backoff returns the wait duration before the given 1-based attempt's retry.
func (p Policy) Backoff(attempt int) time.Duration {
	if p.BackoffBase <= 0 {
		return 0
	}
	delay := float64(p.BackoffBase) * math.Pow(2, float64(attempt-1))
	if cap := float64(p.BackoffCap); p.BackoffCap > 0 && delay > cap {
		delay = cap
	}
	return time.Duration(delay)
}

// Do runs op up to MaxAttempts times, sleeping the backoff schedule
// between attempts. Context cancellation and Permanent errors stop the
// loop immediately. The last error is returned when attempts run out.
func (p Policy) Do(ctx context.Context, op func() error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("retry aborted: %w", err)
		}
		err := op()
		if err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		if !sleep(ctx, p.Backoff(attempt)) {
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		}
	}
	return fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
