// Package retry wraps the request executor's inner call with exponential
// backoff, classifying which failures are worth re-executing.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/firasghr/GoStealthClient/gerrors"
)

// ExhaustedError is the terminal failure after every allowed attempt was
// consumed.  It wraps the last cause.
type ExhaustedError struct {
	Attempts int
	Cause    error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempt(s): %v", e.Attempts, e.Cause)
}

func (e *ExhaustedError) Unwrap() error { return e.Cause }

// DefaultRetryableStatusCodes are the response codes treated as transient.
func DefaultRetryableStatusCodes() map[int]bool {
	return map[int]bool{
		408: true, 429: true, 500: true, 502: true,
		503: true, 504: true, 507: true, 511: true,
	}
}

// Policy configures a retry loop.  MaxRetries is the number of re-executions
// after the first attempt; zero means execute once and never retry.
type Policy struct {
	MaxRetries      int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	Jitter          bool
	RetryableStatus map[int]bool
}

// DefaultPolicy mirrors the shipped defaults: 3 retries, 1s base, 60s cap,
// jitter on.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:      3,
		BaseDelay:       time.Second,
		MaxDelay:        60 * time.Second,
		Jitter:          true,
		RetryableStatus: DefaultRetryableStatusCodes(),
	}
}

// Backoff computes the wait before re-running attempt k (0-indexed):
// min(base * 2^k, max), scaled by a uniform factor in [0.5, 1.0) when jitter
// is on so concurrent clients do not retry in lockstep.
func Backoff(attempt int, base, max time.Duration, jitter bool) time.Duration {
	delay := base << uint(attempt)
	if delay > max || delay <= 0 { // shift overflow guards the cap too
		delay = max
	}
	if jitter {
		delay = time.Duration(float64(delay) * (0.5 + rand.Float64()*0.5))
	}
	return delay
}

// Do runs fn until it returns a non-retriable outcome or the policy is
// exhausted.  status extracts the HTTP status from a successful result so
// retriable codes (408, 429, 5xx) re-enter the loop alongside retriable
// errors (connect, TLS, timeout, OS I/O per gerrors.IsRetriable).
// Non-retriable errors propagate unchanged and immediately.
func Do[T any](ctx context.Context, p Policy, status func(T) int, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if p.RetryableStatus == nil {
		p.RetryableStatus = DefaultRetryableStatusCodes()
	}
	attempts := p.MaxRetries + 1
	var lastCause error

	for attempt := 0; attempt < attempts; attempt++ {
		result, err := fn(ctx)
		switch {
		case err == nil && !p.RetryableStatus[status(result)]:
			return result, nil
		case err == nil:
			lastCause = fmt.Errorf("retryable status code %d", status(result))
		case gerrors.IsRetriable(err):
			lastCause = err
		default:
			return zero, err
		}

		if attempt == attempts-1 {
			break
		}
		delay := Backoff(attempt, p.BaseDelay, p.MaxDelay, p.Jitter)
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}
	return zero, &ExhaustedError{Attempts: attempts, Cause: lastCause}
}
