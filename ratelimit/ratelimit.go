// Package ratelimit provides the client's request governors: token buckets
// (global and per-host) and a sliding-window limiter for callers preferring
// count-over-window semantics.
//
// The token buckets are backed by golang.org/x/time/rate, which implements
// the same refill law (tokens = min(capacity, tokens + elapsed*rate)) with
// monotonic-clock bookkeeping.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Error reports that a non-blocking limiter denied immediate entry.
// RetryAfter is how long the caller must wait before the acquisition would
// succeed.
type Error struct {
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %.2fs", e.RetryAfter.Seconds())
}

// TokenBucket grants up to capacity tokens in a burst and refills at a
// constant per-second rate.  In blocking mode Acquire sleeps until the
// tokens are available (or the context is cancelled); in non-blocking mode
// it fails immediately with *Error.
type TokenBucket struct {
	limiter  *rate.Limiter
	blocking bool
}

// NewTokenBucket creates a bucket.  capacity <= 0 defaults the burst to the
// integer rate (minimum 1), mirroring the usual "capacity defaults to rate"
// convention.
func NewTokenBucket(ratePerSec float64, capacity int, blocking bool) *TokenBucket {
	if capacity <= 0 {
		capacity = int(ratePerSec)
		if capacity < 1 {
			capacity = 1
		}
	}
	return &TokenBucket{
		limiter:  rate.NewLimiter(rate.Limit(ratePerSec), capacity),
		blocking: blocking,
	}
}

// Acquire takes n tokens.  Non-blocking failures carry the wait that would
// have been needed.
func (b *TokenBucket) Acquire(ctx context.Context, n int) error {
	if b.blocking {
		if err := b.limiter.WaitN(ctx, n); err != nil {
			return err
		}
		return nil
	}
	now := time.Now()
	res := b.limiter.ReserveN(now, n)
	if !res.OK() {
		return &Error{RetryAfter: time.Duration(float64(n) / float64(b.limiter.Limit()) * float64(time.Second))}
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return &Error{RetryAfter: delay}
	}
	return nil
}

// Tokens reports the tokens currently available.  Exposed for observability
// and tests.
func (b *TokenBucket) Tokens() float64 { return b.limiter.Tokens() }

// PerHost applies an independent token bucket to every host, created lazily
// on first use with the configured rate and capacity.
type PerHost struct {
	ratePerSec float64
	capacity   int
	blocking   bool

	mu      sync.Mutex
	buckets map[string]*TokenBucket
}

// NewPerHost creates the per-host limiter factory.
func NewPerHost(ratePerSec float64, capacity int, blocking bool) *PerHost {
	return &PerHost{
		ratePerSec: ratePerSec,
		capacity:   capacity,
		blocking:   blocking,
		buckets:    make(map[string]*TokenBucket),
	}
}

// Acquire takes one token from host's bucket.
func (p *PerHost) Acquire(ctx context.Context, host string) error {
	p.mu.Lock()
	bucket, ok := p.buckets[host]
	if !ok {
		bucket = NewTokenBucket(p.ratePerSec, p.capacity, p.blocking)
		p.buckets[host] = bucket
	}
	p.mu.Unlock()
	return bucket.Acquire(ctx, 1)
}

// SlidingWindow limits to maxRequests within a moving window.  Timestamps of
// admitted requests are kept in a deque; expired entries are dropped on
// every acquisition.
type SlidingWindow struct {
	maxRequests int
	window      time.Duration
	blocking    bool

	mu         sync.Mutex
	timestamps []time.Time
}

// NewSlidingWindow creates a limiter admitting maxRequests per window.
func NewSlidingWindow(maxRequests int, window time.Duration, blocking bool) *SlidingWindow {
	return &SlidingWindow{maxRequests: maxRequests, window: window, blocking: blocking}
}

// Acquire admits one request, waiting for the oldest admitted request to age
// out of the window when blocking, or failing with *Error otherwise.
func (w *SlidingWindow) Acquire(ctx context.Context) error {
	for {
		w.mu.Lock()
		now := time.Now()
		cutoff := now.Add(-w.window)
		i := 0
		for i < len(w.timestamps) && w.timestamps[i].Before(cutoff) {
			i++
		}
		w.timestamps = w.timestamps[i:]

		if len(w.timestamps) < w.maxRequests {
			w.timestamps = append(w.timestamps, now)
			w.mu.Unlock()
			return nil
		}
		wait := w.timestamps[0].Add(w.window).Sub(now)
		w.mu.Unlock()

		if !w.blocking {
			return &Error{RetryAfter: wait}
		}
		if wait < time.Millisecond {
			wait = time.Millisecond
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
