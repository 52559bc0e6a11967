package ratelimit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/firasghr/GoStealthClient/ratelimit"
)

func TestTokenBucket_NonBlockingDenies(t *testing.T) {
	bucket := ratelimit.NewTokenBucket(1, 1, false)

	if err := bucket.Acquire(context.Background(), 1); err != nil {
		t.Fatalf("first acquire should pass: %v", err)
	}
	err := bucket.Acquire(context.Background(), 1)
	var rlErr *ratelimit.Error
	if !errors.As(err, &rlErr) {
		t.Fatalf("expected *ratelimit.Error, got %v", err)
	}
	if rlErr.RetryAfter <= 0 || rlErr.RetryAfter > 2*time.Second {
		t.Errorf("retry_after = %s, want ~1s", rlErr.RetryAfter)
	}
}

func TestTokenBucket_BlockingWaits(t *testing.T) {
	bucket := ratelimit.NewTokenBucket(50, 1, true)
	ctx := context.Background()

	if err := bucket.Acquire(ctx, 1); err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	if err := bucket.Acquire(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if waited := time.Since(start); waited < 10*time.Millisecond {
		t.Errorf("second acquire waited only %s, expected a refill delay", waited)
	}
}

// Token conservation: over any interval the grants cannot exceed
// capacity + rate * elapsed.
func TestTokenBucket_Conservation(t *testing.T) {
	const (
		rate     = 200.0
		capacity = 5
	)
	bucket := ratelimit.NewTokenBucket(rate, capacity, false)
	ctx := context.Background()

	start := time.Now()
	granted := 0
	for time.Since(start) < 100*time.Millisecond {
		if err := bucket.Acquire(ctx, 1); err == nil {
			granted++
		}
	}
	elapsed := time.Since(start).Seconds()
	bound := float64(capacity) + rate*elapsed + 1 // +1 for boundary slack
	if float64(granted) > bound {
		t.Errorf("granted %d tokens, bound is %.1f", granted, bound)
	}
}

func TestTokenBucket_ContextCancelled(t *testing.T) {
	bucket := ratelimit.NewTokenBucket(0.1, 1, true)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_ = bucket.Acquire(ctx, 1)
	if err := bucket.Acquire(ctx, 1); err == nil {
		t.Fatal("expected context error while blocking on empty bucket")
	}
}

func TestPerHost_IndependentBuckets(t *testing.T) {
	limiter := ratelimit.NewPerHost(1, 1, false)
	ctx := context.Background()

	if err := limiter.Acquire(ctx, "a.example"); err != nil {
		t.Fatal(err)
	}
	// A second host must have a full bucket of its own.
	if err := limiter.Acquire(ctx, "b.example"); err != nil {
		t.Fatalf("second host should be unaffected: %v", err)
	}
	// The first host is now empty.
	if err := limiter.Acquire(ctx, "a.example"); err == nil {
		t.Fatal("first host should be rate limited")
	}
}

func TestSlidingWindow_LimitAndRecovery(t *testing.T) {
	window := 80 * time.Millisecond
	limiter := ratelimit.NewSlidingWindow(2, window, false)
	ctx := context.Background()

	if err := limiter.Acquire(ctx); err != nil {
		t.Fatal(err)
	}
	if err := limiter.Acquire(ctx); err != nil {
		t.Fatal(err)
	}
	err := limiter.Acquire(ctx)
	var rlErr *ratelimit.Error
	if !errors.As(err, &rlErr) {
		t.Fatalf("expected *ratelimit.Error, got %v", err)
	}

	time.Sleep(window + 20*time.Millisecond)
	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("window should have slid past the old entries: %v", err)
	}
}

func TestSlidingWindow_BlockingWaits(t *testing.T) {
	limiter := ratelimit.NewSlidingWindow(1, 50*time.Millisecond, true)
	ctx := context.Background()

	if err := limiter.Acquire(ctx); err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	if err := limiter.Acquire(ctx); err != nil {
		t.Fatal(err)
	}
	if waited := time.Since(start); waited < 30*time.Millisecond {
		t.Errorf("blocking acquire waited only %s", waited)
	}
}
