package worker_test

import (
	"sync/atomic"
	"testing"

	"github.com/firasghr/GoStealthClient/worker"
)

func TestPool_RunsAllJobs(t *testing.T) {
	pool := worker.NewPool(4)
	pool.Start()

	var count atomic.Int32
	for i := 0; i < 100; i++ {
		pool.Submit(func() { count.Add(1) })
	}
	pool.Stop()

	if got := count.Load(); got != 100 {
		t.Errorf("executed %d jobs, want 100", got)
	}
}

func TestPool_StopWaitsForInFlight(t *testing.T) {
	pool := worker.NewPool(2)
	pool.Start()

	done := make(chan struct{}, 1)
	pool.Submit(func() { done <- struct{}{} })
	pool.Stop()

	select {
	case <-done:
	default:
		t.Error("Stop returned before the submitted job ran")
	}
}

func TestPool_ZeroSizeClampsToOne(t *testing.T) {
	pool := worker.NewPool(0)
	pool.Start()

	ran := false
	pool.Submit(func() { ran = true })
	pool.Stop()

	if !ran {
		t.Error("job did not run on clamped pool")
	}
}
