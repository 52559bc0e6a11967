package metrics_test

import (
	"sync"
	"testing"

	"github.com/firasghr/GoStealthClient/metrics"
)

func TestMetrics_CountersUnderConcurrency(t *testing.T) {
	m := metrics.New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.IncrementTotal()
			m.IncrementSucceeded()
		}()
	}
	wg.Wait()
	m.IncrementFailed()
	m.AddRetried(3)
	m.IncrementH3Fallbacks()

	total, succeeded, failed, retried, h3 := m.Snapshot()
	if total != 50 || succeeded != 50 {
		t.Errorf("total/succeeded = %d/%d, want 50/50", total, succeeded)
	}
	if failed != 1 || retried != 3 || h3 != 1 {
		t.Errorf("failed/retried/h3 = %d/%d/%d, want 1/3/1", failed, retried, h3)
	}
}

func TestMetrics_AddRetriedIgnoresNonPositive(t *testing.T) {
	m := metrics.New()
	m.AddRetried(0)
	m.AddRetried(-2)
	_, _, _, retried, _ := m.Snapshot()
	if retried != 0 {
		t.Errorf("retried = %d, want 0", retried)
	}
}
