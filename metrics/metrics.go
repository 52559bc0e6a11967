// Package metrics provides lightweight, lock-free request counters using
// atomic operations so they impose minimal overhead on hot paths.
package metrics

import (
	"sync/atomic"
	"time"
)

// Metrics tracks aggregate statistics for a client.
//
// All counters are accessed exclusively through atomic operations: there is
// no mutex contention however many goroutines share the client, and the
// struct may be passed as a pointer without additional synchronisation.
type Metrics struct {
	// TotalRequests is the number of requests dispatched since creation.
	TotalRequests uint64

	// Succeeded counts requests that produced a response.
	Succeeded uint64

	// Failed counts requests that ended in a transport or protocol error.
	Failed uint64

	// Retried counts re-executions performed by the retry controller.
	Retried uint64

	// H3Fallbacks counts requests that attempted HTTP/3 and fell back to
	// TCP after a QUIC failure.
	H3Fallbacks uint64

	// startTime anchors the RequestsPerSecond rate.
	startTime time.Time
}

// New creates a Metrics instance with the start time set to now.
func New() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// IncrementTotal atomically increments the dispatched-requests counter.
func (m *Metrics) IncrementTotal() { atomic.AddUint64(&m.TotalRequests, 1) }

// IncrementSucceeded atomically increments the success counter.
func (m *Metrics) IncrementSucceeded() { atomic.AddUint64(&m.Succeeded, 1) }

// IncrementFailed atomically increments the failure counter.
func (m *Metrics) IncrementFailed() { atomic.AddUint64(&m.Failed, 1) }

// AddRetried atomically adds n re-executions.
func (m *Metrics) AddRetried(n int) {
	if n > 0 {
		atomic.AddUint64(&m.Retried, uint64(n))
	}
}

// IncrementH3Fallbacks atomically increments the H3-fallback counter.
func (m *Metrics) IncrementH3Fallbacks() { atomic.AddUint64(&m.H3Fallbacks, 1) }

// RequestsPerSecond returns the average dispatch rate since creation, or 0
// within the first measurable instant.
func (m *Metrics) RequestsPerSecond() float64 {
	elapsed := time.Since(m.startTime).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(atomic.LoadUint64(&m.TotalRequests)) / elapsed
}

// Snapshot returns a point-in-time copy of the counters.  The loads are not
// performed under a single lock, so the values may be inconsistent at
// nanosecond granularity, which is acceptable for monitoring.
func (m *Metrics) Snapshot() (total, succeeded, failed, retried, h3Fallbacks uint64) {
	return atomic.LoadUint64(&m.TotalRequests),
		atomic.LoadUint64(&m.Succeeded),
		atomic.LoadUint64(&m.Failed),
		atomic.LoadUint64(&m.Retried),
		atomic.LoadUint64(&m.H3Fallbacks)
}
