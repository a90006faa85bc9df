// Package concurrency provides a semaphore-based limiter used to bound
// parallel loop iterations.
package concurrency

import (
	"context"
	"sync/atomic"
	"time"
)

// Metrics tracks limiter usage.
type Metrics struct {
	TotalAcquired   int64
	TotalReleased   int64
	PeakConcurrent  int64
	TotalWaitTimeNs int64
}

// Limiter bounds the number of concurrently running operations.
type Limiter struct {
	sem     chan struct{}
	active  int64
	metrics Metrics
}

// NewLimiter creates a limiter allowing at most maxConcurrent operations at
// once. Values below 1 are clamped to 1.
func NewLimiter(maxConcurrent int) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Limiter{sem: make(chan struct{}, maxConcurrent)}
}

// Acquire blocks until a slot is available or the context is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	start := time.Now()
	select {
	case l.sem <- struct{}{}:
		atomic.AddInt64(&l.metrics.TotalWaitTimeNs, time.Since(start).Nanoseconds())
		atomic.AddInt64(&l.metrics.TotalAcquired, 1)
		l.updatePeak(atomic.AddInt64(&l.active, 1))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a slot to the limiter.
func (l *Limiter) Release() {
	select {
	case <-l.sem:
		atomic.AddInt64(&l.active, -1)
		atomic.AddInt64(&l.metrics.TotalReleased, 1)
	default:
		// Release without a matching Acquire; nothing to do.
	}
}

// CurrentActive returns the number of held slots.
func (l *Limiter) CurrentActive() int64 {
	return atomic.LoadInt64(&l.active)
}

// Snapshot returns a copy of the current metrics.
func (l *Limiter) Snapshot() Metrics {
	return Metrics{
		TotalAcquired:   atomic.LoadInt64(&l.metrics.TotalAcquired),
		TotalReleased:   atomic.LoadInt64(&l.metrics.TotalReleased),
		PeakConcurrent:  atomic.LoadInt64(&l.metrics.PeakConcurrent),
		TotalWaitTimeNs: atomic.LoadInt64(&l.metrics.TotalWaitTimeNs),
	}
}

func (l *Limiter) updatePeak(current int64) {
	for {
		peak := atomic.LoadInt64(&l.metrics.PeakConcurrent)
		if current <= peak {
			return
		}
		if atomic.CompareAndSwapInt64(&l.metrics.PeakConcurrent, peak, current) {
			return
		}
	}
}
