package concurrency

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterBoundsConcurrency(t *testing.T) {
	limiter := NewLimiter(2)
	var active, peak int64
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		require.NoError(t, limiter.Acquire(context.Background()))
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer limiter.Release()
			cur := atomic.AddInt64(&active, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if cur <= p || atomic.CompareAndSwapInt64(&peak, p, cur) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt64(&active, -1)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(2))
	assert.Equal(t, int64(0), limiter.CurrentActive())
	m := limiter.Snapshot()
	assert.Equal(t, int64(10), m.TotalAcquired)
	assert.Equal(t, int64(10), m.TotalReleased)
}

func TestLimiterAcquireHonorsContext(t *testing.T) {
	limiter := NewLimiter(1)
	require.NoError(t, limiter.Acquire(context.Background()))
	defer limiter.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := limiter.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLimiterClampsZero(t *testing.T) {
	limiter := NewLimiter(0)
	require.NoError(t, limiter.Acquire(context.Background()))
	limiter.Release()
}
