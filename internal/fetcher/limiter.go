package fetcher

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// defaultConcurrencyLimit is the maximum number of requests in flight at the same time.
const defaultConcurrencyLimit = 100

// Limiter is a permit pool that caps the number of requests in flight.
//
// Waiters are served in FIFO order, so a waiting request always gets a permit once the others release theirs. When a
// rate is set, the permit holder also waits for the rate limiter before it is allowed to dispatch.
type Limiter struct {
	capacity int64
	permits  *semaphore.Weighted
	pacer    *rate.Limiter

	inUse atomic.Int64
	peak  atomic.Int64
}

// Acquire blocks until a permit is available. It fails only if the context is canceled while waiting.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.permits.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("could not acquire permit: %w", err)
	}

	n := l.inUse.Add(1)

	for {
		peak := l.peak.Load()
		if n <= peak || l.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	if l.pacer == nil {
		return nil
	}

	if err := l.pacer.Wait(ctx); err != nil {
		l.Release()

		return fmt.Errorf("could not wait for dispatch rate: %w", err)
	}

	return nil
}

// Release returns a permit to the pool.
func (l *Limiter) Release() {
	l.inUse.Add(-1)
	l.permits.Release(1)
}

// Capacity returns the number of permits.
func (l *Limiter) Capacity() int {
	return int(l.capacity)
}

// InUse returns the number of permits currently held.
func (l *Limiter) InUse() int {
	return int(l.inUse.Load())
}

// Peak returns the highest number of permits held at the same time.
func (l *Limiter) Peak() int {
	return int(l.peak.Load())
}

// NewLimiter creates a new Limiter with a number of permits. If perSecond is greater than 0, the dispatches are paced
// at that rate, otherwise they are not paced.
func NewLimiter(capacity int, perSecond float64) *Limiter {
	l := &Limiter{
		capacity: int64(capacity),
		permits:  semaphore.NewWeighted(int64(capacity)),
	}

	if perSecond > 0 {
		l.pacer = rate.NewLimiter(rate.Limit(perSecond), 1)
	}

	return l
}
