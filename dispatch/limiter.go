package dispatch

import (
	"context"
	"sync/atomic"

	"github.com/contractguard/contractguard/core"
	"golang.org/x/sync/semaphore"
)

// CallLimiter bounds how many invocations of one collaborator class may run
// at once, with a bounded FIFO queue of waiters behind the ceiling. Callers
// past the queue bound are rejected immediately with core.ErrOverloaded
// instead of waiting.
type CallLimiter struct {
	sem      *semaphore.Weighted
	maxQueue int64
	waiting  atomic.Int64
}

// NewCallLimiter creates a limiter allowing maxConcurrent simultaneous calls
// and up to maxQueue callers waiting for a slot.
func NewCallLimiter(maxConcurrent, maxQueue int) *CallLimiter {
	return &CallLimiter{
		sem:      semaphore.NewWeighted(int64(maxConcurrent)),
		maxQueue: int64(maxQueue),
	}
}

// Acquire blocks until a slot is free, the queue bound is hit or ctx is done.
// On success the caller must release the slot with Release.
func (l *CallLimiter) Acquire(ctx context.Context) error {
	if l.sem.TryAcquire(1) {
		return nil
	}
	if l.waiting.Add(1) > l.maxQueue {
		l.waiting.Add(-1)
		return core.ErrOverloaded
	}
	defer l.waiting.Add(-1)
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	return nil
}

// Release returns a slot to the pool.
func (l *CallLimiter) Release() { l.sem.Release(1) }

// Waiting reports how many callers are currently queued for a slot.
func (l *CallLimiter) Waiting() int { return int(l.waiting.Load()) }
