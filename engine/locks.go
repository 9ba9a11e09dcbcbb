package engine

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// LOCK TABLE - Bounded-wait exclusive sections keyed by payer id
// =============================================================================

// DefaultLockWait bounds how long an allocation waits for a payer's
// critical section before failing with ErrLockTimeout.
const DefaultLockWait = 3 * time.Second

// LockTable hands out one exclusive section per payer id. Sections for
// different payers are independent; two submissions for different payers
// never block each other. Store implementations share this so the
// submission boundary and the risk workflow serialize on the same lock.
type LockTable struct {
	mu    sync.Mutex
	locks map[PayerID]chan struct{}
	wait  time.Duration
}

func NewLockTable(wait time.Duration) *LockTable {
	if wait <= 0 {
		wait = DefaultLockWait
	}
	return &LockTable{
		locks: make(map[PayerID]chan struct{}),
		wait:  wait,
	}
}

// Acquire takes the payer's exclusive section, waiting up to the table's
// bound. Returns the release func on success, ErrLockTimeout when the wait
// expires, or the context error if ctx is done first.
func (lt *LockTable) Acquire(ctx context.Context, id PayerID) (release func(), err error) {
	sem := lt.semFor(id)

	timer := time.NewTimer(lt.wait)
	defer timer.Stop()

	select {
	case sem <- struct{}{}:
		return func() { <-sem }, nil
	case <-timer.C:
		return nil, ErrLockTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (lt *LockTable) semFor(id PayerID) chan struct{} {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	sem, ok := lt.locks[id]
	if !ok {
		sem = make(chan struct{}, 1)
		lt.locks[id] = sem
	}
	return sem
}
