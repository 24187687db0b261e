package ledger

import (
	"context"
	"errors"
	"time"
)

// ErrLockTimeout is returned when the ledger lock cannot be acquired within
// the bounded wait. The operation must not proceed and must not retry.
var ErrLockTimeout = errors.New("ledger lock acquisition timed out")

// DefaultLockTimeout bounds how long a caller waits for the ledger lock.
const DefaultLockTimeout = 30 * time.Second

// Coordinator is the single mutual-exclusion boundary around every mutating
// ledger entry point. The record store has no cross-row transactions, so full
// serialization is the complete concurrency control: once acquired, an
// operation runs to completion with no other blocking point.
//
// The lock is non-reentrant; acquiring it twice from the same goroutine
// deadlocks until the timeout fires.
type Coordinator struct {
	sem     chan struct{}
	timeout time.Duration

	// WaitObserver, when set, receives the time spent waiting on each
	// successful acquisition. Set before the coordinator is shared.
	WaitObserver func(time.Duration)
}

// NewCoordinator creates a coordinator with the given acquisition timeout.
// A non-positive timeout falls back to DefaultLockTimeout.
func NewCoordinator(timeout time.Duration) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	sem := make(chan struct{}, 1)
	sem <- struct{}{}
	return &Coordinator{sem: sem, timeout: timeout}
}

// Acquire takes the lock, waiting at most the configured timeout. It returns
// ErrLockTimeout when the wait expires and the context's error when the
// caller gives up first.
func (c *Coordinator) Acquire(ctx context.Context) error {
	start := time.Now()
	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case <-c.sem:
		if c.WaitObserver != nil {
			c.WaitObserver(time.Since(start))
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrLockTimeout
	}
}

// Release returns the lock. Calling Release without holding the lock panics,
// which surfaces a serious caller bug instead of corrupting the ledger.
func (c *Coordinator) Release() {
	select {
	case c.sem <- struct{}{}:
	default:
		panic("ledger: Release without matching Acquire")
	}
}
