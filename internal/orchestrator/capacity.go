package orchestrator

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Capacity is the worktree pool boundary. Acquire blocks until a slot is
// free or ctx is done.
type Capacity interface {
	Acquire(ctx context.Context) error
	Release()
}

// LocalCapacity is a Capacity backed by a weighted semaphore.
type LocalCapacity struct {
	sem *semaphore.Weighted
}

// NewLocalCapacity creates a pool with n slots. n < 1 means one slot.
func NewLocalCapacity(n int) *LocalCapacity {
	if n < 1 {
		n = 1
	}
	return &LocalCapacity{sem: semaphore.NewWeighted(int64(n))}
}

// Acquire takes a slot.
func (c *LocalCapacity) Acquire(ctx context.Context) error {
	return c.sem.Acquire(ctx, 1)
}

// Release returns a slot.
func (c *LocalCapacity) Release() {
	c.sem.Release(1)
}
