// Package resource bounds what a loader pass may hold in flight.
package resource

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits for one loader.
type Config struct {
	// SharedMemoryLimitBytes is the hard limit for live shared-segment
	// bytes across a pass. If 0, no hard limit is enforced (only
	// tracking).
	SharedMemoryLimitBytes int64

	// DispatchJobsPerSec throttles how fast the dispatcher enqueues
	// jobs. If 0, unlimited.
	DispatchJobsPerSec float64
}

// Controller manages loader-wide resources (shared memory, dispatch
// rate). A nil *Controller is valid and enforces nothing.
type Controller struct {
	cfg Config

	shmSem  *semaphore.Weighted // nil if unlimited
	shmUsed atomic.Int64

	dispatchLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	c := &Controller{cfg: cfg}

	if cfg.SharedMemoryLimitBytes > 0 {
		c.shmSem = semaphore.NewWeighted(cfg.SharedMemoryLimitBytes)
	}

	if cfg.DispatchJobsPerSec > 0 {
		c.dispatchLimiter = rate.NewLimiter(rate.Limit(cfg.DispatchJobsPerSec), 1)
	}

	return c
}

// AcquireSharedMemory reserves bytes of shared-segment budget. If a
// hard limit is configured and usage would exceed it, this blocks
// until segments are released or ctx is canceled.
func (c *Controller) AcquireSharedMemory(ctx context.Context, bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}

	if c.shmSem != nil {
		if err := c.shmSem.Acquire(ctx, bytes); err != nil {
			return err
		}
	}

	c.shmUsed.Add(bytes)
	return nil
}

// TryAcquireSharedMemory reserves bytes without blocking. Returns
// false if the limit would be exceeded.
func (c *Controller) TryAcquireSharedMemory(bytes int64) bool {
	if c == nil || bytes <= 0 {
		return true
	}

	if c.shmSem != nil {
		if !c.shmSem.TryAcquire(bytes) {
			return false
		}
	}

	c.shmUsed.Add(bytes)
	return true
}

// ReleaseSharedMemory returns reserved bytes to the budget.
func (c *Controller) ReleaseSharedMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}

	if c.shmSem != nil {
		c.shmSem.Release(bytes)
	}
	c.shmUsed.Add(-bytes)
}

// SharedMemoryUsage returns the currently reserved bytes.
func (c *Controller) SharedMemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.shmUsed.Load()
}

// WaitDispatch blocks until the dispatch rate limit admits one more
// job, or ctx is canceled.
func (c *Controller) WaitDispatch(ctx context.Context) error {
	if c == nil || c.dispatchLimiter == nil {
		return nil
	}
	return c.dispatchLimiter.Wait(ctx)
}
