package resource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilController(t *testing.T) {
	var c *Controller

	require.NoError(t, c.AcquireSharedMemory(context.Background(), 1<<20))
	assert.True(t, c.TryAcquireSharedMemory(1<<20))
	c.ReleaseSharedMemory(1 << 20)
	assert.Equal(t, int64(0), c.SharedMemoryUsage())
	require.NoError(t, c.WaitDispatch(context.Background()))
}

func TestSharedMemoryTracking(t *testing.T) {
	c := NewController(Config{})

	require.NoError(t, c.AcquireSharedMemory(context.Background(), 100))
	assert.Equal(t, int64(100), c.SharedMemoryUsage())

	c.ReleaseSharedMemory(60)
	assert.Equal(t, int64(40), c.SharedMemoryUsage())

	c.ReleaseSharedMemory(40)
	assert.Equal(t, int64(0), c.SharedMemoryUsage())
}

func TestSharedMemoryLimit(t *testing.T) {
	c := NewController(Config{SharedMemoryLimitBytes: 100})

	assert.True(t, c.TryAcquireSharedMemory(80))
	assert.False(t, c.TryAcquireSharedMemory(30), "limit would be exceeded")
	assert.True(t, c.TryAcquireSharedMemory(20))

	t.Run("blocks until released", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		require.ErrorIs(t, c.AcquireSharedMemory(ctx, 1), context.DeadlineExceeded)

		c.ReleaseSharedMemory(100)
		require.NoError(t, c.AcquireSharedMemory(context.Background(), 1))
		c.ReleaseSharedMemory(1)
	})
}

func TestDispatchRate(t *testing.T) {
	t.Run("unlimited by default", func(t *testing.T) {
		c := NewController(Config{})
		for i := 0; i < 1000; i++ {
			require.NoError(t, c.WaitDispatch(context.Background()))
		}
	})

	t.Run("throttles", func(t *testing.T) {
		c := NewController(Config{DispatchJobsPerSec: 100})

		start := time.Now()
		for i := 0; i < 5; i++ {
			require.NoError(t, c.WaitDispatch(context.Background()))
		}
		// 5 permits at 100/s with burst 1 needs roughly 40ms.
		assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	})

	t.Run("honors context", func(t *testing.T) {
		c := NewController(Config{DispatchJobsPerSec: 0.001})
		require.NoError(t, c.WaitDispatch(context.Background()), "first permit from burst")

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		require.Error(t, c.WaitDispatch(ctx))
	})
}
