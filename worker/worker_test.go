package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/dataload/batchify"
	"github.com/hupe1980/dataload/testutil"
)

func TestRun(t *testing.T) {
	t.Run("processes jobs until sentinel", func(t *testing.T) {
		jobs := make(chan Job, 8)
		results := make(chan Result, 8)

		done := make(chan error, 1)
		go func() {
			done <- Run(context.Background(), Config{
				Dataset:   testutil.IndexDataset(10),
				Batchify:  batchify.Default(),
				Jobs:      jobs,
				Publisher: ChanPublisher(results),
			})
		}()

		jobs <- Job{Ticket: 0, Indices: []int{0, 1, 2}}
		jobs <- Job{Ticket: 1, Indices: []int{3, 4}}
		jobs <- Sentinel()

		res := <-results
		require.NoError(t, res.Err)
		assert.Equal(t, uint64(0), res.Ticket)

		vals, err := testutil.ScalarValues(res.Batch)
		require.NoError(t, err)
		assert.Equal(t, []float64{0, 1, 2}, vals)

		res = <-results
		require.NoError(t, res.Err)
		assert.Equal(t, uint64(1), res.Ticket)

		require.NoError(t, <-done, "sentinel exit must be clean")
	})

	t.Run("fetch failure is tagged, worker survives", func(t *testing.T) {
		jobs := make(chan Job, 8)
		results := make(chan Result, 8)

		done := make(chan error, 1)
		go func() {
			done <- Run(context.Background(), Config{
				Dataset:   &testutil.FailingDataset{Inner: testutil.IndexDataset(10), FailAt: 4},
				Batchify:  batchify.Default(),
				Jobs:      jobs,
				Publisher: ChanPublisher(results),
			})
		}()

		jobs <- Job{Ticket: 0, Indices: []int{3, 4, 5}}
		jobs <- Job{Ticket: 1, Indices: []int{0, 1}}
		jobs <- Sentinel()

		res := <-results
		assert.Equal(t, uint64(0), res.Ticket)
		require.Error(t, res.Err)

		res = <-results
		assert.Equal(t, uint64(1), res.Ticket)
		require.NoError(t, res.Err, "worker keeps processing after a failed job")

		require.NoError(t, <-done)
	})

	t.Run("context cancel unblocks idle worker", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		jobs := make(chan Job)

		done := make(chan error, 1)
		go func() {
			done <- Run(ctx, Config{
				Dataset:   testutil.IndexDataset(10),
				Batchify:  batchify.Default(),
				Jobs:      jobs,
				Publisher: ChanPublisher(make(chan Result)),
			})
		}()

		cancel()
		select {
		case err := <-done:
			require.ErrorIs(t, err, context.Canceled)
		case <-time.After(time.Second):
			t.Fatal("worker did not exit on cancel")
		}
	})
}

func TestSentinel(t *testing.T) {
	assert.True(t, Sentinel().IsSentinel())
	assert.False(t, Job{Ticket: 1}.IsSentinel())
}

func TestPool(t *testing.T) {
	t.Run("drains all jobs across workers", func(t *testing.T) {
		jobs := make(chan Job, QueueCapacity)
		results := make(chan Result, QueueCapacity)

		pool := StartPool(context.Background(), 4, Config{
			Dataset:   testutil.IndexDataset(100),
			Batchify:  batchify.Default(),
			Jobs:      jobs,
			Publisher: ChanPublisher(results),
		}, jobs)
		assert.Equal(t, 4, pool.Size())

		const n = 25
		for i := 0; i < n; i++ {
			jobs <- Job{Ticket: uint64(i), Indices: []int{i, i + 1}}
		}

		seen := make(map[uint64]bool, n)
		for i := 0; i < n; i++ {
			res := <-results
			require.NoError(t, res.Err)
			seen[res.Ticket] = true
		}
		assert.Len(t, seen, n, "every ticket published exactly once")

		require.NoError(t, pool.Stop(context.Background()))
		require.NoError(t, pool.Wait())
	})

	t.Run("stop honors context", func(t *testing.T) {
		jobs := make(chan Job) // unbuffered, nobody reading
		pool := &Pool{n: 1, jobs: jobs}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		require.ErrorIs(t, pool.Stop(ctx), context.Canceled)
	})
}
