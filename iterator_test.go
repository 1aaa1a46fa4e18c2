package dataload

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/dataload/sample"
)

// gatedDataset blocks the fetch of one index until the gate opens,
// ignoring ctx, so a worker can be pinned mid-fetch.
type gatedDataset struct {
	n       int
	gateAt  int
	gate    chan struct{}
	entered chan struct{}
	once    sync.Once
}

func (d *gatedDataset) Len() int { return d.n }

func (d *gatedDataset) Get(_ context.Context, index int) (sample.Sample, error) {
	if index == d.gateAt {
		d.once.Do(func() { close(d.entered) })
		<-d.gate
	}
	return sample.FromScalar(float64(index)), nil
}

func TestFinishJoinsWorkersOnCanceledTeardown(t *testing.T) {
	ds := &gatedDataset{
		n:       4,
		gateAt:  2,
		gate:    make(chan struct{}),
		entered: make(chan struct{}),
	}

	loader, err := New(ds, WithBatchSize(2), WithNumWorkers(1))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	it := loader.Iter(ctx)
	defer it.Close() //nolint:errcheck

	require.True(t, it.Next(), "first batch arrives before the gate")

	// Pin the worker inside the fetch of index 2, then cancel so the
	// sentinel handoff in finish fails.
	select {
	case <-ds.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("worker never reached the gated index")
	}
	cancel()

	const hold = 60 * time.Millisecond
	go func() {
		time.Sleep(hold)
		close(ds.gate)
	}()

	start := time.Now()
	it.finish(true)
	assert.GreaterOrEqual(t, time.Since(start), hold-10*time.Millisecond,
		"finish must not return before the pinned worker is joined")

	done := make(chan error, 1)
	go func() { done <- it.pool.Wait() }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker pool still live after finish")
	}
}
