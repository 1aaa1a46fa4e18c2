package testutil

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/hupe1980/dataload/dataset"
	"github.com/hupe1980/dataload/sample"
	"github.com/hupe1980/dataload/tensor"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float32 returns, as a float32, a pseudo-random number in [0.0,1.0).
func (r *RNG) Float32() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float32()
}

// FillUniform fills dst with random values in range [0, 1).
// Locks only once per call (preferred over calling Float32 in a loop).
func (r *RNG) FillUniform(dst []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = r.rand.Float32()
	}
}

// FloatTensor generates a random Float32 tensor of the given shape.
func (r *RNG) FloatTensor(shape ...int) *tensor.Tensor {
	n, err := tensor.Numel(shape)
	if err != nil {
		panic(err)
	}
	data := make([]float32, n)
	r.FillUniform(data)
	t, err := tensor.FromFloat32s(data, shape...)
	if err != nil {
		panic(err)
	}
	return t
}

// TensorSamples generates num random tensor samples of the given shape.
func (r *RNG) TensorSamples(num int, shape ...int) []sample.Sample {
	out := make([]sample.Sample, num)
	for i := range out {
		out[i] = sample.FromTensor(r.FloatTensor(shape...))
	}
	return out
}

// TupleSamples generates num (feature, label) samples: a random tensor
// of the given shape paired with a scalar label equal to the sample
// index. The index-valued label lets tests verify batch order.
func (r *RNG) TupleSamples(num int, shape ...int) []sample.Sample {
	out := make([]sample.Sample, num)
	for i := range out {
		out[i] = sample.Tuple(
			sample.FromTensor(r.FloatTensor(shape...)),
			sample.FromScalar(float64(i)),
		)
	}
	return out
}

// IndexSamples generates num scalar samples where sample i has value i.
// The self-describing values make batch contents trivially checkable.
func IndexSamples(num int) []sample.Sample {
	out := make([]sample.Sample, num)
	for i := range out {
		out[i] = sample.FromScalar(float64(i))
	}
	return out
}

// IndexDataset returns a dataset of num scalar samples where sample i
// has value i.
func IndexDataset(num int) *dataset.Slice {
	return dataset.NewSlice(IndexSamples(num))
}

// SlowDataset wraps a dataset with a per-index fetch delay. Use it to
// force out-of-order completion across workers.
type SlowDataset struct {
	Inner dataset.Dataset
	// Delay returns the fetch latency for one index.
	Delay func(index int) time.Duration
}

// Len implements dataset.Dataset.
func (d *SlowDataset) Len() int { return d.Inner.Len() }

// Get implements dataset.Dataset.
func (d *SlowDataset) Get(ctx context.Context, index int) (sample.Sample, error) {
	if d.Delay != nil {
		select {
		case <-time.After(d.Delay(index)):
		case <-ctx.Done():
			return sample.Sample{}, ctx.Err()
		}
	}
	return d.Inner.Get(ctx, index)
}

// FailingDataset wraps a dataset and fails every Get of one index.
type FailingDataset struct {
	Inner  dataset.Dataset
	FailAt int
}

// Len implements dataset.Dataset.
func (d *FailingDataset) Len() int { return d.Inner.Len() }

// Get implements dataset.Dataset.
func (d *FailingDataset) Get(ctx context.Context, index int) (sample.Sample, error) {
	if index == d.FailAt {
		return sample.Sample{}, fmt.Errorf("injected failure at index %d", index)
	}
	return d.Inner.Get(ctx, index)
}

// ScalarValues extracts the scalar leaves of a 1-D Float64 batch built
// by stacking scalar samples.
func ScalarValues(batch sample.Sample) ([]float64, error) {
	t, err := batch.Tensor()
	if err != nil {
		return nil, err
	}
	return append([]float64(nil), t.Float64s()...), nil
}
