// Package sampler produces the index sequences a loader pass fetches.
//
// A Sampler yields dataset indices; a BatchSampler groups them into
// the finite ordered sequence of index batches the dispatcher tickets.
package sampler

import (
	"fmt"
	"math/rand"

	"github.com/RoaringBitmap/roaring/v2"
)

// Sampler yields a finite ordered sequence of dataset indices.
// Indices may return a different order on every call (e.g. a fresh
// random permutation per pass); Len is stable.
type Sampler interface {
	// Len returns the number of indices one pass yields.
	Len() int
	// Indices returns the index sequence for the next pass.
	Indices() []int
}

// Sequential yields 0..length-1 in natural order.
type Sequential struct {
	length int
}

// NewSequential creates a sequential sampler over [0, length).
func NewSequential(length int) *Sequential {
	return &Sequential{length: length}
}

// Len implements Sampler.
func (s *Sequential) Len() int { return s.length }

// Indices implements Sampler.
func (s *Sequential) Indices() []int {
	out := make([]int, s.length)
	for i := range out {
		out[i] = i
	}
	return out
}

// Random yields a fresh uniform permutation of [0, length) per pass.
type Random struct {
	length int
	rand   *rand.Rand
}

// RandomOption configures a Random sampler.
type RandomOption func(*Random)

// WithSeed makes the permutation sequence deterministic.
func WithSeed(seed int64) RandomOption {
	return func(r *Random) {
		r.rand = rand.New(rand.NewSource(seed))
	}
}

// NewRandom creates a shuffling sampler over [0, length).
func NewRandom(length int, optFns ...RandomOption) *Random {
	r := &Random{length: length}
	for _, fn := range optFns {
		if fn != nil {
			fn(r)
		}
	}
	return r
}

// Len implements Sampler.
func (r *Random) Len() int { return r.length }

// Indices implements Sampler.
func (r *Random) Indices() []int {
	if r.rand != nil {
		return r.rand.Perm(r.length)
	}
	return rand.Perm(r.length)
}

// Subset yields, in ascending order, only the indices present in a
// roaring bitmap. Useful for filtered views over a dataset without
// materializing a copy.
type Subset struct {
	indices []int
}

// NewSubset creates a subset sampler from the set bits of bm.
func NewSubset(bm *roaring.Bitmap) *Subset {
	arr := bm.ToArray()
	indices := make([]int, len(arr))
	for i, v := range arr {
		indices[i] = int(v)
	}
	return &Subset{indices: indices}
}

// Len implements Sampler.
func (s *Subset) Len() int { return len(s.indices) }

// Indices implements Sampler.
func (s *Subset) Indices() []int {
	return append([]int(nil), s.indices...)
}

// LastBatch selects how a trailing partial batch is handled.
type LastBatch uint8

const (
	// LastBatchKeep emits the trailing partial batch as-is.
	LastBatchKeep LastBatch = iota
	// LastBatchDiscard drops the trailing partial batch.
	LastBatchDiscard
	// LastBatchRollover carries the leftover indices into the first
	// batch of the next pass.
	LastBatchRollover
)

// String returns the policy name.
func (lb LastBatch) String() string {
	switch lb {
	case LastBatchKeep:
		return "keep"
	case LastBatchDiscard:
		return "discard"
	case LastBatchRollover:
		return "rollover"
	default:
		return "unknown"
	}
}

// BatchSampler is a finite ordered sequence of index batches.
type BatchSampler interface {
	// Len returns the number of index batches the next pass yields.
	Len() int
	// Batches returns the index batches for the next pass, in order.
	Batches() [][]int
}

// Batch groups a Sampler's indices into fixed-size batches under a
// last-batch policy. With LastBatchRollover it is stateful across
// passes: the leftover tail of pass k leads pass k+1.
type Batch struct {
	sampler Sampler
	size    int
	policy  LastBatch
	prev    []int
}

// NewBatch creates a batch sampler.
func NewBatch(s Sampler, size int, policy LastBatch) (*Batch, error) {
	if size <= 0 {
		return nil, fmt.Errorf("sampler: batch size must be positive, got %d", size)
	}
	return &Batch{sampler: s, size: size, policy: policy}, nil
}

// Len implements BatchSampler. For rollover the count includes the
// leftover carried from the previous pass.
func (b *Batch) Len() int {
	n := b.sampler.Len()
	switch b.policy {
	case LastBatchKeep:
		return (n + b.size - 1) / b.size
	case LastBatchDiscard:
		return n / b.size
	case LastBatchRollover:
		return (len(b.prev) + n) / b.size
	default:
		return 0
	}
}

// Batches implements BatchSampler.
func (b *Batch) Batches() [][]int {
	indices := b.sampler.Indices()
	if len(b.prev) > 0 {
		indices = append(append([]int(nil), b.prev...), indices...)
		b.prev = nil
	}

	var out [][]int
	for len(indices) >= b.size {
		out = append(out, indices[:b.size:b.size])
		indices = indices[b.size:]
	}

	if len(indices) > 0 {
		switch b.policy {
		case LastBatchKeep:
			out = append(out, indices)
		case LastBatchRollover:
			b.prev = append([]int(nil), indices...)
		case LastBatchDiscard:
			// dropped
		}
	}
	return out
}
