package dataload

import (
	"context"

	"github.com/hupe1980/dataload/batchify"
	"github.com/hupe1980/dataload/dataset"
	"github.com/hupe1980/dataload/sampler"
)

// Loader draws mini-batches from a dataset. It owns the batching plan
// (sampler, batch size, last-batch policy) and the loading strategy
// (synchronous or a pool of parallel workers); each call to Iter starts
// one pass over the plan.
//
// A Loader is cheap and stateless apart from a rollover batch sampler,
// which carries its leftover indices from one pass into the next.
type Loader struct {
	dataset      dataset.Dataset
	batchSampler sampler.BatchSampler
	opts         options
}

// New creates a Loader over the dataset.
//
// The batching configuration is validated eagerly: a missing batch size
// without a batch sampler, shuffle combined with an explicit sampler,
// or a batch sampler combined with any of batch size, shuffle, sampler
// or last-batch policy all fail here rather than at iteration time.
func New(ds dataset.Dataset, optFns ...Option) (*Loader, error) {
	if ds == nil {
		return nil, ErrNilDataset
	}

	opts := applyOptions(optFns)

	if opts.numWorkers < 0 {
		return nil, ErrInvalidNumWorkers
	}

	var bs sampler.BatchSampler
	switch {
	case opts.batchSampler != nil:
		if opts.batchSize != 0 || opts.shuffle || opts.sampler != nil || opts.lastBatchSet {
			return nil, ErrBatchSamplerConflict
		}
		bs = opts.batchSampler

	default:
		if opts.batchSize <= 0 {
			return nil, ErrBatchSizeRequired
		}
		if opts.shuffle && opts.sampler != nil {
			return nil, ErrShuffleWithSampler
		}

		s := opts.sampler
		if s == nil {
			if opts.shuffle {
				if opts.seedSet {
					s = sampler.NewRandom(ds.Len(), sampler.WithSeed(opts.seed))
				} else {
					s = sampler.NewRandom(ds.Len())
				}
			} else {
				s = sampler.NewSequential(ds.Len())
			}
		}

		var err error
		bs, err = sampler.NewBatch(s, opts.batchSize, opts.lastBatch)
		if err != nil {
			return nil, err
		}
	}

	return &Loader{
		dataset:      ds,
		batchSampler: bs,
		opts:         opts,
	}, nil
}

// Len returns the number of batches the next pass will yield. With a
// rollover policy this accounts for the leftover carried from the
// previous pass.
func (l *Loader) Len() int { return l.batchSampler.Len() }

// NumWorkers returns the configured worker count.
func (l *Loader) NumWorkers() int { return l.opts.numWorkers }

// collateFn resolves the collate function for one pass. A custom
// function always wins; otherwise parallel shared-memory passes stack
// into shared segments and everything else stacks on the heap.
func (l *Loader) collateFn(alloc batchify.Allocator) batchify.Fn {
	if l.opts.batchifyFn != nil {
		return l.opts.batchifyFn
	}
	if alloc != nil {
		return batchify.WithAllocator(alloc)
	}
	return batchify.Default()
}

// Iter starts one pass and returns its iterator. The context bounds
// every blocking operation of the pass; canceling it abandons the pass
// and tears the workers down.
//
// The caller must call Close on the returned iterator, even after a
// complete pass, to release shared segments.
func (l *Loader) Iter(ctx context.Context) *Iterator {
	return newIterator(ctx, l)
}
