// Package dataload provides a parallel mini-batch data loader for Go.
//
// Dataload draws fixed-size batches from an indexable dataset, overlapping
// sample fetch and collation across a pool of workers while the consumer
// sees batches in exact sampler order.
//
// # Quick Start
//
// Synchronous loading:
//
//	ctx := context.Background()
//	ds, _ := dataset.NewTensors(features, labels)
//	loader, _ := dataload.New(ds, dataload.WithBatchSize(32), dataload.WithShuffle(true))
//
//	it := loader.Iter(ctx)
//	defer it.Close()
//	for it.Next() {
//	    batch := it.Batch()
//	    // ...
//	}
//	if err := it.Err(); err != nil {
//	    log.Fatal(err)
//	}
//
// Parallel loading with shared-memory batches:
//
//	loader, _ := dataload.New(ds,
//	    dataload.WithBatchSize(128),
//	    dataload.WithNumWorkers(4),
//	    dataload.WithSharedMemory(true),
//	)
//
// # Batching Plan
//
// The plan is either assembled from parts or supplied whole:
//
//	// From parts: batch size + optional shuffle/sampler + last-batch policy.
//	dataload.New(ds,
//	    dataload.WithBatchSize(64),
//	    dataload.WithLastBatch(sampler.LastBatchRollover),
//	)
//
//	// Whole: a complete batch sampler subsumes all of the above.
//	bs, _ := sampler.NewBatch(sampler.NewRandom(ds.Len()), 64, sampler.LastBatchDiscard)
//	dataload.New(ds, dataload.WithBatchSampler(bs))
//
// Conflicting combinations (batch sampler plus batch size, shuffle plus
// explicit sampler, missing batch size) fail at construction.
//
// # Ordering and Errors
//
// Workers complete batches out of order; the iterator reorders them so
// batch k is always the k-th index batch of the sampler. A fetch or
// collate failure inside a worker surfaces as a *WorkerError on the
// dequeue of the failed batch and ends the pass.
//
// # Key Features
//
//   - Deterministic batch order independent of worker count
//   - keep/discard/rollover last-batch policies, rollover carrying
//     leftovers across passes
//   - Zero-copy shared-memory batch transport with handle substitution
//   - Recursive collation over tensors, scalars and tuples
//   - Blob-backed datasets (memory, local disk, S3, MinIO)
//   - Optional resource limits (shared-memory budget, dispatch rate)
package dataload
