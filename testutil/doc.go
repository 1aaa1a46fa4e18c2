// Package testutil provides testing utilities for dataload.
//
// This package is intended for use in tests and benchmarks only.
// It provides helpers for generating random tensors and samples, plus
// dataset wrappers that inject latency or failures into fetches.
//
// # Random Sample Generation
//
//	rng := testutil.NewRNG(seed)
//	samples := rng.TensorSamples(100, 4, 4) // 100 random [4 4] tensors
//	ds := testutil.IndexDataset(100)        // sample i has scalar value i
//
// # Fault and Latency Injection
//
//	slow := &testutil.SlowDataset{Inner: ds, Delay: func(i int) time.Duration {
//	    return time.Duration(ds.Len()-i) * time.Millisecond
//	}}
//	bad := &testutil.FailingDataset{Inner: ds, FailAt: 7}
package testutil
