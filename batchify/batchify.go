// Package batchify turns an ordered list of samples into one batch.
//
// Collation is a structural recursion over the sample variant: tensor
// leaves are stacked along a new leading dimension, tuples are
// transposed and collated field by field, and scalar leaves are
// converted to a 1-D tensor. The allocation policy for leaf tensors is
// pluggable so multi-worker mode can stack directly into shared-memory
// segments instead of the worker's private heap.
package batchify

import (
	"errors"
	"fmt"

	"github.com/hupe1980/dataload/sample"
	"github.com/hupe1980/dataload/tensor"
)

// ErrEmptyBatch is returned when collating zero samples.
var ErrEmptyBatch = errors.New("batchify: empty sample list")

// Allocator allocates batch leaf tensors. shm.Allocator implements it
// for shared-memory-backed batches.
type Allocator interface {
	Alloc(dtype tensor.Dtype, shape ...int) (*tensor.Tensor, error)
}

type heapAllocator struct{}

func (heapAllocator) Alloc(dtype tensor.Dtype, shape ...int) (*tensor.Tensor, error) {
	return tensor.New(dtype, shape...)
}

// HeapAllocator returns the allocator placing batch tensors in
// ordinary host memory.
func HeapAllocator() Allocator { return heapAllocator{} }

// Fn collates an ordered list of samples into one batch of matching
// nested shape. Implementations must not retain the input slice.
type Fn func(samples []sample.Sample) (sample.Sample, error)

// Default returns the collate function for single-process mode,
// allocating on the host heap.
func Default() Fn {
	return WithAllocator(heapAllocator{})
}

// WithAllocator returns a collate function whose leaf tensors come
// from alloc.
func WithAllocator(alloc Allocator) Fn {
	return func(samples []sample.Sample) (sample.Sample, error) {
		return collate(samples, alloc)
	}
}

func collate(samples []sample.Sample, alloc Allocator) (sample.Sample, error) {
	if len(samples) == 0 {
		return sample.Sample{}, ErrEmptyBatch
	}

	switch first := samples[0]; first.Kind() {
	case sample.KindTensor:
		return stackTensors(samples, alloc)
	case sample.KindScalar:
		return stackScalars(samples, alloc)
	case sample.KindTuple:
		return collateTuple(samples, alloc)
	default:
		return sample.Sample{}, fmt.Errorf("batchify: cannot collate %s sample", first.Kind())
	}
}

// stackTensors stacks n equally-shaped tensors into one tensor of
// shape [n]+shape by striding over the output buffer.
func stackTensors(samples []sample.Sample, alloc Allocator) (sample.Sample, error) {
	head, err := samples[0].Tensor()
	if err != nil {
		return sample.Sample{}, err
	}

	outShape := append([]int{len(samples)}, head.Shape()...)
	out, err := alloc.Alloc(head.Dtype(), outShape...)
	if err != nil {
		return sample.Sample{}, err
	}

	stride := head.Numel() * head.Dtype().Size()
	dst := out.Bytes()
	for i, s := range samples {
		t, err := s.Tensor()
		if err != nil {
			return sample.Sample{}, fmt.Errorf("batchify: sample %d: %w", i, err)
		}
		if t.Dtype() != head.Dtype() {
			return sample.Sample{}, fmt.Errorf("batchify: sample %d dtype %s differs from %s", i, t.Dtype(), head.Dtype())
		}
		if !tensor.SameShape(t, head) {
			return sample.Sample{}, fmt.Errorf("batchify: sample %d shape %v differs from %v", i, t.Shape(), head.Shape())
		}
		copy(dst[i*stride:(i+1)*stride], t.Bytes())
	}

	return sample.FromTensor(out), nil
}

// stackScalars converts n scalar leaves to one 1-D float64 tensor.
func stackScalars(samples []sample.Sample, alloc Allocator) (sample.Sample, error) {
	out, err := alloc.Alloc(tensor.Float64, len(samples))
	if err != nil {
		return sample.Sample{}, err
	}

	vals := out.Float64s()
	for i, s := range samples {
		v, err := s.Scalar()
		if err != nil {
			return sample.Sample{}, fmt.Errorf("batchify: sample %d: %w", i, err)
		}
		vals[i] = v
	}

	return sample.FromTensor(out), nil
}

// collateTuple transposes the list of tuples into a tuple of lists and
// collates each field independently, preserving field order and arity.
func collateTuple(samples []sample.Sample, alloc Allocator) (sample.Sample, error) {
	arity := samples[0].Len()

	column := make([]sample.Sample, len(samples))
	fields := make([]sample.Sample, arity)

	for j := 0; j < arity; j++ {
		for i, s := range samples {
			fs, err := s.Fields()
			if err != nil {
				return sample.Sample{}, fmt.Errorf("batchify: sample %d: %w", i, err)
			}
			if len(fs) != arity {
				return sample.Sample{}, fmt.Errorf("batchify: sample %d arity %d differs from %d", i, len(fs), arity)
			}
			column[i] = fs[j]
		}
		f, err := collate(column, alloc)
		if err != nil {
			return sample.Sample{}, fmt.Errorf("batchify: field %d: %w", j, err)
		}
		fields[j] = f
	}

	return sample.Tuple(fields...), nil
}
