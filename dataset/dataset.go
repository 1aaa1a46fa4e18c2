// Package dataset defines the indexable source a loader reads from,
// plus in-memory and blob-backed implementations.
//
// Datasets are read-only and must be safe for concurrent Get calls
// from independent workers.
package dataset

import (
	"context"
	"fmt"

	"github.com/hupe1980/dataload/sample"
	"github.com/hupe1980/dataload/tensor"
)

// Dataset is an indexable collection of samples.
type Dataset interface {
	// Len returns the number of samples.
	Len() int
	// Get returns the sample at index. It may block on I/O or
	// computation; ctx bounds that work.
	Get(ctx context.Context, index int) (sample.Sample, error)
}

// Slice is a Dataset over an in-memory slice of samples.
type Slice struct {
	samples []sample.Sample
}

// NewSlice wraps samples without copying.
func NewSlice(samples []sample.Sample) *Slice {
	return &Slice{samples: samples}
}

// Len implements Dataset.
func (s *Slice) Len() int { return len(s.samples) }

// Get implements Dataset.
func (s *Slice) Get(_ context.Context, index int) (sample.Sample, error) {
	if index < 0 || index >= len(s.samples) {
		return sample.Sample{}, fmt.Errorf("dataset: index %d out of range [0,%d)", index, len(s.samples))
	}
	return s.samples[index], nil
}

// Tensors is a Dataset over one or more equally-long tensors: sample i
// is the tuple of row i of each tensor (or the bare row for a single
// tensor). Rows are zero-copy views into the backing tensors.
type Tensors struct {
	fields []*tensor.Tensor
	length int
}

// NewTensors creates a tensor-backed dataset. Every tensor must have
// at least one dimension and the same leading dimension.
func NewTensors(fields ...*tensor.Tensor) (*Tensors, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("dataset: at least one tensor required")
	}

	length := -1
	for i, t := range fields {
		shape := t.Shape()
		if len(shape) == 0 {
			return nil, fmt.Errorf("dataset: tensor %d has no leading dimension", i)
		}
		if length == -1 {
			length = shape[0]
		} else if shape[0] != length {
			return nil, fmt.Errorf("dataset: tensor %d leading dimension %d differs from %d", i, shape[0], length)
		}
	}

	return &Tensors{fields: fields, length: length}, nil
}

// Len implements Dataset.
func (d *Tensors) Len() int { return d.length }

// Get implements Dataset.
func (d *Tensors) Get(_ context.Context, index int) (sample.Sample, error) {
	if index < 0 || index >= d.length {
		return sample.Sample{}, fmt.Errorf("dataset: index %d out of range [0,%d)", index, d.length)
	}

	rows := make([]sample.Sample, len(d.fields))
	for i, t := range d.fields {
		row, err := rowView(t, index)
		if err != nil {
			return sample.Sample{}, err
		}
		rows[i] = sample.FromTensor(row)
	}

	if len(rows) == 1 {
		return rows[0], nil
	}
	return sample.Tuple(rows...), nil
}

// rowView returns row i of t as a zero-copy view of shape shape[1:].
func rowView(t *tensor.Tensor, i int) (*tensor.Tensor, error) {
	shape := t.Shape()
	rowShape := shape[1:]
	n, err := tensor.Numel(rowShape)
	if err != nil {
		return nil, err
	}
	stride := n * t.Dtype().Size()
	return tensor.FromBytes(t.Dtype(), rowShape, t.Bytes()[i*stride:(i+1)*stride])
}
