// Package sample defines the tagged variant carried between datasets,
// collation and the loader.
//
// A Sample is a tensor, a scalar, or a tuple of nested samples. A Batch
// has the same structure with an added leading dimension at every
// tensor leaf; it is represented by the same type.
package sample

import (
	"fmt"

	"github.com/hupe1980/dataload/tensor"
)

// Kind discriminates the variant.
type Kind uint8

const (
	// KindInvalid is the zero Kind.
	KindInvalid Kind = iota
	// KindTensor marks a tensor leaf.
	KindTensor
	// KindScalar marks a scalar leaf.
	KindScalar
	// KindTuple marks a nested tuple.
	KindTuple
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindTensor:
		return "tensor"
	case KindScalar:
		return "scalar"
	case KindTuple:
		return "tuple"
	default:
		return "invalid"
	}
}

// Sample is one dataset element: a tensor, a scalar, or a tuple of
// samples. Batches share the representation.
type Sample struct {
	kind   Kind
	tensor *tensor.Tensor
	scalar float64
	fields []Sample
}

// FromTensor wraps a tensor leaf.
func FromTensor(t *tensor.Tensor) Sample {
	return Sample{kind: KindTensor, tensor: t}
}

// FromScalar wraps a scalar leaf.
func FromScalar(v float64) Sample {
	return Sample{kind: KindScalar, scalar: v}
}

// Tuple builds a tuple sample from the given fields, preserving order.
func Tuple(fields ...Sample) Sample {
	return Sample{kind: KindTuple, fields: fields}
}

// Kind returns the variant tag.
func (s Sample) Kind() Kind { return s.kind }

// Tensor returns the tensor leaf, or an error for other kinds.
func (s Sample) Tensor() (*tensor.Tensor, error) {
	if s.kind != KindTensor {
		return nil, fmt.Errorf("sample: kind is %s, not tensor", s.kind)
	}
	return s.tensor, nil
}

// MustTensor returns the tensor leaf, panicking for other kinds.
func (s Sample) MustTensor() *tensor.Tensor {
	t, err := s.Tensor()
	if err != nil {
		panic(err)
	}
	return t
}

// Scalar returns the scalar leaf, or an error for other kinds.
func (s Sample) Scalar() (float64, error) {
	if s.kind != KindScalar {
		return 0, fmt.Errorf("sample: kind is %s, not scalar", s.kind)
	}
	return s.scalar, nil
}

// Fields returns the tuple fields, or an error for other kinds. The
// returned slice must not be mutated.
func (s Sample) Fields() ([]Sample, error) {
	if s.kind != KindTuple {
		return nil, fmt.Errorf("sample: kind is %s, not tuple", s.kind)
	}
	return s.fields, nil
}

// Len returns the arity of a tuple and 0 for leaves.
func (s Sample) Len() int {
	if s.kind != KindTuple {
		return 0
	}
	return len(s.fields)
}

// Clone returns a deep copy of s with every tensor leaf copied onto the
// Go heap, detaching it from any shared segment it was a view over.
func (s Sample) Clone() Sample {
	switch s.kind {
	case KindTensor:
		return Sample{kind: KindTensor, tensor: s.tensor.Clone()}
	case KindTuple:
		fields := make([]Sample, len(s.fields))
		for i, f := range s.fields {
			fields[i] = f.Clone()
		}
		return Sample{kind: KindTuple, fields: fields}
	default:
		return s
	}
}

// Equal reports structural and value equality of two samples.
func Equal(a, b Sample) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindTensor:
		return tensor.Equal(a.tensor, b.tensor)
	case KindScalar:
		return a.scalar == b.scalar
	case KindTuple:
		if len(a.fields) != len(b.fields) {
			return false
		}
		for i := range a.fields {
			if !Equal(a.fields[i], b.fields[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// Walk calls fn for every tensor leaf in s, depth-first in field order.
// It stops and returns the first error from fn.
func (s Sample) Walk(fn func(t *tensor.Tensor) error) error {
	switch s.kind {
	case KindTensor:
		return fn(s.tensor)
	case KindTuple:
		for _, f := range s.fields {
			if err := f.Walk(fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// String returns a short structural description.
func (s Sample) String() string {
	switch s.kind {
	case KindTensor:
		return s.tensor.String()
	case KindScalar:
		return fmt.Sprintf("Scalar(%g)", s.scalar)
	case KindTuple:
		return fmt.Sprintf("Tuple(arity=%d)", len(s.fields))
	default:
		return "Sample(invalid)"
	}
}
