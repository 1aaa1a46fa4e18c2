// Package tensor provides the dense n-dimensional array type carried by
// samples and batches.
//
// A Tensor is a dtype tag, a shape, and a flat byte buffer in row-major
// order. The buffer may live on the Go heap or inside a shared-memory
// segment; FromBytes builds a zero-copy view over caller-owned bytes so
// the same type serves both cases.
package tensor

import (
	"fmt"
	"unsafe"
)

// Dtype identifies the element type of a tensor.
type Dtype uint8

const (
	// Invalid is the zero Dtype.
	Invalid Dtype = iota
	// Float32 is a 32-bit IEEE 754 float.
	Float32
	// Float64 is a 64-bit IEEE 754 float.
	Float64
	// Int32 is a signed 32-bit integer.
	Int32
	// Int64 is a signed 64-bit integer.
	Int64
	// Uint8 is an unsigned 8-bit integer.
	Uint8
)

// Size returns the element size in bytes.
func (d Dtype) Size() int {
	switch d {
	case Float32, Int32:
		return 4
	case Float64, Int64:
		return 8
	case Uint8:
		return 1
	default:
		return 0
	}
}

// String returns the dtype name.
func (d Dtype) String() string {
	switch d {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Uint8:
		return "uint8"
	default:
		return "invalid"
	}
}

// Valid reports whether d is a known dtype.
func (d Dtype) Valid() bool { return d.Size() > 0 }

// Tensor is a dense row-major array.
type Tensor struct {
	dtype Dtype
	shape []int
	data  []byte
}

// Numel returns the number of elements described by shape, or an error
// if any dimension is negative.
func Numel(shape []int) (int, error) {
	n := 1
	for _, d := range shape {
		if d < 0 {
			return 0, fmt.Errorf("tensor: negative dimension %d in shape %v", d, shape)
		}
		n *= d
	}
	return n, nil
}

// New allocates a zero-filled tensor on the Go heap.
func New(dtype Dtype, shape ...int) (*Tensor, error) {
	if !dtype.Valid() {
		return nil, fmt.Errorf("tensor: invalid dtype %d", dtype)
	}
	n, err := Numel(shape)
	if err != nil {
		return nil, err
	}
	return &Tensor{
		dtype: dtype,
		shape: append([]int(nil), shape...),
		data:  make([]byte, n*dtype.Size()),
	}, nil
}

// FromBytes builds a tensor as a zero-copy view over data. The caller
// keeps ownership of the backing bytes; mutating them mutates the
// tensor. len(data) must equal numel*dtype.Size().
func FromBytes(dtype Dtype, shape []int, data []byte) (*Tensor, error) {
	if !dtype.Valid() {
		return nil, fmt.Errorf("tensor: invalid dtype %d", dtype)
	}
	n, err := Numel(shape)
	if err != nil {
		return nil, err
	}
	if want := n * dtype.Size(); len(data) != want {
		return nil, fmt.Errorf("tensor: buffer size %d does not match shape %v dtype %s (want %d)", len(data), shape, dtype, want)
	}
	return &Tensor{
		dtype: dtype,
		shape: append([]int(nil), shape...),
		data:  data,
	}, nil
}

// FromFloat32s copies vals into a new float32 tensor of the given
// shape. With no shape, the tensor is 1-D of length len(vals).
func FromFloat32s(vals []float32, shape ...int) (*Tensor, error) {
	if len(shape) == 0 {
		shape = []int{len(vals)}
	}
	t, err := New(Float32, shape...)
	if err != nil {
		return nil, err
	}
	if n, _ := Numel(shape); n != len(vals) {
		return nil, fmt.Errorf("tensor: %d values do not fill shape %v", len(vals), shape)
	}
	copy(t.Float32s(), vals)
	return t, nil
}

// FromFloat64s copies vals into a new float64 tensor.
func FromFloat64s(vals []float64, shape ...int) (*Tensor, error) {
	if len(shape) == 0 {
		shape = []int{len(vals)}
	}
	t, err := New(Float64, shape...)
	if err != nil {
		return nil, err
	}
	if n, _ := Numel(shape); n != len(vals) {
		return nil, fmt.Errorf("tensor: %d values do not fill shape %v", len(vals), shape)
	}
	copy(t.Float64s(), vals)
	return t, nil
}

// FromInt64s copies vals into a new int64 tensor.
func FromInt64s(vals []int64, shape ...int) (*Tensor, error) {
	if len(shape) == 0 {
		shape = []int{len(vals)}
	}
	t, err := New(Int64, shape...)
	if err != nil {
		return nil, err
	}
	if n, _ := Numel(shape); n != len(vals) {
		return nil, fmt.Errorf("tensor: %d values do not fill shape %v", len(vals), shape)
	}
	copy(t.Int64s(), vals)
	return t, nil
}

// Clone returns a deep copy of t backed by a fresh heap buffer. Cloning
// detaches a view from its original backing bytes.
func (t *Tensor) Clone() *Tensor {
	return &Tensor{
		dtype: t.dtype,
		shape: append([]int(nil), t.shape...),
		data:  append([]byte(nil), t.data...),
	}
}

// Dtype returns the element type.
func (t *Tensor) Dtype() Dtype { return t.dtype }

// Shape returns the tensor shape. The returned slice must not be
// mutated.
func (t *Tensor) Shape() []int { return t.shape }

// Numel returns the number of elements.
func (t *Tensor) Numel() int {
	n := 1
	for _, d := range t.shape {
		n *= d
	}
	return n
}

// Bytes returns the raw backing buffer. Mutations are visible through
// every view sharing the buffer.
func (t *Tensor) Bytes() []byte { return t.data }

// Float32s returns the buffer as a []float32 view. Panics if the dtype
// is not Float32.
func (t *Tensor) Float32s() []float32 {
	t.mustDtype(Float32)
	if len(t.data) == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&t.data[0])), t.Numel())
}

// Float64s returns the buffer as a []float64 view. Panics if the dtype
// is not Float64.
func (t *Tensor) Float64s() []float64 {
	t.mustDtype(Float64)
	if len(t.data) == 0 {
		return nil
	}
	return unsafe.Slice((*float64)(unsafe.Pointer(&t.data[0])), t.Numel())
}

// Int32s returns the buffer as a []int32 view. Panics if the dtype is
// not Int32.
func (t *Tensor) Int32s() []int32 {
	t.mustDtype(Int32)
	if len(t.data) == 0 {
		return nil
	}
	return unsafe.Slice((*int32)(unsafe.Pointer(&t.data[0])), t.Numel())
}

// Int64s returns the buffer as a []int64 view. Panics if the dtype is
// not Int64.
func (t *Tensor) Int64s() []int64 {
	t.mustDtype(Int64)
	if len(t.data) == 0 {
		return nil
	}
	return unsafe.Slice((*int64)(unsafe.Pointer(&t.data[0])), t.Numel())
}

// Uint8s returns the buffer as a []uint8 view. Panics if the dtype is
// not Uint8.
func (t *Tensor) Uint8s() []uint8 {
	t.mustDtype(Uint8)
	return t.data
}

func (t *Tensor) mustDtype(want Dtype) {
	if t.dtype != want {
		panic(fmt.Sprintf("tensor: dtype is %s, not %s", t.dtype, want))
	}
}

// SameShape reports whether a and b have identical shapes.
func SameShape(a, b *Tensor) bool {
	if len(a.shape) != len(b.shape) {
		return false
	}
	for i := range a.shape {
		if a.shape[i] != b.shape[i] {
			return false
		}
	}
	return true
}

// Equal reports whether two tensors have the same dtype, shape and
// element bytes.
func Equal(a, b *Tensor) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.dtype != b.dtype || !SameShape(a, b) {
		return false
	}
	return string(a.data) == string(b.data)
}

// String returns a short description, e.g. "Tensor(float32, [4 3])".
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(%s, %v)", t.dtype, t.shape)
}
