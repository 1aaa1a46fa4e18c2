// Package shm implements the shared-memory transport primitives:
// anonymous shared segments, fixed-size tensor handles, and the
// registry that resolves handles back to zero-copy tensor views.
//
// A registry is constructed explicitly and injected where needed; there
// is no process-wide registration side effect. Segment lifetime is
// owned by the registry: a segment stays mapped until it is released or
// the registry is closed, and handles must not be resolved afterwards.
package shm

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/hupe1980/dataload/tensor"
)

// Handle is a compact descriptor for a tensor stored in a shared
// segment. It is fixed-size on the wire regardless of tensor size.
type Handle struct {
	SegmentID  uint64       `json:"segment_id"`
	Dtype      tensor.Dtype `json:"dtype"`
	Shape      []int        `json:"shape"`
	ByteOffset int64        `json:"byte_offset"`
}

// Segment is a mapped shared-memory region.
//
// Writers must not mutate the region after a handle over it has been
// published.
type Segment struct {
	id   uint64
	fd   int
	data []byte
}

// ID returns the segment identifier.
func (s *Segment) ID() uint64 { return s.id }

// Bytes returns the mapped region.
func (s *Segment) Bytes() []byte { return s.data }

// Size returns the region size in bytes.
func (s *Segment) Size() int { return len(s.data) }

func (s *Segment) contains(p uintptr) bool {
	if len(s.data) == 0 {
		return false
	}
	base := uintptr(unsafe.Pointer(&s.data[0]))
	return p >= base && p < base+uintptr(len(s.data))
}

func (s *Segment) offsetOf(p uintptr) int64 {
	base := uintptr(unsafe.Pointer(&s.data[0]))
	return int64(p - base)
}

// Registry creates segments, resolves handles to zero-copy views, and
// owns segment lifetime.
type Registry struct {
	mu       sync.Mutex
	nextID   atomic.Uint64
	segments map[uint64]*Segment
	closed   bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{segments: make(map[uint64]*Segment)}
}

// Create allocates and maps a new shared segment of the given size.
// The segment belongs to the registry until Release or Close unmaps it.
func (r *Registry) Create(size int) (*Segment, error) {
	if size <= 0 {
		return nil, fmt.Errorf("shm: invalid segment size %d", size)
	}

	fd, data, err := mapSegment(size)
	if err != nil {
		return nil, err
	}

	seg := &Segment{
		id:   r.nextID.Add(1),
		fd:   fd,
		data: data,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		unmapSegment(fd, data) //nolint:errcheck
		return nil, fmt.Errorf("shm: registry is closed")
	}
	r.segments[seg.id] = seg

	return seg, nil
}

// Attach resolves a handle to a zero-copy tensor view over the mapped
// segment. The view borrows the segment; it must not be used after the
// segment is released.
func (r *Registry) Attach(h Handle) (*tensor.Tensor, error) {
	r.mu.Lock()
	seg, ok := r.segments[h.SegmentID]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("shm: unknown segment %d", h.SegmentID)
	}

	n, err := tensor.Numel(h.Shape)
	if err != nil {
		return nil, err
	}
	byteLen := int64(n * h.Dtype.Size())
	if h.ByteOffset < 0 || h.ByteOffset+byteLen > int64(len(seg.data)) {
		return nil, fmt.Errorf("shm: handle range [%d,%d) exceeds segment %d size %d",
			h.ByteOffset, h.ByteOffset+byteLen, h.SegmentID, len(seg.data))
	}

	return tensor.FromBytes(h.Dtype, h.Shape, seg.data[h.ByteOffset:h.ByteOffset+byteLen])
}

// Lookup returns the handle for a tensor whose bytes live inside a
// registered segment. It reports false for heap-backed tensors.
func (r *Registry) Lookup(t *tensor.Tensor) (Handle, bool) {
	b := t.Bytes()
	if len(b) == 0 {
		return Handle{}, false
	}
	p := uintptr(unsafe.Pointer(&b[0]))

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, seg := range r.segments {
		if seg.contains(p) {
			return Handle{
				SegmentID:  seg.id,
				Dtype:      t.Dtype(),
				Shape:      t.Shape(),
				ByteOffset: seg.offsetOf(p),
			}, true
		}
	}
	return Handle{}, false
}

// Release unmaps a segment and removes it from the registry. Every view
// over the segment becomes invalid. Releasing an unknown segment is a
// no-op.
func (r *Registry) Release(id uint64) error {
	r.mu.Lock()
	seg, ok := r.segments[id]
	if ok {
		delete(r.segments, id)
	}
	r.mu.Unlock()

	if seg != nil {
		return unmapSegment(seg.fd, seg.data)
	}
	return nil
}

// Len returns the number of live segments.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.segments)
}

// Close unmaps every live segment and marks the registry closed.
// Handles and views over those segments become invalid.
func (r *Registry) Close() error {
	r.mu.Lock()
	segs := make([]*Segment, 0, len(r.segments))
	for _, seg := range r.segments {
		segs = append(segs, seg)
	}
	r.segments = make(map[uint64]*Segment)
	r.closed = true
	r.mu.Unlock()

	var firstErr error
	for _, seg := range segs {
		if err := unmapSegment(seg.fd, seg.data); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Allocator allocates tensors directly inside fresh shared segments, so
// a batch built by a worker can cross a process boundary at handle
// cost.
type Allocator struct {
	reg *Registry
}

// NewAllocator creates an allocator backed by the given registry.
func NewAllocator(reg *Registry) *Allocator {
	return &Allocator{reg: reg}
}

// Alloc creates one segment sized for the tensor and returns a
// zero-copy view over it. The segment is owned by the registry.
func (a *Allocator) Alloc(dtype tensor.Dtype, shape ...int) (*tensor.Tensor, error) {
	n, err := tensor.Numel(shape)
	if err != nil {
		return nil, err
	}
	size := n * dtype.Size()
	if size == 0 {
		// Zero-element tensors never cross via shared memory.
		return tensor.New(dtype, shape...)
	}
	seg, err := a.reg.Create(size)
	if err != nil {
		return nil, err
	}
	return tensor.FromBytes(dtype, shape, seg.Bytes())
}
