// Package reorder restores ticket order over results that complete out
// of order across workers.
package reorder

// Buffer holds results that arrived ahead of schedule and releases
// them in strictly increasing ticket order. It is not safe for
// concurrent use; the dispatcher owns it from a single goroutine.
//
// The number of held entries is bounded by the number of in-flight
// jobs ahead of the next expected ticket.
type Buffer[T any] struct {
	pending map[uint64]T
	next    uint64
}

// New creates an empty buffer expecting ticket 0 first.
func New[T any]() *Buffer[T] {
	return &Buffer[T]{pending: make(map[uint64]T)}
}

// Put inserts a ticketed value. Tickets must be unique.
func (b *Buffer[T]) Put(ticket uint64, v T) {
	b.pending[ticket] = v
}

// Pop removes and returns the next expected value if it has arrived,
// advancing the expectation. Call it repeatedly after Put until it
// reports false.
func (b *Buffer[T]) Pop() (T, bool) {
	v, ok := b.pending[b.next]
	if !ok {
		var zero T
		return zero, false
	}
	delete(b.pending, b.next)
	b.next++
	return v, true
}

// NextExpected returns the ticket the consumer will see next.
func (b *Buffer[T]) NextExpected() uint64 { return b.next }

// Pending returns the number of held out-of-order entries.
func (b *Buffer[T]) Pending() int { return len(b.pending) }
