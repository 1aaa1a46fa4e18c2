package dataload

import (
	"errors"
	"fmt"
)

var (
	// ErrNilDataset is returned when New is called without a dataset.
	ErrNilDataset = errors.New("dataload: dataset must not be nil")

	// ErrBatchSizeRequired is returned when neither a batch size nor a
	// batch sampler is configured.
	ErrBatchSizeRequired = errors.New("dataload: batch size must be set unless a batch sampler is set")

	// ErrShuffleWithSampler is returned when shuffle is combined with
	// an explicit sampler.
	ErrShuffleWithSampler = errors.New("dataload: shuffle must not be set if a sampler is set")

	// ErrBatchSamplerConflict is returned when a batch sampler is
	// combined with batch size, shuffle, sampler or last-batch policy.
	ErrBatchSamplerConflict = errors.New("dataload: batch size, shuffle, sampler and last-batch policy must not be set if a batch sampler is set")

	// ErrInvalidNumWorkers is returned for a negative worker count.
	ErrInvalidNumWorkers = errors.New("dataload: number of workers must not be negative")

	// ErrIteratorClosed is returned by Next after Close.
	ErrIteratorClosed = errors.New("dataload: iterator is closed")
)

// WorkerError reports a fetch or collate failure inside a worker,
// surfaced to the consumer on the dequeue of the failed ticket.
//
// The original underlying error can be accessed via errors.Unwrap.
type WorkerError struct {
	Ticket uint64
	cause  error
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("dataload: worker failed on batch %d: %v", e.Ticket, e.cause)
}

func (e *WorkerError) Unwrap() error { return e.cause }
