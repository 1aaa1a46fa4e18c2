package dataload

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hupe1980/dataload/batchify"
	"github.com/hupe1980/dataload/internal/reorder"
	"github.com/hupe1980/dataload/resource"
	"github.com/hupe1980/dataload/sample"
	"github.com/hupe1980/dataload/shm"
	"github.com/hupe1980/dataload/tensor"
	"github.com/hupe1980/dataload/transport"
	"github.com/hupe1980/dataload/worker"
)

// Iterator yields the batches of one pass in sampler order.
//
// Usage follows the scanner idiom:
//
//	it := loader.Iter(ctx)
//	defer it.Close()
//	for it.Next() {
//	    batch := it.Batch()
//	    // ...
//	}
//	if err := it.Err(); err != nil {
//	    // ...
//	}
//
// Iterators are single-goroutine objects; Next, Batch, Err and Close
// must all be called from the consumer goroutine. A batch backed by
// shared segments stays valid until the next call to Next or until
// Close, whichever comes first; the segments behind it are then
// unmapped and their bytes returned to the resource budget. Use
// sample.Clone to retain a batch beyond that window.
type Iterator struct {
	loader *Loader

	ctx    context.Context
	cancel context.CancelFunc

	total     int
	emitted   int
	batch     sample.Sample
	err       error
	passStart time.Time
	finished  bool
	closed    bool

	// synchronous mode
	batches [][]int
	collate batchify.Fn

	// parallel mode
	pool      *worker.Pool
	results   <-chan worker.Result
	buf       *reorder.Buffer[worker.Result]
	registry  *shm.Registry
	segs      []segRef
	stopConn  func()
	heldBytes atomic.Int64
}

// segRef records one shared segment backing the current batch, so it
// can be reclaimed when the consumer advances.
type segRef struct {
	id   uint64
	size int64
}

func newIterator(ctx context.Context, l *Loader) *Iterator {
	if ctx == nil {
		ctx = context.Background()
	}

	batches := l.batchSampler.Batches()
	it := &Iterator{
		loader:    l,
		total:     len(batches),
		passStart: time.Now(),
	}

	if l.opts.numWorkers == 0 {
		it.ctx = ctx
		it.batches = batches
		it.collate = l.collateFn(nil)
		l.opts.logger.LogPassStart(ctx, it.total, 0)
		return it
	}

	it.ctx, it.cancel = context.WithCancel(ctx)

	var alloc batchify.Allocator
	if l.opts.sharedMemory {
		it.registry = shm.NewRegistry()
		alloc = shm.NewAllocator(it.registry)
		if l.opts.controller != nil {
			alloc = &meteredAllocator{
				ctx:   it.ctx,
				inner: alloc,
				ctrl:  l.opts.controller,
				held:  &it.heldBytes,
			}
		}
	}

	jobs := make(chan worker.Job, worker.QueueCapacity)
	results := make(chan worker.Result, worker.QueueCapacity)
	it.results = results
	it.buf = reorder.New[worker.Result]()

	var pub worker.Publisher = worker.ChanPublisher(results)
	if l.opts.sharedMemory {
		// Results cross an explicit transport boundary: batches are
		// framed, segment-backed tensors travel as handles, and the
		// dispatcher side decodes them back into zero-copy views.
		mc := transport.NewMessageCodec(it.registry,
			transport.WithPayloadCodec(l.opts.payloadCodec),
			transport.WithCompression(l.opts.compression),
		)
		workerSide, dispatchSide, stop := transport.Pipe(mc, worker.QueueCapacity)
		it.stopConn = stop
		pub = connPublisher{conn: workerSide}

		go func() {
			for {
				msg, err := dispatchSide.Receive()
				if err != nil {
					return
				}
				res := worker.Result{Ticket: msg.Ticket, Batch: msg.Body}
				if msg.Err != "" {
					res.Err = errors.New(msg.Err)
				}
				select {
				case results <- res:
				case <-it.ctx.Done():
					return
				}
			}
		}()
	}

	cfg := worker.Config{
		Dataset:   l.dataset,
		Batchify:  l.collateFn(alloc),
		Jobs:      jobs,
		Publisher: pub,
		Logger:    l.opts.logger.Logger,
	}
	it.pool = worker.StartPool(it.ctx, l.opts.numWorkers, cfg, jobs)

	// Every job of the pass is enqueued up front; the bounded queue
	// provides the backpressure.
	go func() {
		for i, indices := range batches {
			if err := l.opts.controller.WaitDispatch(it.ctx); err != nil {
				return
			}
			select {
			case jobs <- worker.Job{Ticket: uint64(i), Indices: indices}:
			case <-it.ctx.Done():
				return
			}
		}
		l.opts.logger.LogDispatch(it.ctx, len(batches))
		l.opts.metricsCollector.RecordDispatch(len(batches))
	}()

	l.opts.logger.LogPassStart(it.ctx, it.total, l.opts.numWorkers)
	return it
}

// Len returns the total number of batches this pass yields.
func (it *Iterator) Len() int { return it.total }

// Batch returns the batch produced by the last successful Next call. It
// is valid until the next call to Next or Close.
func (it *Iterator) Batch() sample.Sample { return it.batch }

// Err returns the error that terminated the pass, or nil after a clean
// exhaustion.
func (it *Iterator) Err() error { return it.err }

// Next advances to the next batch in sampler order. It returns false
// when the pass is exhausted, an error occurred, or the iterator is
// closed; Err distinguishes the cases.
func (it *Iterator) Next() bool {
	if it.closed {
		if it.err == nil && it.emitted < it.total {
			it.err = ErrIteratorClosed
		}
		return false
	}
	if it.err != nil {
		return false
	}
	it.reclaim()
	if it.emitted >= it.total {
		it.finish(true)
		return false
	}

	start := time.Now()
	if it.pool == nil {
		return it.nextSync(start)
	}
	return it.nextParallel(start)
}

func (it *Iterator) nextSync(start time.Time) bool {
	indices := it.batches[it.emitted]
	samples := make([]sample.Sample, 0, len(indices))
	for _, idx := range indices {
		s, err := it.loader.dataset.Get(it.ctx, idx)
		if err != nil {
			it.fail(fmt.Errorf("dataload: fetch index %d: %w", idx, err), start)
			return false
		}
		samples = append(samples, s)
	}

	batch, err := it.collate(samples)
	if err != nil {
		it.fail(fmt.Errorf("dataload: batchify: %w", err), start)
		return false
	}
	return it.emit(batch, start)
}

func (it *Iterator) nextParallel(start time.Time) bool {
	for {
		if res, ok := it.buf.Pop(); ok {
			if res.Err != nil {
				it.loader.opts.logger.LogWorkerFailure(it.ctx, res.Ticket, res.Err)
				it.fail(&WorkerError{Ticket: res.Ticket, cause: res.Err}, start)
				return false
			}
			return it.emit(res.Batch, start)
		}

		select {
		case res := <-it.results:
			it.buf.Put(res.Ticket, res)
		case <-it.ctx.Done():
			it.fail(it.ctx.Err(), start)
			return false
		}
	}
}

func (it *Iterator) emit(batch sample.Sample, start time.Time) bool {
	it.batch = batch
	it.emitted++
	if it.registry != nil {
		it.trackSegments(batch)
	}
	it.loader.opts.metricsCollector.RecordBatch(time.Since(start), nil)
	if it.emitted == it.total {
		it.finish(true)
	}
	return true
}

// trackSegments records the shared segments backing an emitted batch.
func (it *Iterator) trackSegments(batch sample.Sample) {
	_ = batch.Walk(func(t *tensor.Tensor) error {
		h, ok := it.registry.Lookup(t)
		if !ok {
			return nil
		}
		for _, s := range it.segs {
			if s.id == h.SegmentID {
				return nil
			}
		}
		it.segs = append(it.segs, segRef{id: h.SegmentID, size: int64(len(t.Bytes()))})
		return nil
	})
}

// reclaim unmaps the segments of the batch the consumer has advanced
// past and returns their bytes to the resource budget, so workers
// waiting on the shared-memory limit can make progress mid-pass.
func (it *Iterator) reclaim() {
	if len(it.segs) == 0 {
		return
	}

	var bytes int64
	for _, s := range it.segs {
		it.registry.Release(s.id) //nolint:errcheck
		bytes += s.size
	}
	it.segs = it.segs[:0]
	it.batch = sample.Sample{}

	if it.loader.opts.controller != nil {
		it.heldBytes.Add(-bytes)
		it.loader.opts.controller.ReleaseSharedMemory(bytes)
	}
}

func (it *Iterator) fail(err error, start time.Time) {
	it.err = err
	it.loader.opts.metricsCollector.RecordBatch(time.Since(start), err)
	it.finish(false)
}

// finish tears the pass machinery down exactly once. A clean finish
// stops workers via sentinels after the result stream is drained; an
// abandonment cancels the pass context so workers blocked on fetch or
// publish unwind immediately.
func (it *Iterator) finish(clean bool) {
	if it.finished {
		return
	}
	it.finished = true

	if it.pool != nil {
		if clean {
			if err := it.pool.Stop(it.ctx); err != nil {
				it.cancel()
			}
		} else {
			it.cancel()
		}
		// Joined on every path, including a canceled sentinel handoff.
		if werr := it.pool.Wait(); werr != nil && clean && it.err == nil && !errors.Is(werr, context.Canceled) {
			it.err = werr
		}
		if it.stopConn != nil {
			it.stopConn()
		}
		it.cancel()
	}

	it.loader.opts.metricsCollector.RecordPass(it.emitted, time.Since(it.passStart))
	it.loader.opts.logger.LogPassEnd(it.ctx, it.emitted, it.total, it.err)
}

// Close abandons the pass if it is still running, joins the workers and
// releases every shared segment of the pass. Batches obtained from this
// iterator must not be used afterwards. Close is idempotent.
func (it *Iterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true

	it.finish(false)
	if it.cancel != nil {
		it.cancel()
	}

	var err error
	if it.registry != nil {
		it.segs = nil
		err = it.registry.Close()
		it.loader.opts.controller.ReleaseSharedMemory(it.heldBytes.Swap(0))
	}
	return err
}

// connPublisher publishes worker results over a transport connection,
// mapping a result error onto the message's error field.
type connPublisher struct {
	conn transport.Conn
}

// Publish implements worker.Publisher.
func (p connPublisher) Publish(_ context.Context, res worker.Result) error {
	msg := transport.Message{Ticket: res.Ticket, Body: res.Batch}
	if res.Err != nil {
		msg.Err = res.Err.Error()
		msg.Body = sample.Sample{}
	}
	return p.conn.Send(msg)
}

// meteredAllocator charges every shared allocation against the resource
// controller before the segment is created. The held counter is drained
// back to the controller when the iterator closes.
type meteredAllocator struct {
	ctx   context.Context
	inner batchify.Allocator
	ctrl  *resource.Controller
	held  *atomic.Int64
}

// Alloc implements batchify.Allocator.
func (a *meteredAllocator) Alloc(dtype tensor.Dtype, shape ...int) (*tensor.Tensor, error) {
	n, err := tensor.Numel(shape)
	if err != nil {
		return nil, err
	}
	size := int64(n * dtype.Size())

	if err := a.ctrl.AcquireSharedMemory(a.ctx, size); err != nil {
		return nil, err
	}
	t, err := a.inner.Alloc(dtype, shape...)
	if err != nil {
		a.ctrl.ReleaseSharedMemory(size)
		return nil, err
	}
	a.held.Add(size)
	return t, nil
}
