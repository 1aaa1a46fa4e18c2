// Package worker implements the loop that turns index jobs into
// collated batches, and the per-pass pool driving N such loops.
//
// Workers are fully independent: the only coordination points are the
// bounded job queue they pull from and the publisher they push results
// to. A fetch or collate failure is tagged on the published result
// rather than killing the worker silently, so the dispatcher can
// surface it to the consumer.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/dataload/batchify"
	"github.com/hupe1980/dataload/dataset"
	"github.com/hupe1980/dataload/sample"
)

// QueueCapacity is the bound of the job and result queues. Enqueueing
// beyond it blocks the dispatcher (backpressure).
const QueueCapacity = 65535

// Job is one ticketed unit of work: fetch these indices, collate them,
// publish the batch. A sentinel job tells the worker to exit.
type Job struct {
	Ticket   uint64
	Indices  []int
	sentinel bool
}

// Sentinel returns the job that transitions a worker to its terminal
// state.
func Sentinel() Job { return Job{sentinel: true} }

// IsSentinel reports whether the job is a shutdown sentinel.
func (j Job) IsSentinel() bool { return j.sentinel }

// Result is one ticketed batch, or a tagged failure for its job.
type Result struct {
	Ticket uint64
	Batch  sample.Sample
	Err    error
}

// Publisher delivers results toward the dispatcher. Implementations
// must be safe for concurrent use by all workers of a pass.
type Publisher interface {
	Publish(ctx context.Context, res Result) error
}

// ChanPublisher publishes results onto a bounded channel.
type ChanPublisher chan Result

// Publish implements Publisher.
func (p ChanPublisher) Publish(ctx context.Context, res Result) error {
	select {
	case p <- res:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// state is the worker loop's explicit state machine.
type state uint8

const (
	stateIdle state = iota
	stateFetching
	stateBatchifying
	statePublishing
	stateExiting
)

// Config wires one worker loop.
type Config struct {
	// Dataset is the read-only source; it must tolerate concurrent
	// Get calls from sibling workers.
	Dataset dataset.Dataset
	// Batchify collates the fetched samples into one batch.
	Batchify batchify.Fn
	// Jobs is the bounded job queue shared by the pool.
	Jobs <-chan Job
	// Publisher receives the ticketed results.
	Publisher Publisher
	// Logger is optional; nil disables logging.
	Logger *slog.Logger
}

// Run executes the worker loop until a sentinel job arrives or ctx is
// canceled. It returns nil on a clean sentinel exit.
func Run(ctx context.Context, cfg Config) error {
	st := stateIdle

	var job Job
	var samples []sample.Sample
	var res Result

	for {
		switch st {
		case stateIdle:
			select {
			case job = <-cfg.Jobs:
			case <-ctx.Done():
				return ctx.Err()
			}
			if job.IsSentinel() {
				st = stateExiting
				continue
			}
			st = stateFetching

		case stateFetching:
			samples = samples[:0]
			res = Result{Ticket: job.Ticket}
			for _, idx := range job.Indices {
				s, err := cfg.Dataset.Get(ctx, idx)
				if err != nil {
					res.Err = fmt.Errorf("fetch index %d: %w", idx, err)
					break
				}
				samples = append(samples, s)
			}
			if res.Err != nil {
				st = statePublishing
				continue
			}
			st = stateBatchifying

		case stateBatchifying:
			batch, err := cfg.Batchify(samples)
			if err != nil {
				res.Err = fmt.Errorf("batchify: %w", err)
			} else {
				res.Batch = batch
			}
			st = statePublishing

		case statePublishing:
			if res.Err != nil && cfg.Logger != nil {
				cfg.Logger.ErrorContext(ctx, "job failed",
					"ticket", res.Ticket,
					"error", res.Err,
				)
			}
			if err := cfg.Publisher.Publish(ctx, res); err != nil {
				return err
			}
			st = stateIdle

		case stateExiting:
			return nil
		}
	}
}

// Pool runs N worker loops for one pass. Pools are per-pass: spawned
// at pass start, stopped via one sentinel per worker, joined at pass
// end, never reused.
type Pool struct {
	n    int
	jobs chan<- Job
	g    *errgroup.Group
}

// StartPool launches n workers sharing the config's job queue and
// publisher.
func StartPool(ctx context.Context, n int, cfg Config, jobs chan<- Job) *Pool {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			return Run(ctx, cfg)
		})
	}
	return &Pool{n: n, jobs: jobs, g: g}
}

// Stop enqueues one sentinel per worker. It blocks while the job queue
// is full, unless ctx is canceled first.
func (p *Pool) Stop(ctx context.Context) error {
	for i := 0; i < p.n; i++ {
		select {
		case p.jobs <- Sentinel():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Wait blocks until every worker has terminated and returns the first
// loop error, if any.
func (p *Pool) Wait() error { return p.g.Wait() }

// Size returns the number of workers.
func (p *Pool) Size() int { return p.n }
