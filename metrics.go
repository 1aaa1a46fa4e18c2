package dataload

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    batchCounter  prometheus.Counter
//	    passHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordBatch(duration time.Duration, err error) {
//	    p.batchCounter.Inc()
//	    // ... record error state, duration, etc.
//	}
type MetricsCollector interface {
	// RecordBatch is called after each batch is handed to the consumer.
	// duration is the consumer-visible wait, err is nil if successful.
	RecordBatch(duration time.Duration, err error)

	// RecordPass is called when a pass ends, whether completed or
	// abandoned. batches is the number of batches emitted.
	RecordPass(batches int, duration time.Duration)

	// RecordDispatch is called once per pass after all jobs have been
	// enqueued. jobs is the number of index batches dispatched.
	RecordDispatch(jobs int)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordBatch(time.Duration, error) {}
func (NoopMetricsCollector) RecordPass(int, time.Duration)    {}
func (NoopMetricsCollector) RecordDispatch(int)               {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	BatchCount      atomic.Int64
	BatchErrors     atomic.Int64
	BatchTotalNanos atomic.Int64
	PassCount       atomic.Int64
	PassBatches     atomic.Int64
	PassTotalNanos  atomic.Int64
	DispatchCount   atomic.Int64
	DispatchJobs    atomic.Int64
}

// RecordBatch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBatch(duration time.Duration, err error) {
	b.BatchCount.Add(1)
	b.BatchTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.BatchErrors.Add(1)
	}
}

// RecordPass implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPass(batches int, duration time.Duration) {
	b.PassCount.Add(1)
	b.PassBatches.Add(int64(batches))
	b.PassTotalNanos.Add(duration.Nanoseconds())
}

// RecordDispatch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDispatch(jobs int) {
	b.DispatchCount.Add(1)
	b.DispatchJobs.Add(int64(jobs))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		BatchCount:     b.BatchCount.Load(),
		BatchErrors:    b.BatchErrors.Load(),
		BatchAvgNanos:  b.getAvgBatchNanos(),
		PassCount:      b.PassCount.Load(),
		PassBatches:    b.PassBatches.Load(),
		PassTotalNanos: b.PassTotalNanos.Load(),
		DispatchCount:  b.DispatchCount.Load(),
		DispatchJobs:   b.DispatchJobs.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgBatchNanos() int64 {
	count := b.BatchCount.Load()
	if count == 0 {
		return 0
	}
	return b.BatchTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	BatchCount     int64
	BatchErrors    int64
	BatchAvgNanos  int64
	PassCount      int64
	PassBatches    int64
	PassTotalNanos int64
	DispatchCount  int64
	DispatchJobs   int64
}
