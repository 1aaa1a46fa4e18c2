package dataload

import (
	"log/slog"

	"github.com/hupe1980/dataload/batchify"
	"github.com/hupe1980/dataload/codec"
	"github.com/hupe1980/dataload/resource"
	"github.com/hupe1980/dataload/sampler"
	"github.com/hupe1980/dataload/transport"
)

type options struct {
	batchSize        int
	shuffle          bool
	sampler          sampler.Sampler
	lastBatch        sampler.LastBatch
	lastBatchSet     bool
	batchSampler     sampler.BatchSampler
	numWorkers       int
	batchifyFn       batchify.Fn
	sharedMemory     bool
	compression      transport.CompressionType
	payloadCodec     codec.Codec
	seed             int64
	seedSet          bool
	metricsCollector MetricsCollector
	logger           *Logger
	controller       *resource.Controller
}

// Option configures Loader constructor behavior.
//
// Batching is configured either via WithBatchSize (optionally combined
// with WithShuffle or WithSampler and WithLastBatch) or via a complete
// WithBatchSampler; mixing the two styles is a constructor error.
type Option func(*options)

// WithBatchSize sets the number of samples per batch. Required unless a
// batch sampler is set.
func WithBatchSize(size int) Option {
	return func(o *options) {
		o.batchSize = size
	}
}

// WithShuffle enables a fresh random permutation of the dataset on
// every pass. Must not be combined with WithSampler.
func WithShuffle(shuffle bool) Option {
	return func(o *options) {
		o.shuffle = shuffle
	}
}

// WithSampler sets an explicit index sampler. Must not be combined with
// WithShuffle.
func WithSampler(s sampler.Sampler) Option {
	return func(o *options) {
		o.sampler = s
	}
}

// WithLastBatch sets how a trailing partial batch is handled. Defaults
// to sampler.LastBatchKeep.
func WithLastBatch(policy sampler.LastBatch) Option {
	return func(o *options) {
		o.lastBatch = policy
		o.lastBatchSet = true
	}
}

// WithBatchSampler sets a complete batch sampler. It subsumes batch
// size, shuffle, sampler and last-batch policy; setting any of those
// alongside it is a constructor error.
func WithBatchSampler(bs sampler.BatchSampler) Option {
	return func(o *options) {
		o.batchSampler = bs
	}
}

// WithNumWorkers sets the number of parallel loading workers. Zero
// (the default) loads synchronously on the consumer goroutine.
func WithNumWorkers(n int) Option {
	return func(o *options) {
		o.numWorkers = n
	}
}

// WithBatchifyFunc sets a custom collate function, replacing the
// default stacking collation in both synchronous and parallel mode.
func WithBatchifyFunc(fn batchify.Fn) Option {
	return func(o *options) {
		o.batchifyFn = fn
	}
}

// WithSharedMemory makes parallel workers allocate batches in shared
// segments and ship them as fixed-size handles instead of byte copies.
// It has no effect in synchronous mode.
func WithSharedMemory(enabled bool) Option {
	return func(o *options) {
		o.sharedMemory = enabled
	}
}

// WithTransportCompression sets frame compression for the result
// transport in shared-memory mode. Defaults to transport.CompressionNone.
func WithTransportCompression(ct transport.CompressionType) Option {
	return func(o *options) {
		o.compression = ct
	}
}

// WithPayloadCodec sets the codec for non-tensor transport payload.
// If nil is passed, codec.Default is used.
func WithPayloadCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.payloadCodec = c
	}
}

// WithSeed makes shuffling deterministic. It only applies to the
// sampler built by WithShuffle.
func WithSeed(seed int64) Option {
	return func(o *options) {
		o.seed = seed
		o.seedSet = true
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &dataload.BasicMetricsCollector{}
//	loader, _ := dataload.New(ds, dataload.WithBatchSize(32), dataload.WithMetricsCollector(metrics))
//	// ... iterate ...
//	stats := metrics.GetStats()
//	fmt.Printf("Batches: %d, Avg wait: %dns\n", stats.BatchCount, stats.BatchAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := dataload.NewJSONLogger(slog.LevelInfo)
//	loader, _ := dataload.New(ds, dataload.WithBatchSize(32), dataload.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithResourceController bounds shared-memory usage and dispatch rate
// for every pass of this loader. Pass nil to enforce nothing.
func WithResourceController(c *resource.Controller) Option {
	return func(o *options) {
		o.controller = c
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		lastBatch:        sampler.LastBatchKeep,
		payloadCodec:     codec.Default,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	return o
}
