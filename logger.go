package dataload

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with dataload-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// LogPassStart logs the start of one full pass over the sampler.
func (l *Logger) LogPassStart(ctx context.Context, totalBatches, numWorkers int) {
	l.DebugContext(ctx, "pass started",
		"total_batches", totalBatches,
		"num_workers", numWorkers,
	)
}

// LogPassEnd logs a completed or abandoned pass.
func (l *Logger) LogPassEnd(ctx context.Context, emitted, totalBatches int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "pass ended with error",
			"emitted", emitted,
			"total_batches", totalBatches,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "pass completed",
			"emitted", emitted,
			"total_batches", totalBatches,
		)
	}
}

// LogDispatch logs the eager job enqueue of a pass.
func (l *Logger) LogDispatch(ctx context.Context, jobs int) {
	l.DebugContext(ctx, "jobs dispatched",
		"jobs", jobs,
	)
}

// LogWorkerFailure logs a worker-side fetch/collate failure.
func (l *Logger) LogWorkerFailure(ctx context.Context, ticket uint64, err error) {
	l.ErrorContext(ctx, "worker failure",
		"ticket", ticket,
		"error", err,
	)
}
