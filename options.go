package cloudfs

import (
	"go.uber.org/zap"

	"github.com/gobeaver/cloudfs/internal/metrics"
)

// DefaultQueueSize is the transfer queue capacity used when none is set.
const DefaultQueueSize = 1024

// Option represents a configuration option for Copy and Compare
type Option func(*Options)

// Options contains all possible options for pipeline operations
type Options struct {
	// Logger receives skip notices, per-file failures and discovery errors
	Logger *zap.Logger

	// Progress is called after every processed file
	Progress ProgressFunc

	// QueueSize bounds how far discovery may run ahead of the consumer
	QueueSize int

	// Selector filters the files discovery enqueues
	Selector Selector

	// Metrics records per-file outcomes; nil disables instrumentation
	Metrics *metrics.Pipeline
}

// Progress is a snapshot of a running pipeline.
type Progress struct {
	// Path is the composite name of the file just processed
	Path string

	// Processed counts files handled so far, including skipped and failed ones
	Processed int64

	// Discovered counts files found so far; it keeps growing while
	// discovery runs
	Discovered int64

	// DiscoveryDone is true once the traversal has finished
	DiscoveryDone bool
}

// ProgressFunc is a callback for pipeline progress
type ProgressFunc func(Progress)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithProgress sets the progress callback
func WithProgress(fn ProgressFunc) Option {
	return func(o *Options) {
		o.Progress = fn
	}
}

// WithQueueSize sets the transfer queue capacity
func WithQueueSize(size int) Option {
	return func(o *Options) {
		o.QueueSize = size
	}
}

// WithFilter restricts the files a pipeline processes
func WithFilter(selector Selector) Option {
	return func(o *Options) {
		o.Selector = selector
	}
}

// WithMetrics enables Prometheus instrumentation
func WithMetrics(m *metrics.Pipeline) Option {
	return func(o *Options) {
		o.Metrics = m
	}
}

func processOptions(options ...Option) *Options {
	opts := &Options{}
	for _, option := range options {
		option(opts)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Selector == nil {
		opts.Selector = All()
	}
	return opts
}
