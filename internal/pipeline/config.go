package pipeline

import (
	"fmt"
	"log/slog"
	"runtime"
	"time"
)

// Defaults applied by New to zero-valued Config fields.
const (
	DefaultBatchSize        = 5000
	DefaultFlushInterval    = time.Second
	DefaultQueueSize        = 10000
	DefaultMaxWriteFailures = 5
	DefaultProgressInterval = 5 * time.Second
)

// Config tunes a run. The token range is passed to New separately.
type Config struct {
	// Workers is the number of concurrent addressing calls.
	// Zero means DefaultWorkers().
	Workers int

	// BatchSize is the number of records per UpsertBatch call.
	BatchSize int

	// FlushInterval flushes a non-empty partial batch after this long
	// without reaching BatchSize.
	FlushInterval time.Duration

	// QueueSize bounds the results queue between workers and the writer.
	QueueSize int

	// MaxWriteFailures is the number of consecutive failed batch writes
	// after which the run aborts.
	MaxWriteFailures int

	// ProgressInterval is the minimum time between progress reports.
	ProgressInterval time.Duration
}

// DefaultWorkers is the available parallelism minus one unit reserved for
// the writer, and never less than one.
func DefaultWorkers() int {
	return max(1, runtime.NumCPU()-1)
}

func (c Config) withDefaults() Config {
	if c.Workers == 0 {
		c.Workers = DefaultWorkers()
	}
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.FlushInterval == 0 {
		c.FlushInterval = DefaultFlushInterval
	}
	if c.QueueSize == 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.MaxWriteFailures == 0 {
		c.MaxWriteFailures = DefaultMaxWriteFailures
	}
	if c.ProgressInterval == 0 {
		c.ProgressInterval = DefaultProgressInterval
	}
	return c
}

func (c Config) validate() error {
	switch {
	case c.Workers < 1:
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	case c.BatchSize < 1:
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	case c.FlushInterval < 0:
		return fmt.Errorf("flush interval must not be negative, got %s", c.FlushInterval)
	case c.QueueSize < 1:
		return fmt.Errorf("queue size must be positive, got %d", c.QueueSize)
	case c.MaxWriteFailures < 1:
		return fmt.Errorf("max write failures must be positive, got %d", c.MaxWriteFailures)
	}
	return nil
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		b.logger = l
	}
}

// WithProgress registers fn to receive progress reports. fn is called from
// the writer goroutine and must not block.
func WithProgress(fn func(Progress)) Option {
	return func(b *Builder) {
		b.onProgress = fn
	}
}

// WithClock replaces time.Now for elapsed-time, rate and ETA computation.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		b.now = now
	}
}

// WithRunID fixes the run identifier instead of generating one.
func WithRunID(id string) Option {
	return func(b *Builder) {
		b.runID = id
	}
}
