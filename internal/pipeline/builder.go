package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/tokencid/internal/addresser"
	"github.com/roach88/tokencid/internal/token"
)

// BatchWriter is the write side of the store used by the writer goroutine.
type BatchWriter interface {
	UpsertBatch(ctx context.Context, recs []token.Record) (int, error)
}

// schemeClaimer is implemented by stores that pin an addressing scheme.
type schemeClaimer interface {
	ClaimScheme(ctx context.Context, scheme string) error
}

// Builder runs one build over a token range.
//
// Thread-safety model:
//   - Run(): must be called once, from one goroutine
//   - State(): safe from any goroutine
type Builder struct {
	w       BatchWriter
	addr    addresser.Addresser
	cfg     Config
	rng     token.Range
	clamped bool

	logger     *slog.Logger
	onProgress func(Progress)
	now        func() time.Time
	runID      string

	state atomic.Int32
}

// result is one worker outcome on its way to the writer.
type result struct {
	rec token.Record
	err error
}

// New validates rng and cfg and returns a Builder ready to Run. An End
// above the level maximum is clamped; see Summary.Clamped.
func New(w BatchWriter, addr addresser.Addresser, rng token.Range, cfg Config, opts ...Option) (*Builder, error) {
	if w == nil {
		return nil, errors.New("pipeline: nil writer")
	}
	if addr == nil {
		return nil, errors.New("pipeline: nil addresser")
	}

	norm, clamped, err := rng.Normalize()
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	b := &Builder{
		w:       w,
		addr:    addr,
		cfg:     cfg,
		rng:     norm,
		clamped: clamped,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	if b.runID == "" {
		b.runID = newRunID()
	}
	return b, nil
}

func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// State returns the current lifecycle state.
func (b *Builder) State() State {
	return State(b.state.Load())
}

// Range returns the normalized range the builder will run.
func (b *Builder) Range() token.Range {
	return b.rng
}

func (b *Builder) setState(s State) {
	b.state.Store(int32(s))
	b.logger.Debug("build state", "run_id", b.runID, "state", s.String())
}

// Run builds every token in the range and returns the run summary.
//
// The returned error is nil when the whole range was attempted, even if
// some items failed; those are counted in the summary. It is ctx's error
// when the run was canceled (after flushing everything already
// addressed), ErrStoreUnavailable when writes kept failing, and
// store.ErrSchemeMismatch when the store holds another scheme.
func (b *Builder) Run(ctx context.Context) (Summary, error) {
	if !b.state.CompareAndSwap(int32(StateIdle), int32(StateEnumerating)) {
		return Summary{}, ErrAlreadyRun
	}

	start := b.now()
	summary := Summary{
		RunID:   b.runID,
		Range:   b.rng,
		Clamped: b.clamped,
		Scheme:  b.addr.Scheme(),
	}
	log := b.logger.With("run_id", b.runID, "level", int(b.rng.Level))

	if claimer, ok := b.w.(schemeClaimer); ok {
		if err := claimer.ClaimScheme(ctx, b.addr.Scheme()); err != nil {
			b.setState(StateDone)
			return summary, fmt.Errorf("pipeline: %w", err)
		}
	}

	if b.clamped {
		log.Warn("end clamped to level maximum", "end", b.rng.End)
	}
	log.Info("build starting",
		"start", b.rng.Start,
		"end", b.rng.End,
		"total", b.rng.Len(),
		"workers", b.cfg.Workers,
		"batch_size", b.cfg.BatchSize,
		"scheme", b.addr.Scheme(),
	)

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	numbers := make(chan int64, b.cfg.Workers*2)
	results := make(chan result, b.cfg.QueueSize)

	wr := &writer{
		b:      b,
		log:    log,
		cancel: cancel,
		start:  start,
	}
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		wr.run(ctx, results)
	}()

	var g errgroup.Group

	var workersDone atomic.Int32
	for i := 0; i < b.cfg.Workers; i++ {
		g.Go(func() error {
			defer func() {
				if workersDone.Add(1) == int32(b.cfg.Workers) {
					b.setState(StateFlushing)
				}
			}()
			for n := range numbers {
				res, ok := b.address(runCtx, n, log)
				if !ok {
					continue
				}
				results <- res
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(numbers)
		defer b.setState(StateDraining)
		for n := b.rng.Start; n <= b.rng.End; n++ {
			select {
			case numbers <- n:
			case <-runCtx.Done():
				return nil
			}
		}
		return nil
	})

	_ = g.Wait() // goroutines never return errors
	close(results)
	<-writerDone

	wr.fill(&summary)
	summary.Elapsed = b.now().Sub(start)
	if secs := summary.Elapsed.Seconds(); secs > 0 {
		summary.Rate = float64(summary.Processed) / secs
	}
	b.setState(StateDone)

	var err error
	switch {
	case wr.aborted:
		summary.Aborted = true
		err = ErrStoreUnavailable
	case ctx.Err() != nil:
		summary.Canceled = true
		err = ctx.Err()
	}

	log.Info("build finished",
		"processed", summary.Processed,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"written", summary.Written,
		"write_failed", summary.WriteFailed,
		"elapsed", summary.Elapsed,
		"canceled", summary.Canceled,
		"aborted", summary.Aborted,
	)
	return summary, err
}

// address computes the identifier for number n. ok is false when the item
// was abandoned because the run is shutting down; such items are neither
// processed nor failed.
func (b *Builder) address(ctx context.Context, n int64, log *slog.Logger) (result, bool) {
	level := b.rng.Level
	content := token.Content(level, n)

	id, err := b.addr.Address(ctx, []byte(content))
	if err != nil {
		if ctx.Err() != nil {
			return result{}, false
		}
		log.Warn("addressing failed",
			"number", n,
			"kind", string(addresser.KindOf(err)),
			"error", err,
		)
		return result{rec: token.Record{Level: level, Number: n}, err: err}, true
	}
	return result{rec: token.Record{Identifier: id, Content: content, Level: level, Number: n}}, true
}
