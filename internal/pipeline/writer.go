package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/tokencid/internal/token"
)

type counters struct {
	processed int64
	succeeded int64
	failed    int64
	written   int64
}

// writer is the only goroutine that touches the store during a run.
// Its fields are owned by run() until results is closed.
type writer struct {
	b      *Builder
	log    *slog.Logger
	cancel context.CancelCauseFunc
	start  time.Time

	pending      []token.Record
	counters     counters
	writeFailed  int64
	batches      int
	consecutive  int
	aborted      bool
	lastProgress time.Time
}

// run consumes results until the channel is closed. It keeps draining
// after an abort so that workers never block on a full queue.
func (w *writer) run(ctx context.Context, results <-chan result) {
	cfg := w.b.cfg
	w.pending = make([]token.Record, 0, cfg.BatchSize)
	w.lastProgress = w.start

	// Flushes outlive cancellation of the run.
	flushCtx := context.WithoutCancel(ctx)

	var tick <-chan time.Time
	if cfg.FlushInterval > 0 {
		ticker := time.NewTicker(cfg.FlushInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case r, ok := <-results:
			if !ok {
				w.flush(flushCtx)
				w.report(true)
				return
			}
			w.accept(r)
			if len(w.pending) >= cfg.BatchSize {
				w.flush(flushCtx)
			}
			w.report(false)

		case <-tick:
			w.flush(flushCtx)
			w.report(false)
		}
	}
}

func (w *writer) accept(r result) {
	w.counters.processed++
	if r.err != nil {
		w.counters.failed++
		return
	}
	w.counters.succeeded++
	if w.aborted {
		w.writeFailed++
		return
	}
	w.pending = append(w.pending, r.rec)
}

func (w *writer) flush(ctx context.Context) {
	if len(w.pending) == 0 || w.aborted {
		return
	}
	batch := w.pending
	n, err := w.b.w.UpsertBatch(ctx, batch)
	w.batches++
	w.pending = make([]token.Record, 0, w.b.cfg.BatchSize)

	if err != nil {
		w.writeFailed += int64(len(batch))
		w.consecutive++
		w.log.Error("batch write failed",
			"records", len(batch),
			"consecutive_failures", w.consecutive,
			"error", err,
		)
		if w.consecutive >= w.b.cfg.MaxWriteFailures {
			w.aborted = true
			w.log.Error("aborting build: store unavailable", "consecutive_failures", w.consecutive)
			w.cancel(ErrStoreUnavailable)
		}
		return
	}

	w.consecutive = 0
	w.counters.written += int64(n)
	w.log.Debug("batch written", "records", n, "total_written", w.counters.written)
}

// report emits progress at most once per ProgressInterval, and always
// when final is set.
func (w *writer) report(final bool) {
	now := w.b.now()
	if !final && now.Sub(w.lastProgress) < w.b.cfg.ProgressInterval {
		return
	}
	w.lastProgress = now

	p := newProgress(w.b.rng.Len(), w.counters, now.Sub(w.start))
	if w.b.onProgress != nil {
		w.b.onProgress(p)
		return
	}
	w.log.Info("build progress",
		"processed", p.Processed,
		"total", p.Total,
		"percent", p.Percent,
		"rate", p.Rate,
		"failed", p.Failed,
		"eta", p.ETA,
	)
}

func (w *writer) fill(s *Summary) {
	s.Processed = w.counters.processed
	s.Succeeded = w.counters.succeeded
	s.Failed = w.counters.failed
	s.Written = w.counters.written
	s.WriteFailed = w.writeFailed
	s.Batches = w.batches
}
