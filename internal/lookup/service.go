package lookup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/roach88/tokencid/internal/token"
)

// Reader is the read side of the store.
type Reader interface {
	Get(ctx context.Context, identifier string) (token.Record, error)
	GetMany(ctx context.Context, identifiers []string) (map[string]token.Record, error)
}

// Defaults applied by New to zero-valued Config fields.
const (
	DefaultMaxBatch = 10000
	DefaultTimeout  = 5 * time.Second
)

// Config bounds requests.
type Config struct {
	// MaxBatch is the largest accepted batch, counted before dedup.
	MaxBatch int

	// Timeout bounds each store access.
	Timeout time.Duration
}

// Service resolves identifiers. It is safe for concurrent use.
type Service struct {
	r      Reader
	cache  Cache
	cfg    Config
	logger *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// New returns a Service reading from r through cache. A nil cache
// disables caching.
func New(r Reader, cache Cache, cfg Config, logger *slog.Logger) *Service {
	if cache == nil {
		cache = NoopCache{}
	}
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = DefaultMaxBatch
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{r: r, cache: cache, cfg: cfg, logger: logger}
}

// MaxBatch returns the configured batch limit.
func (s *Service) MaxBatch() int {
	return s.cfg.MaxBatch
}

// Get returns the record for identifier. Errors are ErrNotFound,
// ErrTimeout, or a store read error.
func (s *Service) Get(ctx context.Context, identifier string) (token.Record, error) {
	if identifier == "" {
		return token.Record{}, &ValidationError{Field: "identifier", Message: "must not be empty"}
	}

	if rec, ok := s.cache.Get(ctx, identifier); ok {
		s.hits.Add(1)
		return rec, nil
	}
	s.misses.Add(1)

	rec, err := withTimeout(ctx, s.cfg.Timeout, func(ctx context.Context) (token.Record, error) {
		return s.r.Get(ctx, identifier)
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Error("lookup failed", "identifier", identifier, "error", err)
		}
		return token.Record{}, err
	}

	s.cache.Set(ctx, rec)
	return rec, nil
}

// BatchResult partitions a batch request. Totals count the request as
// sent; Results and NotFound hold each distinct identifier once.
type BatchResult struct {
	Results        map[string]token.Record `json:"results"`
	NotFound       []string                `json:"not_found"`
	TotalRequested int                     `json:"total_requested"`
	TotalFound     int                     `json:"total_found"`
	TotalNotFound  int                     `json:"total_not_found"`
}

// Batch resolves identifiers with a single store read. Requests above
// MaxBatch fail with a ValidationError without touching the store.
func (s *Service) Batch(ctx context.Context, identifiers []string) (BatchResult, error) {
	if len(identifiers) > s.cfg.MaxBatch {
		return BatchResult{}, &ValidationError{
			Field:   "identifiers",
			Message: fmt.Sprintf("batch of %d exceeds maximum of %d", len(identifiers), s.cfg.MaxBatch),
		}
	}

	out := BatchResult{
		Results:        map[string]token.Record{},
		NotFound:       []string{},
		TotalRequested: len(identifiers),
	}
	if len(identifiers) == 0 {
		return out, nil
	}

	unique := dedupe(identifiers)
	found, err := withTimeout(ctx, s.cfg.Timeout, func(ctx context.Context) (map[string]token.Record, error) {
		return s.r.GetMany(ctx, unique)
	})
	if err != nil {
		s.logger.Error("batch lookup failed", "identifiers", len(unique), "error", err)
		return BatchResult{}, err
	}

	for _, id := range unique {
		if rec, ok := found[id]; ok {
			out.Results[id] = rec
		} else {
			out.NotFound = append(out.NotFound, id)
		}
	}
	out.TotalFound = len(out.Results)
	out.TotalNotFound = len(out.NotFound)
	return out, nil
}

// Stats counts point lookups served from cache and from the store.
type Stats struct {
	Hits   int64 `json:"cache_hits"`
	Misses int64 `json:"cache_misses"`
}

// Stats returns the counters since the service started.
func (s *Service) Stats() Stats {
	return Stats{Hits: s.hits.Load(), Misses: s.misses.Load()}
}

// dedupe drops repeated identifiers, keeping first-seen order.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// withTimeout runs fn with a deadline and returns at the deadline even if
// fn ignores its context.
func withTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type outcome struct {
		v   T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := fn(ctx)
		done <- outcome{v, err}
	}()

	var zero T
	select {
	case o := <-done:
		if o.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("%w after %s: %v", ErrTimeout, d, o.err)
		}
		return o.v, o.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("%w after %s", ErrTimeout, d)
		}
		return zero, ctx.Err()
	}
}
