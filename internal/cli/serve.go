package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/mileusna/crontab"
	"github.com/spf13/cobra"

	"github.com/roach88/tokencid/internal/config"
	"github.com/roach88/tokencid/internal/httpapi"
	"github.com/roach88/tokencid/internal/lookup"
	"github.com/roach88/tokencid/internal/store"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr          string
	MaxBatch      int
	Timeout       time.Duration
	CacheSize     int
	RedisURL      string
	StatsSchedule string

	// Listener replaces listening on Addr (for testing).
	Listener net.Listener
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return newServeCommand(&ServeOptions{RootOptions: rootOpts})
}

// newServeCommand binds flags to opts, keeping any test overrides set on it.
func newServeCommand(opts *ServeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve identifier lookups over HTTP",
		Long: `Serve the lookup API:

  GET  /token/{identifier}
  POST /tokens/batch   {"identifiers": [...]}
  GET  /health

Found records are cached in process (LRU) and, with --redis-url, in Redis.
Misses are never cached. Store counts and cache hit rates are logged on
the stats schedule.

Example:
  tokencid serve --db ./cid_tokens.db --addr :8000
  tokencid serve --redis-url redis://localhost:6379/0 --cache-size 50000`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.Addr, "addr", "", "listen address (default :8000, or :$PORT)")
	f.IntVar(&opts.MaxBatch, "max-batch", 0, "largest accepted batch request")
	f.DurationVar(&opts.Timeout, "timeout", 0, "store access timeout per request")
	f.IntVar(&opts.CacheSize, "cache-size", 0, "in-process cache capacity (0 disables)")
	f.StringVar(&opts.RedisURL, "redis-url", "", "shared Redis cache URL")
	f.StringVar(&opts.StatsSchedule, "stats-schedule", "", `crontab schedule for stats logging ("" disables)`)

	return cmd
}

func (o *ServeOptions) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("addr") {
		cfg.Serve.Addr = o.Addr
	}
	if f.Changed("max-batch") {
		cfg.Serve.MaxBatch = o.MaxBatch
	}
	if f.Changed("timeout") {
		cfg.Serve.Timeout = o.Timeout
	}
	if f.Changed("cache-size") {
		cfg.Cache.Size = o.CacheSize
	}
	if f.Changed("redis-url") {
		cfg.Cache.RedisURL = o.RedisURL
	}
	if f.Changed("stats-schedule") {
		cfg.Serve.StatsSchedule = o.StatsSchedule
	}
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	logger := opts.newLogger(cmd.ErrOrStderr())
	slog.SetDefault(logger)

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	opts.applyFlags(cmd, &cfg)
	if err := validate(cfg); err != nil {
		return err
	}

	st, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore(st, logger)

	ctx, stop := signalContext(cmd, logger)
	defer stop()

	cache, closeCache, err := buildCache(ctx, cfg.Cache, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	svc := lookup.New(st, cache, cfg.LookupConfig(), logger)

	if cfg.Serve.StatsSchedule != "" {
		ctab := crontab.New()
		defer ctab.Shutdown()
		if err := ctab.AddJob(cfg.Serve.StatsSchedule, func() {
			logStats(ctx, st, svc, logger)
		}); err != nil {
			return WrapExitError(ExitCommandError, "invalid stats schedule", err)
		}
	}

	srv := httpapi.NewServer(svc, logger)
	if opts.Listener != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Serving on %s\n", opts.Listener.Addr())
		err = srv.Serve(ctx, opts.Listener)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Serving on %s\n", cfg.Serve.Addr)
		err = srv.ListenAndServe(ctx, cfg.Serve.Addr)
	}
	if err != nil {
		return WrapExitError(ExitFailure, "server error", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}

// buildCache assembles the configured cache tiers. A nil Cache disables
// caching. The returned func releases the Redis client, if any.
func buildCache(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) (lookup.Cache, func(), error) {
	var l1 lookup.Cache
	if cfg.Size > 0 {
		lru, err := lookup.NewLRUCache(cfg.Size)
		if err != nil {
			return nil, nil, WrapExitError(ExitCommandError, "failed to create cache", err)
		}
		l1 = lru
	}

	if cfg.RedisURL == "" {
		return l1, func() {}, nil
	}

	rc, err := lookup.NewRedisCache(cfg.RedisURL, cfg.RedisTTL, logger)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to create redis cache", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx); err != nil {
		logger.Warn("redis unreachable, continuing", "error", err)
	}
	closeFn := func() {
		if err := rc.Close(); err != nil {
			logger.Error("error closing redis client", "error", err)
		}
	}

	if l1 == nil {
		return rc, closeFn, nil
	}
	return lookup.TieredCache{L1: l1, L2: rc}, closeFn, nil
}

func logStats(ctx context.Context, st *store.Store, svc *lookup.Service, logger *slog.Logger) {
	stats, err := collectStats(ctx, st)
	if err != nil {
		logger.Error("stats failed", "error", err)
		return
	}
	cs := svc.Stats()
	attrs := []any{
		"total", stats.Total,
		"cache_hits", cs.Hits,
		"cache_misses", cs.Misses,
	}
	for _, lc := range stats.Levels {
		attrs = append(attrs, fmt.Sprintf("level_%d", int(lc.Level)), lc.Count)
	}
	logger.Info("store stats", attrs...)
}
