package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/tokencid/internal/addresser"
	"github.com/roach88/tokencid/internal/config"
	"github.com/roach88/tokencid/internal/pipeline"
	"github.com/roach88/tokencid/internal/store"
	"github.com/roach88/tokencid/internal/token"
)

// BuildOptions holds flags for the build command.
type BuildOptions struct {
	*RootOptions
	Level     int
	Start     int64
	End       int64
	Workers   int
	BatchSize int
	Addresser string
	IPFSBin   string
	IPFSPath  string
	IPFSURL   string
	Timeout   time.Duration
	Retries   int

	// AddresserOverride replaces the configured addresser (for testing).
	AddresserOverride addresser.Addresser

	// Clock replaces time.Now for elapsed time and rates (for testing).
	Clock func() time.Time

	// RunID fixes the run identifier (for testing).
	RunID string
}

// NewBuildCommand creates the build command.
func NewBuildCommand(rootOpts *RootOptions) *cobra.Command {
	return newBuildCommand(&BuildOptions{RootOptions: rootOpts})
}

// newBuildCommand binds flags to opts, keeping any test overrides set on it.
func newBuildCommand(opts *BuildOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Compute and store identifiers for a token range",
		Long: `Compute the content identifier of every token in [start, end] at one
level and store it.

Identifiers are computed by a pool of workers; a single writer stores them
in batches. Addressing failures are counted and the run continues. An end
beyond the level maximum is lowered to the maximum. On Ctrl-C, everything
already addressed is written before exiting.

Example:
  tokencid build --level 1 --start 1 --end 100000
  tokencid build --level 3 --start 1 --end 500 --addresser digest --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.Level, "level", 0, "token level (1-4, required)")
	f.Int64Var(&opts.Start, "start", 1, "first token number")
	f.Int64Var(&opts.End, "end", 0, "last token number (required)")
	f.IntVar(&opts.Workers, "workers", 0, "concurrent addressing calls (default CPUs-1)")
	f.IntVar(&opts.BatchSize, "batch-size", 0, "records per store write")
	f.StringVar(&opts.Addresser, "addresser", "", "addresser: ipfs, ipfs-http or digest")
	f.StringVar(&opts.IPFSBin, "ipfs-bin", "", "ipfs executable")
	f.StringVar(&opts.IPFSPath, "ipfs-path", "", "IPFS repository path (IPFS_PATH)")
	f.StringVar(&opts.IPFSURL, "ipfs-url", "", "Kubo RPC base URL for the ipfs-http addresser")
	f.DurationVar(&opts.Timeout, "timeout", 0, "per-item addressing timeout")
	f.IntVar(&opts.Retries, "retries", 0, "retries per item after the first attempt")
	_ = cmd.MarkFlagRequired("level")
	_ = cmd.MarkFlagRequired("end")

	return cmd
}

// applyFlags overlays explicitly set command flags on cfg.
func (o *BuildOptions) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("workers") {
		cfg.Build.Workers = o.Workers
	}
	if f.Changed("batch-size") {
		cfg.Build.BatchSize = o.BatchSize
	}
	if f.Changed("addresser") {
		cfg.Addresser.Kind = o.Addresser
	}
	if f.Changed("ipfs-bin") {
		cfg.Addresser.Bin = o.IPFSBin
	}
	if f.Changed("ipfs-path") {
		cfg.Addresser.RepoPath = o.IPFSPath
	}
	if f.Changed("ipfs-url") {
		cfg.Addresser.URL = o.IPFSURL
	}
	if f.Changed("timeout") {
		cfg.Addresser.Timeout = o.Timeout
	}
	if f.Changed("retries") {
		cfg.Addresser.Attempts = o.Retries + 1
	}
}

func runBuild(cmd *cobra.Command, opts *BuildOptions) error {
	logger := opts.newLogger(cmd.ErrOrStderr())
	out := opts.formatter(cmd)

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	opts.applyFlags(cmd, &cfg)
	if err := validate(cfg); err != nil {
		return err
	}

	addr := opts.AddresserOverride
	if addr == nil {
		addr, err = addresser.New(cfg.AddresserOptions())
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to create addresser", err)
		}
	}

	st, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore(st, logger)

	rng := token.Range{Level: token.Level(opts.Level), Start: opts.Start, End: opts.End}
	popts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithProgress(func(p pipeline.Progress) {
			fmt.Fprintf(out.GetErrWriter(), "progress: %s\n", p)
		}),
	}
	if opts.Clock != nil {
		popts = append(popts, pipeline.WithClock(opts.Clock))
	}
	if opts.RunID != "" {
		popts = append(popts, pipeline.WithRunID(opts.RunID))
	}

	b, err := pipeline.New(st, addr, rng, cfg.PipelineConfig(), popts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid build", err)
	}

	ctx, stop := signalContext(cmd, logger)
	defer stop()

	summary, runErr := b.Run(ctx)
	if errors.Is(runErr, store.ErrSchemeMismatch) {
		return WrapExitError(ExitCommandError, "database holds identifiers from another addressing scheme", runErr)
	}

	if err := out.SuccessWithRun(summary.RunID, summary); err != nil {
		return err
	}

	switch {
	case runErr == nil:
		return nil
	case errors.Is(runErr, pipeline.ErrStoreUnavailable):
		return WrapExitError(ExitFailure, "build aborted", runErr)
	case errors.Is(runErr, context.Canceled):
		return WrapExitError(ExitFailure, "build canceled", runErr)
	default:
		return WrapExitError(ExitFailure, "build failed", runErr)
	}
}
