package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/tokencid/internal/config"
	"github.com/roach88/tokencid/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	Database   string

	// Getenv replaces os.Getenv when loading configuration (for testing).
	Getenv func(string) string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the tokencid CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "tokencid",
		Short: "tokencid - content-addressed token cache",
		Long: `Build and serve a content-addressed lookup cache for synthetic tokens.

Each token (level, number) has deterministic content. "build" computes a
content identifier for every token in a range and stores it; "serve"
answers identifier lookups over HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")

	cmd.AddCommand(NewBuildCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// loadConfig merges defaults, the config file, the environment and the
// global flags. Command flags are applied by the caller before validate.
func (o *RootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.ConfigPath, o.Getenv)
	if err != nil {
		return cfg, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if o.Database != "" {
		cfg.Store.Path = o.Database
	}
	return cfg, nil
}

func validate(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	return nil
}

// newLogger returns a text logger on w, at debug level when verbose.
func (o *RootOptions) newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// openStore opens the configured database. The caller closes it with
// closeStore.
func openStore(cfg config.Config, logger *slog.Logger) (*store.Store, error) {
	logger.Debug("opening database", "path", cfg.Store.Path)
	st, err := store.Open(cfg.Store.Path, store.Options{ReadConns: cfg.Store.ReadConns, Logger: logger})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func closeStore(st *store.Store, logger *slog.Logger) {
	if err := st.Close(); err != nil {
		logger.Error("error closing database", "error", err)
	}
}
