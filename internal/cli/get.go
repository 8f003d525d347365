package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/tokencid/internal/lookup"
	"github.com/roach88/tokencid/internal/store"
	"github.com/roach88/tokencid/internal/token"
)

// GetOptions holds flags for the get command.
type GetOptions struct {
	*RootOptions
	Level  int
	Number int64
}

// getResult lists the records found by one get.
type getResult struct {
	Records []token.Record `json:"records"`
}

func (r getResult) WriteText(w io.Writer) error {
	for i, rec := range r.Records {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if _, err := fmt.Fprintf(w, "identifier: %s\ncontent:    %s\nlevel:      %d\nnumber:     %d\n",
			rec.Identifier, rec.Content, int(rec.Level), rec.Number); err != nil {
			return err
		}
	}
	return nil
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "get [identifier]",
		Short: "Look up a stored record",
		Long: `Look up a stored record by identifier, or by token with --level and
--number.

Example:
  tokencid get QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG
  tokencid get --level 3 --number 42`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd, opts, args)
		},
	}

	cmd.Flags().IntVar(&opts.Level, "level", 0, "token level (with --number)")
	cmd.Flags().Int64Var(&opts.Number, "number", 0, "token number (with --level)")
	cmd.MarkFlagsRequiredTogether("level", "number")

	return cmd
}

func runGet(cmd *cobra.Command, opts *GetOptions, args []string) error {
	byToken := cmd.Flags().Changed("level")
	if byToken == (len(args) == 1) {
		return NewExitError(ExitCommandError, "give either an identifier or --level and --number")
	}
	if byToken {
		if err := token.Validate(token.Level(opts.Level), opts.Number); err != nil {
			return WrapExitError(ExitCommandError, "invalid token", err)
		}
	}

	logger := opts.newLogger(cmd.ErrOrStderr())
	out := opts.formatter(cmd)

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if err := validate(cfg); err != nil {
		return err
	}
	st, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore(st, logger)

	ctx := cmd.Context()
	var (
		recs []token.Record
		key  string
	)
	if byToken {
		key = fmt.Sprintf("level %d number %d", opts.Level, opts.Number)
		recs, err = st.GetByToken(ctx, token.Level(opts.Level), opts.Number)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return WrapExitError(ExitFailure, "lookup failed", err)
		}
	} else {
		key = args[0]
		svc := lookup.New(st, nil, cfg.LookupConfig(), logger)
		rec, err := svc.Get(ctx, key)
		switch {
		case errors.Is(err, lookup.ErrNotFound):
		case lookup.IsValidation(err):
			return WrapExitError(ExitCommandError, "invalid identifier", err)
		case err != nil:
			return WrapExitError(ExitFailure, "lookup failed", err)
		default:
			recs = []token.Record{rec}
		}
	}

	if len(recs) == 0 {
		msg := "no record for " + key
		if err := out.Error(CodeNotFound, msg, nil); err != nil {
			return err
		}
		return NewExitError(ExitFailure, msg)
	}
	return out.Success(getResult{Records: recs})
}
