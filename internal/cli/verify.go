package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/roach88/tokencid/internal/addresser"
	"github.com/roach88/tokencid/internal/token"
)

// verifyChunk is the number of tokens read per range query.
const verifyChunk = 10000

// maxReported caps the numbers listed per problem kind.
const maxReported = 20

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Level     int
	Start     int64
	End       int64
	Readdress bool

	// AddresserOverride replaces the configured addresser (for testing).
	AddresserOverride addresser.Addresser
}

// VerifyReport is the outcome of checking a range against the store.
type VerifyReport struct {
	Range      token.Range `json:"range"`
	Checked    int64       `json:"checked"`
	OK         int64       `json:"ok"`
	Missing    int64       `json:"missing"`
	Mismatched int64       `json:"mismatched"`
	Readdress  bool        `json:"readdress"`

	// First few affected token numbers of each kind.
	MissingNumbers    []int64 `json:"missing_numbers"`
	MismatchedNumbers []int64 `json:"mismatched_numbers"`
}

// Clean reports whether every token in the range is stored correctly.
func (r VerifyReport) Clean() bool {
	return r.Missing == 0 && r.Mismatched == 0
}

func (r VerifyReport) WriteText(w io.Writer) error {
	p := message.NewPrinter(language.English)
	status := "OK"
	if !r.Clean() {
		status = "FAILED"
	}
	_, err := p.Fprintf(w,
		"Verify %s\n"+
			"  level:      %d\n"+
			"  range:      %d-%d\n"+
			"  checked:    %d\n"+
			"  ok:         %d\n"+
			"  missing:    %d\n"+
			"  mismatched: %d\n",
		status, int(r.Range.Level), r.Range.Start, r.Range.End,
		r.Checked, r.OK, r.Missing, r.Mismatched)
	if err != nil {
		return err
	}
	if len(r.MissingNumbers) > 0 {
		if _, err := fmt.Fprintf(w, "  first missing:    %v\n", r.MissingNumbers); err != nil {
			return err
		}
	}
	if len(r.MismatchedNumbers) > 0 {
		if _, err := fmt.Fprintf(w, "  first mismatched: %v\n", r.MismatchedNumbers); err != nil {
			return err
		}
	}
	return nil
}

func (r *VerifyReport) missing(n int64) {
	r.Missing++
	if len(r.MissingNumbers) < maxReported {
		r.MissingNumbers = append(r.MissingNumbers, n)
	}
}

func (r *VerifyReport) mismatched(n int64) {
	r.Mismatched++
	if len(r.MismatchedNumbers) < maxReported {
		r.MismatchedNumbers = append(r.MismatchedNumbers, n)
	}
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	return newVerifyCommand(&VerifyOptions{RootOptions: rootOpts})
}

// newVerifyCommand binds flags to opts, keeping any test overrides set on it.
func newVerifyCommand(opts *VerifyOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check stored records against re-derived content",
		Long: `Check that every token in [start, end] at one level is stored with the
content it derives to. With --readdress, also recompute each identifier
with the configured addresser and compare.

Exits 1 if any token is missing or differs.

Example:
  tokencid verify --level 3 --start 1 --end 500
  tokencid verify --level 1 --end 1000 --readdress --config tokencid.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.Level, "level", 0, "token level (1-4, required)")
	f.Int64Var(&opts.Start, "start", 1, "first token number")
	f.Int64Var(&opts.End, "end", 0, "last token number (required)")
	f.BoolVar(&opts.Readdress, "readdress", false, "recompute identifiers with the addresser")
	_ = cmd.MarkFlagRequired("level")
	_ = cmd.MarkFlagRequired("end")

	return cmd
}

func runVerify(cmd *cobra.Command, opts *VerifyOptions) error {
	rng, _, err := token.Range{Level: token.Level(opts.Level), Start: opts.Start, End: opts.End}.Normalize()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid range", err)
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

	var addr addresser.Addresser
	if opts.Readdress {
		addr = opts.AddresserOverride
		if addr == nil {
			if addr, err = addresser.New(cfg.AddresserOptions()); err != nil {
				return WrapExitError(ExitCommandError, "failed to create addresser", err)
			}
		}
	}

	st, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore(st, logger)

	ctx := cmd.Context()
	report := VerifyReport{Range: rng, Readdress: opts.Readdress}
	for lo := rng.Start; lo <= rng.End; lo += verifyChunk {
		hi := min(lo+verifyChunk-1, rng.End)
		rows, err := st.TokenRange(ctx, rng.Level, lo, hi)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to read range", err)
		}
		for n := lo; n <= hi; n++ {
			report.Checked++
			rec, ok := rows[n]
			if !ok {
				report.missing(n)
				continue
			}
			content := token.Content(rng.Level, n)
			if rec.Content != content {
				report.mismatched(n)
				continue
			}
			if addr != nil {
				id, err := addr.Address(ctx, []byte(content))
				if err != nil {
					return WrapExitError(ExitFailure, "addressing failed", err)
				}
				if id != rec.Identifier {
					report.mismatched(n)
					continue
				}
			}
			report.OK++
		}
		out.VerboseLog("verified %d-%d: %d missing, %d mismatched so far", lo, hi, report.Missing, report.Mismatched)
	}

	if err := out.Success(report); err != nil {
		return err
	}
	if !report.Clean() {
		return NewExitError(ExitFailure, "verification failed")
	}
	return nil
}
