package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/roach88/tokencid/internal/store"
	"github.com/roach88/tokencid/internal/token"
)

// StoreStats reports how much of the token space is stored.
type StoreStats struct {
	Path   string       `json:"path"`
	Scheme string       `json:"scheme"`
	Total  int64        `json:"total"`
	Levels []LevelCount `json:"levels"`
}

// LevelCount is the stored row count for one level.
type LevelCount struct {
	Level token.Level `json:"level"`
	Count int64       `json:"count"`
	Max   int64       `json:"max"`
}

// WriteText writes one line per level with its coverage.
func (s StoreStats) WriteText(w io.Writer) error {
	p := message.NewPrinter(language.English)
	scheme := s.Scheme
	if scheme == "" {
		scheme = "(none)"
	}
	if _, err := p.Fprintf(w, "database: %s\nscheme:   %s\ntotal:    %d\n", s.Path, scheme, s.Total); err != nil {
		return err
	}
	for _, lc := range s.Levels {
		pct := 0.0
		if lc.Max > 0 {
			pct = float64(lc.Count) / float64(lc.Max) * 100
		}
		if _, err := p.Fprintf(w, "  level %d: %d / %d (%.2f%%)\n", int(lc.Level), lc.Count, lc.Max, pct); err != nil {
			return err
		}
	}
	return nil
}

func collectStats(ctx context.Context, st *store.Store) (StoreStats, error) {
	scheme, err := st.Scheme(ctx)
	if err != nil {
		return StoreStats{}, err
	}
	byLevel, err := st.CountByLevel(ctx)
	if err != nil {
		return StoreStats{}, err
	}
	total, err := st.Count(ctx)
	if err != nil {
		return StoreStats{}, err
	}

	out := StoreStats{Path: st.Path(), Scheme: scheme, Total: total}
	for _, l := range token.Levels() {
		out.Levels = append(out.Levels, LevelCount{Level: l, Count: byLevel[l], Max: l.MaxNumber()})
	}
	return out, nil
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show stored record counts per level",
		Long: `Show the total number of stored records, the count per level against
the level maximum, and the addressing scheme recorded by the first build.

Example:
  tokencid stats --db ./cid_tokens.db
  tokencid stats --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := rootOpts.newLogger(cmd.ErrOrStderr())
			cfg, err := rootOpts.loadConfig()
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

			stats, err := collectStats(cmd.Context(), st)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to read stats", err)
			}
			return rootOpts.formatter(cmd).Success(stats)
		},
	}
}
