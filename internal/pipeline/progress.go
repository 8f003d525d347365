package pipeline

import (
	"io"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/roach88/tokencid/internal/token"
)

// Progress is a point-in-time view of a running build.
type Progress struct {
	Total     int64
	Processed int64
	Succeeded int64
	Failed    int64
	Written   int64
	Elapsed   time.Duration
	Rate      float64 // processed items per second
	Percent   float64
	ETA       time.Duration // zero until a rate is known
}

func newProgress(total int64, c counters, elapsed time.Duration) Progress {
	p := Progress{
		Total:     total,
		Processed: c.processed,
		Succeeded: c.succeeded,
		Failed:    c.failed,
		Written:   c.written,
		Elapsed:   elapsed,
	}
	if total > 0 {
		p.Percent = float64(c.processed) / float64(total) * 100
	}
	if secs := elapsed.Seconds(); secs > 0 {
		p.Rate = float64(c.processed) / secs
	}
	if p.Rate > 0 {
		remaining := float64(total - c.processed)
		p.ETA = time.Duration(remaining / p.Rate * float64(time.Second)).Round(time.Second)
	}
	return p
}

// String renders p as a single human-readable line.
func (p Progress) String() string {
	return printer().Sprintf("%d/%d (%.1f%%) | %.1f tokens/s | ok %d | failed %d | written %d | eta %s",
		p.Processed, p.Total, p.Percent, p.Rate, p.Succeeded, p.Failed, p.Written, p.ETA)
}

// Summary is the outcome of a run. Run returns one even when it fails.
type Summary struct {
	RunID       string        `json:"run_id"`
	Range       token.Range   `json:"range"`
	Clamped     bool          `json:"clamped"` // End was lowered to the level maximum
	Scheme      string        `json:"scheme"`
	Processed   int64         `json:"processed"`
	Succeeded   int64         `json:"succeeded"`
	Failed      int64         `json:"failed"`
	Written     int64         `json:"written"`
	WriteFailed int64         `json:"write_failed"`
	Batches     int           `json:"batches"`
	Elapsed     time.Duration `json:"elapsed_ns"`
	Rate        float64       `json:"rate"`
	Canceled    bool          `json:"canceled"`
	Aborted     bool          `json:"aborted"`
}

// WriteText writes the human-readable run report.
func (s Summary) WriteText(w io.Writer) error {
	p := printer()
	status := "complete"
	switch {
	case s.Aborted:
		status = "aborted"
	case s.Canceled:
		status = "canceled"
	}
	_, err := p.Fprintf(w,
		"Build %s\n"+
			"  run:          %s\n"+
			"  level:        %d\n"+
			"  range:        %d-%d\n"+
			"  scheme:       %s\n"+
			"  processed:    %d\n"+
			"  succeeded:    %d\n"+
			"  failed:       %d\n"+
			"  written:      %d\n"+
			"  write failed: %d\n"+
			"  batches:      %d\n"+
			"  elapsed:      %s\n"+
			"  rate:         %.1f tokens/s\n",
		status, s.RunID, int(s.Range.Level), s.Range.Start, s.Range.End, s.Scheme,
		s.Processed, s.Succeeded, s.Failed, s.Written, s.WriteFailed, s.Batches,
		s.Elapsed.Round(time.Millisecond), s.Rate)
	return err
}

func printer() *message.Printer {
	return message.NewPrinter(language.English)
}
