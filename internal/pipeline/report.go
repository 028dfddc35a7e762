package pipeline

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/couchcryptid/profile-tile-etl/internal/domain"
)

// Reporter emits cumulative run statistics. Write failures are logged and
// never propagated.
type Reporter struct {
	w      io.Writer
	logger *slog.Logger
}

// NewReporter creates a Reporter writing to w. A nil w only logs.
func NewReporter(w io.Writer, logger *slog.Logger) *Reporter {
	return &Reporter{w: w, logger: logger}
}

// Report logs a summary of s and writes the full listing to the writer.
func (r *Reporter) Report(label string, s *domain.RunStatistics) {
	r.logger.Info("run statistics",
		"label", label,
		"profiles_accepted", s.ProfilesAccepted,
		"profiles_empty", s.ProfilesEmpty,
		"bad_station", s.Station.Bad,
		"bad_position", s.Position.Bad,
		"bad_time", s.Time.Bad,
		"exceptions", s.Exceptions,
		"archive_errors", s.ArchiveErrors,
		"rows_written", s.RowsWritten,
		"tiles_written", s.TilesWritten,
	)
	if r.w == nil {
		return
	}
	if _, err := io.WriteString(r.w, FormatReport(label, s)); err != nil {
		r.logger.Warn("write statistics report failed", "label", label, "error", err)
	}
}

// FormatReport renders s as a human-readable listing of counters and
// impossible-value diagnostics.
func FormatReport(label string, s *domain.RunStatistics) string {
	var b strings.Builder
	fmt.Fprintf(&b, "=== Statistics: %s ===\n", label)

	fmt.Fprintf(&b, "%-14s %14s %14s\n", "category", "good", "bad")
	for _, c := range []struct {
		name string
		c    domain.Counter
	}{
		{"station", s.Station},
		{"position", s.Position},
		{"time", s.Time},
		{"depth", s.Depth},
		{"temperature", s.Temperature},
		{"salinity", s.Salinity},
	} {
		fmt.Fprintf(&b, "%-14s %14s %14s\n", c.name, humanize.Comma(c.c.Good), humanize.Comma(c.c.Bad))
	}

	line := func(name string, v int64) {
		fmt.Fprintf(&b, "%-24s %14s\n", name, humanize.Comma(v))
	}
	line("profiles accepted", s.ProfilesAccepted)
	line("profiles without data", s.ProfilesEmpty)
	line("exceptions", s.Exceptions)
	line("archive errors", s.ArchiveErrors)
	line("missing stream ident", s.MissingStreamIdent)
	line("missing platform", s.MissingPlatform)
	line("missing cruise", s.MissingCruise)
	line("rows written", s.RowsWritten)
	line("tiles written", s.TilesWritten)

	b.WriteString("impossible values:\n")
	for _, q := range domain.Quantities {
		ex := s.Impossible(q)
		writeDiagnostics(&b, q.String()+" below min", ex.BelowMin)
		writeDiagnostics(&b, q.String()+" above max", ex.AboveMax)
	}
	return b.String()
}

func writeDiagnostics(b *strings.Builder, title string, ds []domain.Diagnostic) {
	fmt.Fprintf(b, "  %s: %d\n", title, len(ds))
	for _, d := range ds {
		fmt.Fprintf(b, "    %s %s\n", d.Source, strconv.FormatFloat(d.Value, 'g', -1, 64))
	}
}
