package pipeline

import (
	"log/slog"

	"github.com/couchcryptid/hydrawise-flowmeter-etl/internal/domain"
)

// Summary counts what happened to a report during one run.
type Summary struct {
	Zones         int
	RowsEmitted   int
	RowsInserted  int
	RowsDuplicate int
	RowsFailed    int
	Diagnostics   map[domain.Kind]int
}

func newSummary() Summary {
	return Summary{Diagnostics: make(map[domain.Kind]int)}
}

// Rejected returns the number of zones and datapoints that were skipped.
// Soft diagnostics are not counted since their rows were kept.
func (s Summary) Rejected() int {
	n := 0
	for kind, count := range s.Diagnostics {
		if kind != domain.KindRuntimeUnparsable {
			n += count
		}
	}
	return n
}

// LogValue renders the summary as a slog group, listing only diagnostic
// kinds that occurred.
func (s Summary) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("zones", s.Zones),
		slog.Int("rows_emitted", s.RowsEmitted),
		slog.Int("rows_inserted", s.RowsInserted),
		slog.Int("rows_duplicate", s.RowsDuplicate),
		slog.Int("rows_failed", s.RowsFailed),
		slog.Int("rejected", s.Rejected()),
	}
	for _, kind := range domain.Kinds {
		if n := s.Diagnostics[kind]; n > 0 {
			attrs = append(attrs, slog.Int(string(kind), n))
		}
	}
	return slog.GroupValue(attrs...)
}
