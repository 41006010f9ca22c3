package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"github.com/couchcryptid/hydrawise-flowmeter-etl/internal/domain"
)

// MultiSink writes every row to a primary sink and then to each mirror.
// The primary alone decides the outcome of a row: mirrors are skipped when
// the primary fails, and a mirror failure is logged without failing the row.
type MultiSink struct {
	primary RowSink
	mirrors []RowSink
	logger  *slog.Logger
}

// NewMultiSink fans rows out from primary to mirrors.
func NewMultiSink(logger *slog.Logger, primary RowSink, mirrors ...RowSink) *MultiSink {
	return &MultiSink{primary: primary, mirrors: mirrors, logger: logger}
}

func (m *MultiSink) Name() string {
	names := []string{m.primary.Name()}
	for _, s := range m.mirrors {
		names = append(names, s.Name())
	}
	return strings.Join(names, "+")
}

func (m *MultiSink) Upsert(ctx context.Context, row domain.Row) (bool, error) {
	inserted, err := m.primary.Upsert(ctx, row)
	if err != nil {
		return false, err
	}
	for _, s := range m.mirrors {
		if _, err := s.Upsert(ctx, row); err != nil {
			m.logger.Warn("mirror write failed",
				append(rowAttrs(row), "sink", s.Name(), "error", err)...)
		}
	}
	return inserted, nil
}
