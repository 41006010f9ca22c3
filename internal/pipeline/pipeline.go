package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/hydrawise-flowmeter-etl/internal/domain"
	"github.com/couchcryptid/hydrawise-flowmeter-etl/internal/observability"
)

// ReportSource retrieves the raw report for a time window of one controller.
type ReportSource interface {
	Fetch(ctx context.Context, start, end time.Time, controllerID string) ([]byte, error)
}

// RowSink stores one normalized row. A duplicate (zone, timestamp) is a
// successful no-op reported as inserted == false.
type RowSink interface {
	Name() string
	Upsert(ctx context.Context, row domain.Row) (inserted bool, err error)
}

// DiagnosticPublisher ships the diagnostics of a run somewhere other than the log.
type DiagnosticPublisher interface {
	PublishDiagnostics(ctx context.Context, diags []domain.Diagnostic, runAt time.Time) error
}

// Settings carries the per-run parameters of a Pipeline.
type Settings struct {
	ControllerID string
	Lookback     time.Duration
	DryRun       bool

	// Publisher is optional; nil keeps diagnostics in the log only.
	Publisher DiagnosticPublisher
	// Clock defaults to the real clock.
	Clock clockwork.Clock
}

// Pipeline runs one fetch → normalize → store pass.
type Pipeline struct {
	source    ReportSource
	sink      RowSink
	publisher DiagnosticPublisher
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock

	controllerID string
	lookback     time.Duration
	dryRun       bool
}

// New creates a Pipeline. sink may be nil only when settings.DryRun is set.
func New(source ReportSource, sink RowSink, logger *slog.Logger, metrics *observability.Metrics, settings Settings) *Pipeline {
	clock := settings.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Pipeline{
		source:       source,
		sink:         sink,
		publisher:    settings.Publisher,
		logger:       logger,
		metrics:      metrics,
		clock:        clock,
		controllerID: settings.ControllerID,
		lookback:     settings.Lookback,
		dryRun:       settings.DryRun,
	}
}

// Run fetches the report for [now-lookback, now), then normalizes and stores
// it. Only fetch and decode failures are returned; per-row problems are
// logged and counted in the Summary.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	started := p.clock.Now()
	end := started.Truncate(time.Second)
	start := end.Add(-p.lookback)

	p.logger.Info("run started",
		"controller_id", p.controllerID,
		"window_start", start.UTC().Format(time.RFC3339),
		"window_end", end.UTC().Format(time.RFC3339),
		"dry_run", p.dryRun,
	)

	body, err := p.source.Fetch(ctx, start, end, p.controllerID)
	if err != nil {
		return Summary{}, fmt.Errorf("fetch report: %w", err)
	}
	p.metrics.ReportsFetched.Inc()

	report, err := domain.DecodeReport(body)
	if err != nil {
		return Summary{}, err
	}

	summary := p.Process(ctx, report)

	p.metrics.RunDuration.Observe(p.clock.Since(started).Seconds())
	p.metrics.LastSuccessTime.Set(float64(p.clock.Now().Unix()))
	p.logger.Info("run finished", "summary", summary)
	return summary, nil
}

// Process normalizes a decoded report and stores every emitted row. It never
// stops early: a failing row is logged and the next one is attempted.
func (p *Pipeline) Process(ctx context.Context, report domain.Report) Summary {
	summary := newSummary()
	summary.Zones = len(report)
	p.metrics.ZonesSeen.Add(float64(len(report)))

	var diags []domain.Diagnostic
	for row, err := range domain.Normalize(report) {
		if err != nil {
			var d *domain.Diagnostic
			if !errors.As(err, &d) {
				p.logger.Error("unexpected normalization error", "error", err)
				continue
			}
			p.recordDiagnostic(&summary, d)
			diags = append(diags, *d)
			continue
		}

		summary.RowsEmitted++
		p.metrics.RowsEmitted.Inc()

		if p.dryRun {
			p.logger.Info("dry-run: would store row", rowAttrs(row)...)
			continue
		}
		p.store(ctx, &summary, row)
	}

	p.publish(ctx, diags)
	return summary
}

func (p *Pipeline) recordDiagnostic(summary *Summary, d *domain.Diagnostic) {
	summary.Diagnostics[d.Kind]++
	p.metrics.Diagnostics.WithLabelValues(string(d.Kind)).Inc()

	msg := "report element rejected"
	if d.Soft() {
		msg = "runtime note unparsable"
	}
	p.logger.Warn(msg, "diagnostic", d)
}

func (p *Pipeline) store(ctx context.Context, summary *Summary, row domain.Row) {
	inserted, err := p.sink.Upsert(ctx, row)
	if err != nil {
		summary.RowsFailed++
		p.metrics.RowStoreErrors.Inc()
		p.logger.Error("store row failed, continuing",
			append(rowAttrs(row), "sink", p.sink.Name(), "error", err)...)
		return
	}

	p.metrics.RowsStored.Inc()
	if inserted {
		summary.RowsInserted++
	} else {
		summary.RowsDuplicate++
	}
}

func (p *Pipeline) publish(ctx context.Context, diags []domain.Diagnostic) {
	if p.publisher == nil || len(diags) == 0 {
		return
	}
	if err := p.publisher.PublishDiagnostics(ctx, diags, p.clock.Now()); err != nil {
		p.metrics.DiagnosticErrors.Inc()
		p.logger.Error("publish diagnostics failed", "count", len(diags), "error", err)
	}
}

func rowAttrs(row domain.Row) []any {
	attrs := []any{
		"zone", row.ZoneID,
		"metric_timestamp", row.Timestamp,
		"litres", row.Volume,
	}
	if row.Runtime != nil {
		attrs = append(attrs, "runtime", *row.Runtime)
	}
	return attrs
}
