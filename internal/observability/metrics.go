package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hydrawise_etl"

// Metrics holds the Prometheus counters and histograms for one ETL run.
type Metrics struct {
	ReportsFetched   prometheus.Counter
	ZonesSeen        prometheus.Counter
	RowsEmitted      prometheus.Counter
	RowsStored       prometheus.Counter
	RowStoreErrors   prometheus.Counter
	Diagnostics      *prometheus.CounterVec // labels: kind
	RunDuration      prometheus.Histogram
	LastSuccessTime  prometheus.Gauge
	DiagnosticErrors prometheus.Counter
}

// NewMetrics creates the run metrics and registers them with the default registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.Collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ReportsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_fetched_total",
			Help:      "Reports retrieved from the Hydrawise API or a local file.",
		}),
		ZonesSeen: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "zones_total",
			Help:      "Zone entries present in fetched reports.",
		}),
		RowsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_emitted_total",
			Help:      "Rows produced by report normalization.",
		}),
		RowsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_stored_total",
			Help:      "Rows accepted by the store, duplicates included.",
		}),
		RowStoreErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "row_store_errors_total",
			Help:      "Rows the store failed to write.",
		}),
		Diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diagnostics_total",
			Help:      "Validation diagnostics by kind.",
		}, []string{"kind"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete fetch-normalize-store run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		LastSuccessTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that completed without a fatal error.",
		}),
		DiagnosticErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diagnostic_publish_errors_total",
			Help:      "Failed attempts to publish diagnostics.",
		}),
	}
}

// Collectors returns every metric, for registration or pushing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.ReportsFetched,
		m.ZonesSeen,
		m.RowsEmitted,
		m.RowsStored,
		m.RowStoreErrors,
		m.Diagnostics,
		m.RunDuration,
		m.LastSuccessTime,
		m.DiagnosticErrors,
	}
}
