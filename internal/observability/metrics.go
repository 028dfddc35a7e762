package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "profile_tiler"

// Metrics holds the Prometheus counters, histograms, and gauges for a tiling run.
type Metrics struct {
	Profiles        *prometheus.CounterVec // labels: outcome={accepted,rejected,empty}
	Rejections      *prometheus.CounterVec // labels: reason
	LevelsRejected  *prometheus.CounterVec // labels: quantity
	RowsWritten     prometheus.Counter
	TilesWritten    prometheus.Counter
	NotifyErrors    prometheus.Counter
	PipelineRunning prometheus.Gauge

	ChunkDuration prometheus.Histogram
}

func newMetrics() *Metrics {
	return &Metrics{
		Profiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "profiles_total",
			Help:      "Profile files processed by outcome.",
		}, []string{"outcome"}),
		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Rejected profiles by reason.",
		}, []string{"reason"}),
		LevelsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "levels_rejected_total",
			Help:      "Discarded level values by quantity.",
		}, []string{"quantity"}),
		RowsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_written_total",
			Help:      "Rows written to tile files.",
		}),
		TilesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tiles_written_total",
			Help:      "Tile files written.",
		}),
		NotifyErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notify_errors_total",
			Help:      "Tile notifications that could not be delivered.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a run is in progress, 0 otherwise.",
		}),
		ChunkDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chunk_duration_seconds",
			Help:      "Duration of one (year, month) chunk from expansion to flush.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Profiles,
		m.Rejections,
		m.LevelsRejected,
		m.RowsWritten,
		m.TilesWritten,
		m.NotifyErrors,
		m.PipelineRunning,
		m.ChunkDuration,
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates all pipeline metrics and registers them with reg.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	m := newMetrics()
	reg.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics registered with a fresh registry to
// avoid "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return NewMetricsWith(prometheus.NewRegistry())
}
