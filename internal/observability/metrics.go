package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "climate_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the index pipeline.
type Metrics struct {
	YearsProcessed  prometheus.Counter
	RecordsWritten  *prometheus.CounterVec // labels: sink
	SinkErrors      *prometheus.CounterVec // labels: sink
	PipelineRunning prometheus.Gauge
	LastYear        prometheus.Gauge

	// Per-year engine metrics.
	YearDuration prometheus.Histogram
	NoDataPixels prometheus.Gauge
	CarryPixels  prometheus.Gauge

	// Threshold calendar metrics.
	CalendarBuilds        prometheus.Counter
	CalendarBuildDuration prometheus.Histogram
	CalendarCache         *prometheus.CounterVec // labels: result={hit,miss}
	CalendarStore         *prometheus.CounterVec // labels: result={hit,miss}
	EmptyThresholds       prometheus.Gauge
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}
	return &Metrics{
		YearsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "years_processed_total",
			Help:      help("Target years whose index was computed and written."),
		}),
		RecordsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_written_total",
			Help:      help("Annual index grids written, by sink."),
		}, []string{"sink"}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      help("Failed sink writes, by sink."),
		}, []string{"sink"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      help("1 while the pipeline is active, 0 otherwise."),
		}),
		LastYear: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_completed_year",
			Help:      help("Most recent target year fully written."),
		}),
		YearDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "year_duration_seconds",
			Help:      help("Duration of load, compute and write for one target year."),
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		NoDataPixels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "nodata_pixels",
			Help:      help("No-data pixels in the most recent annual spell index."),
		}),
		CarryPixels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "carry_pixels",
			Help:      help("Pixels carrying a run into the next year."),
		}),
		CalendarBuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calendar_builds_total",
			Help:      help("Threshold calendars built from a baseline."),
		}),
		CalendarBuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "calendar_build_duration_seconds",
			Help:      help("Duration of loading the baseline and building a calendar."),
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		CalendarCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calendar_cache_total",
			Help:      help("In-memory calendar cache lookups by result."),
		}, []string{"result"}),
		CalendarStore: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calendar_store_total",
			Help:      help("Persisted calendar lookups by result."),
		}, []string{"result"}),
		EmptyThresholds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "empty_threshold_pixels",
			Help:      help("Pixel-days of the active calendar with an empty baseline pool."),
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.YearsProcessed,
		m.RecordsWritten,
		m.SinkErrors,
		m.PipelineRunning,
		m.LastYear,
		m.YearDuration,
		m.NoDataPixels,
		m.CarryPixels,
		m.CalendarBuilds,
		m.CalendarBuildDuration,
		m.CalendarCache,
		m.CalendarStore,
		m.EmptyThresholds,
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	m := newMetrics(false)
	prometheus.NewRegistry().MustRegister(m.collectors()...)
	return m
}
