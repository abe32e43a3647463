package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// ingestion pipeline and the catalog adapter.
type Metrics struct {
	BackfillRunning prometheus.Gauge
	MonthsDone      prometheus.Counter
	MonthsSkipped   prometheus.Counter
	MonthsFailed    prometheus.Counter

	SamplesUpserted    prometheus.Counter
	SamplesPublished   prometheus.Counter
	SyntheticFallbacks prometheus.Counter
	ReportsWritten     prometheus.Counter

	// Per-month processing time: search, read, correct, convert, persist.
	MonthProcessingDuration prometheus.Histogram

	// Catalog metrics.
	CatalogRequests    *prometheus.CounterVec // labels: outcome={success,error,empty}
	CatalogCache       *prometheus.CounterVec // labels: result={hit,miss}
	CatalogAPIDuration prometheus.Histogram
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.BackfillRunning,
		m.MonthsDone,
		m.MonthsSkipped,
		m.MonthsFailed,
		m.SamplesUpserted,
		m.SamplesPublished,
		m.SyntheticFallbacks,
		m.ReportsWritten,
		m.MonthProcessingDuration,
		m.CatalogRequests,
		m.CatalogCache,
		m.CatalogAPIDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		BackfillRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "skyglow_etl",
			Name:      "backfill_running",
			Help:      "1 while a backfill run is active, 0 otherwise.",
		}),
		MonthsDone: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "skyglow_etl",
			Name:      "backfill_months_done_total",
			Help:      "Months successfully ingested and persisted.",
		}),
		MonthsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "skyglow_etl",
			Name:      "backfill_months_skipped_total",
			Help:      "Months skipped because coverage already existed.",
		}),
		MonthsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "skyglow_etl",
			Name:      "backfill_months_failed_total",
			Help:      "Months that failed search, processing, or persistence.",
		}),
		SamplesUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "skyglow_etl",
			Name:      "samples_upserted_total",
			Help:      "Brightness samples written to storage.",
		}),
		SamplesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "skyglow_etl",
			Name:      "samples_published_total",
			Help:      "Brightness samples published to the sink topic.",
		}),
		SyntheticFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "skyglow_etl",
			Name:      "synthetic_fallbacks_total",
			Help:      "Months filled with clearly-labeled synthetic estimates.",
		}),
		ReportsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "skyglow_etl",
			Name:      "reports_written_total",
			Help:      "Analysis reports persisted.",
		}),
		MonthProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "skyglow_etl",
			Name:      "month_processing_duration_seconds",
			Help:      "Duration of one month's search-process-persist cycle.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		CatalogRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "skyglow_etl",
			Name:      "catalog_requests_total",
			Help:      "Granule catalog requests by outcome.",
		}, []string{"outcome"}),
		CatalogCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "skyglow_etl",
			Name:      "catalog_cache_total",
			Help:      "Granule catalog cache lookups by result.",
		}, []string{"result"}),
		CatalogAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "skyglow_etl",
			Name:      "catalog_api_duration_seconds",
			Help:      "Catalog API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}
