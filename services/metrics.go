package services

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the ingestion counters. Each Metrics owns its registry, so
// several coordinators (or tests) in one process never collide.
type Metrics struct {
	registry *prometheus.Registry

	products       *prometheus.CounterVec
	rowsScraped    prometheus.Counter
	rowsDropped    prometheus.Counter
	inserted       *prometheus.CounterVec
	duplicates     prometheus.Counter
	recordsFailed  prometheus.Counter
	estimatedDates prometheus.Counter
	batchSize      prometheus.Histogram
	runDuration    prometheus.Histogram
	lastSuccess    prometheus.Gauge
}

// NewMetrics registers the ingestion metrics on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		products: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kamis_products_processed_total",
			Help: "Products processed, by outcome (ok, empty, failed)",
		}, []string{"outcome"}),
		rowsScraped: f.NewCounter(prometheus.CounterOpts{
			Name: "kamis_rows_scraped_total",
			Help: "Table rows read from product pages",
		}),
		rowsDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "kamis_rows_dropped_total",
			Help: "Table rows discarded while cleaning",
		}),
		inserted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kamis_price_records_inserted_total",
			Help: "Price records inserted, by product",
		}, []string{"product"}),
		duplicates: f.NewCounter(prometheus.CounterOpts{
			Name: "kamis_price_records_duplicate_total",
			Help: "Price records skipped because their key was already stored",
		}),
		recordsFailed: f.NewCounter(prometheus.CounterOpts{
			Name: "kamis_price_records_failed_total",
			Help: "Price records that could not be resolved or inserted",
		}),
		estimatedDates: f.NewCounter(prometheus.CounterOpts{
			Name: "kamis_estimated_dates_total",
			Help: "Records whose date was missing or unparseable and replaced by the run date",
		}),
		batchSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "kamis_insert_batch_size",
			Help:    "Rows per bulk insert",
			Buckets: []float64{1, 10, 25, 50, 100, 250, 500},
		}),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "kamis_run_duration_seconds",
			Help:    "Wall time of a full ingestion run",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10),
		}),
		lastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Name: "kamis_last_success_timestamp_seconds",
			Help: "Unix time of the last run that completed",
		}),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
