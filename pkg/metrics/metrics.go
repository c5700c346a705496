package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the platform.
// All instrumentation goes through this package.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Business metrics
	IndexCalculationsTotal   *prometheus.CounterVec
	IndexCalculationDuration *prometheus.HistogramVec
	BacktestsTotal           *prometheus.CounterVec
	IngestedRecordsTotal     *prometheus.CounterVec
}

// New creates a new metrics set with its own registry
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		}, []string{"method", "path", "status"}),

		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.1, 0.5, 1.0, 2.5, 5.0, 10.0},
		}, []string{"method", "path"}),

		IndexCalculationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "index_calculations_total",
			Help: "Total index calculations performed",
		}, []string{"method"}),

		IndexCalculationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "index_calculation_duration_seconds",
			Help:    "Index calculation duration in seconds",
			Buckets: []float64{0.1, 0.5, 1.0, 5.0, 10.0, 30.0},
		}, []string{"method"}),

		BacktestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "backtests_total",
			Help: "Total backtest runs",
		}, []string{"status"}),

		IngestedRecordsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "data_ingestion_records_total",
			Help: "Total records ingested",
		}, []string{"source", "type"}),
	}
}

// ObserveHTTPRequest records one served HTTP request
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, elapsed time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// Handler returns the HTTP handler serving the /metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
