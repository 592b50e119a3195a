// Package metrics exposes Prometheus counters for conversions and scans.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all metrics for the application
type Registry struct {
	// Conversion Metrics
	ConversionsTotal   *prometheus.CounterVec
	ConversionDuration *prometheus.HistogramVec
	DiagramsTotal      *prometheus.CounterVec
	RungsTotal         *prometheus.CounterVec

	// Scanner Metrics
	FindingsTotal *prometheus.CounterVec

	// HTTP Metrics
	HTTPRequestsTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

var (
	// Global registry instance
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Registry{registry: reg}
	r.initConversionMetrics()
	r.initScannerMetrics()
	r.initHTTPMetrics()
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Registry) initConversionMetrics() {
	r.ConversionsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "ladderscan_conversions_total",
			Help: "Total number of file conversions",
		},
		[]string{"strategy", "status"},
	)

	r.ConversionDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ladderscan_conversion_duration_seconds",
			Help:    "File conversion duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		},
		[]string{"strategy"},
	)

	r.DiagramsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "ladderscan_diagrams_total",
			Help: "Total number of ladder diagrams converted, by rung source",
		},
		[]string{"source"},
	)

	r.RungsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "ladderscan_rungs_total",
			Help: "Total number of rung lines emitted, by rung source",
		},
		[]string{"source"},
	)
}

func (r *Registry) initScannerMetrics() {
	r.FindingsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "ladderscan_findings_total",
			Help: "Total number of pattern matches reported by the scanner",
		},
		[]string{"severity"},
	)
}

func (r *Registry) initHTTPMetrics() {
	r.HTTPRequestsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "ladderscan_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
}
