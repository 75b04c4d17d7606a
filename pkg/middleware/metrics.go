package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures the Prometheus request metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "vserve").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for request duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus request metrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "vserve",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

type requestMetrics struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	responseBytes    *prometheus.CounterVec
	requestsInFlight prometheus.Gauge
}

// Metrics are registered once per registry. Registering twice on the same
// registry panics, and servers are rebuilt on every dev reload.
var (
	registeredMetrics   = map[prometheus.Registerer]*requestMetrics{}
	registeredMetricsMu sync.Mutex
)

func metricsFor(config MetricsConfig) *requestMetrics {
	registeredMetricsMu.Lock()
	defer registeredMetricsMu.Unlock()

	if m, ok := registeredMetrics[config.Registry]; ok {
		return m
	}

	factory := promauto.With(config.Registry)
	m := &requestMetrics{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "http_requests_total",
			Help:        "Total number of HTTP requests served",
			ConstLabels: config.ConstLabels,
		}, []string{"method", "code"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"method"}),

		responseBytes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "http_response_bytes_total",
			Help:        "Total number of response body bytes written",
			ConstLabels: config.ConstLabels,
		}, []string{"method"}),

		requestsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "http_requests_in_flight",
			Help:        "Number of HTTP requests being served",
			ConstLabels: config.ConstLabels,
		}),
	}
	registeredMetrics[config.Registry] = m
	return m
}

// resetMetricsForTest forgets every registered metric set.
func resetMetricsForTest() {
	registeredMetricsMu.Lock()
	defer registeredMetricsMu.Unlock()
	registeredMetrics = map[prometheus.Registerer]*requestMetrics{}
}

func (m *requestMetrics) begin() time.Time {
	m.requestsInFlight.Inc()
	return time.Now()
}

func (m *requestMetrics) end(r *http.Request, ww chimw.WrapResponseWriter, start time.Time) {
	m.requestsInFlight.Dec()

	status := ww.Status()
	if status == 0 {
		status = http.StatusOK
	}
	m.requestsTotal.WithLabelValues(r.Method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	m.responseBytes.WithLabelValues(r.Method).Add(float64(ww.BytesWritten()))
}
