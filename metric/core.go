package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the core plugin metrics (not store-instance specific)
type Metrics struct {
	// Store operation metrics
	StoreOps    *prometheus.CounterVec
	StoreErrors *prometheus.CounterVec

	// Provider backend metrics
	ProviderRequests        *prometheus.CounterVec
	ProviderRequestDuration *prometheus.HistogramVec

	// Cache metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	// NATS metrics
	NATSConnected prometheus.Gauge

	// Gateway metrics
	GatewayRequests        *prometheus.CounterVec
	GatewayRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all core metrics
func NewMetrics() *Metrics {
	return &Metrics{
		StoreOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gedidb",
				Subsystem: "store",
				Name:      "operations_total",
				Help:      "Total number of store operations",
			},
			[]string{"store", "operation"},
		),

		StoreErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gedidb",
				Subsystem: "store",
				Name:      "errors_total",
				Help:      "Total number of store operation errors by class",
			},
			[]string{"store", "operation", "class"},
		),

		ProviderRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gedidb",
				Subsystem: "provider",
				Name:      "requests_total",
				Help:      "Total number of provider backend requests",
			},
			[]string{"endpoint", "status"},
		),

		ProviderRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "gedidb",
				Subsystem: "provider",
				Name:      "request_duration_seconds",
				Help:      "Provider backend request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),

		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gedidb",
				Subsystem: "cache",
				Name:      "hits_total",
				Help:      "Total number of cache hits",
			},
			[]string{"cache"},
		),

		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gedidb",
				Subsystem: "cache",
				Name:      "misses_total",
				Help:      "Total number of cache misses",
			},
			[]string{"cache"},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "gedidb",
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),

		GatewayRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gedidb",
				Subsystem: "gateway",
				Name:      "requests_total",
				Help:      "Total number of gateway requests",
			},
			[]string{"operation", "status"},
		),

		GatewayRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "gedidb",
				Subsystem: "gateway",
				Name:      "request_duration_seconds",
				Help:      "Gateway request handling duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}
