package metric

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegistry(t *testing.T) {
	registry := NewMetricsRegistry()

	require.NotNil(t, registry)
	require.NotNil(t, registry.Metrics)
	assert.NotNil(t, registry.PrometheusRegistry())
	assert.Same(t, registry.Metrics, registry.CoreMetrics())
}

func TestRegisterCounter(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_counter_total",
		Help: "test",
	})

	require.NoError(t, registry.RegisterCounter("gateway", "test_counter", counter))

	// Duplicate registration under the same key is rejected
	err := registry.RegisterCounter("gateway", "test_counter", counter)
	assert.Error(t, err)
}

func TestRegisterConflictingCollector(t *testing.T) {
	registry := NewMetricsRegistry()

	first := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_gauge", Help: "test"})
	second := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_gauge", Help: "test"})

	require.NoError(t, registry.RegisterGauge("a", "gauge", first))

	// Same prometheus metric name under a different registry key
	err := registry.RegisterGauge("b", "gauge", second)
	assert.Error(t, err)
}

func TestUnregister(t *testing.T) {
	registry := NewMetricsRegistry()

	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "test_histogram_seconds",
		Help: "test",
	})

	require.NoError(t, registry.RegisterHistogram("store", "latency", histogram))
	assert.True(t, registry.Unregister("store", "latency"))
	assert.False(t, registry.Unregister("store", "latency"))

	// Re-registration works after unregister
	require.NoError(t, registry.RegisterHistogram("store", "latency", histogram))
}

func TestCoreMetricsGathered(t *testing.T) {
	registry := NewMetricsRegistry()

	registry.Metrics.StoreOps.WithLabelValues("gedi", "open_data").Inc()
	registry.Metrics.NATSConnected.Set(1)

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, fam := range families {
		names[fam.GetName()] = true
	}
	assert.True(t, names["gedidb_store_operations_total"])
	assert.True(t, names["gedidb_nats_connected"])
}
