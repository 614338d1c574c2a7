package metric

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoreMetricsRegistered(t *testing.T) {
	registry := NewMetricsRegistry()

	// Touch each core metric so Gather reports it
	metrics := registry.CoreMetrics()
	metrics.ServiceStatus.WithLabelValues("name-registry").Set(1)
	metrics.RequestsTotal.WithLabelValues("name-registry", "/api/names", "200").Inc()
	metrics.ErrorsTotal.WithLabelValues("name-registry", "transient").Inc()
	metrics.ReplicaHealthy.WithLabelValues("http://r1:8000").Set(1)
	metrics.HealthTransitions.WithLabelValues("http://r1:8000", "unhealthy").Inc()

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	found := make(map[string]*dto.MetricFamily)
	for _, family := range families {
		found[family.GetName()] = family
	}

	for _, name := range []string{
		"anvil_service_status",
		"anvil_requests_total",
		"anvil_errors_total",
		"anvil_replica_healthy",
		"anvil_replica_health_transitions_total",
	} {
		assert.Contains(t, found, name)
	}

	// Go runtime collectors come along with the registry
	assert.Contains(t, found, "go_goroutines")
}

func TestRequestCounterValues(t *testing.T) {
	registry := NewMetricsRegistry()
	metrics := registry.CoreMetrics()

	metrics.RequestsTotal.WithLabelValues("edge-router", "/api/", "2xx").Add(3)

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	for _, family := range families {
		if family.GetName() != "anvil_requests_total" {
			continue
		}
		require.Len(t, family.GetMetric(), 1)
		assert.Equal(t, float64(3), family.GetMetric()[0].GetCounter().GetValue())
		return
	}
	t.Fatal("anvil_requests_total not gathered")
}

func TestRegisterServiceMetric(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "anvil_test_counter_total",
		Help: "test counter",
	})

	require.NoError(t, registry.RegisterCounter("test-service", "test_counter", counter))

	// Re-registering the same key is rejected
	assert.Error(t, registry.RegisterCounter("test-service", "test_counter", counter))

	// Unregister frees the key
	assert.True(t, registry.Unregister("test-service", "test_counter"))
	assert.False(t, registry.Unregister("test-service", "test_counter"))
}
