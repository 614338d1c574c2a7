// Package metric provides the prometheus registry and core platform metrics
// shared by the registry service and the edge router.
package metric

import "github.com/prometheus/client_golang/prometheus"

// Metrics contains platform-level metrics (not component-specific)
type Metrics struct {
	ServiceStatus     *prometheus.GaugeVec
	RequestsTotal     *prometheus.CounterVec
	ErrorsTotal       *prometheus.CounterVec
	ReplicaHealthy    *prometheus.GaugeVec
	HealthTransitions *prometheus.CounterVec
}

// NewMetrics creates the core platform metrics
func NewMetrics() *Metrics {
	return &Metrics{
		ServiceStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "anvil_service_status",
				Help: "Service status (1=running, 0=stopped)",
			},
			[]string{"service"},
		),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "anvil_requests_total",
				Help: "Total HTTP requests by service, route and status code",
			},
			[]string{"service", "route", "code"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "anvil_errors_total",
				Help: "Total errors by service and error class",
			},
			[]string{"service", "class"},
		),
		ReplicaHealthy: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "anvil_replica_healthy",
				Help: "Replica health as seen by service discovery (1=healthy, 0=unhealthy)",
			},
			[]string{"replica"},
		),
		HealthTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "anvil_replica_health_transitions_total",
				Help: "Replica health state transitions by direction",
			},
			[]string{"replica", "to"},
		),
	}
}
