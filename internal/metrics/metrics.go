// Package metrics defines the Prometheus counters of the API.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics groups the operation counters.
type Metrics struct {
	AuthOperations     *prometheus.CounterVec
	ResourceOperations *prometheus.CounterVec
}

// New creates the counters and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuthOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_operations_total",
				Help: "Auth operations by operation and result kind",
			},
			[]string{"operation", "result"},
		),
		ResourceOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "resource_operations_total",
				Help: "Resource operations by resource, operation and result kind",
			},
			[]string{"resource", "operation", "result"},
		),
	}
	reg.MustRegister(m.AuthOperations, m.ResourceOperations)
	return m
}

// Auth counts one auth operation.  A nil receiver is a no-op.
func (m *Metrics) Auth(op, result string) {
	if m == nil {
		return
	}
	m.AuthOperations.WithLabelValues(op, result).Inc()
}

// Resource counts one resource operation.  A nil receiver is a no-op.
func (m *Metrics) Resource(resource, op, result string) {
	if m == nil {
		return
	}
	m.ResourceOperations.WithLabelValues(resource, op, result).Inc()
}
