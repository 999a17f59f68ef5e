package reconciler

import (
	"discover/internal/registry"
	"discover/pkg/logging"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "discover"

// Metrics holds the reconciler's prometheus collectors.
//
// They are registered on the registerer handed to NewMetrics, normally a
// private registry served by the agent's metrics endpoint.
type Metrics struct {
	state       *prometheus.GaugeVec
	desired     prometheus.Gauge
	syncs       *prometheus.CounterVec
	registryOps *prometheus.CounterVec
	staleLeases prometheus.Counter
	malformed   prometheus.Counter
	requests    *prometheus.CounterVec
	queueDepth  prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// leaves them unregistered, which tests use.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "reconciler",
			Name:      "state",
			Help:      "Current reconciler state (1 for the active state).",
		}, []string{"state"}),
		desired: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "reconciler",
			Name:      "desired_services",
			Help:      "Number of services that should be registered for this host.",
		}),
		syncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "reconciler",
			Name:      "syncs_total",
			Help:      "Full synchronizations by reason.",
		}, []string{"reason"}),
		registryOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "registry",
			Name:      "operations_total",
			Help:      "Registry operations by operation and result.",
		}, []string{"op", "result"}),
		staleLeases: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "registry",
			Name:      "stale_leases_total",
			Help:      "Entries found expired during renewal and put again.",
		}),
		malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "extractor",
			Name:      "malformed_declarations_total",
			Help:      "Service declarations skipped because they could not be used.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "reconciler",
			Name:      "requests_total",
			Help:      "Processed work queue requests by kind.",
		}, []string{"kind"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "reconciler",
			Name:      "queue_depth",
			Help:      "Requests waiting in the work queue.",
		}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{
			m.state, m.desired, m.syncs, m.registryOps, m.staleLeases, m.malformed, m.requests, m.queueDepth,
		} {
			if err := reg.Register(c); err != nil {
				logging.Warn("ReconcilerMetrics", "Failed to register collector: %v", err)
			}
		}
	}
	return m
}

func (m *Metrics) setState(s State) {
	for _, st := range AllStates {
		v := 0.0
		if st == s {
			v = 1
		}
		m.state.WithLabelValues(string(st)).Set(v)
	}
}

// observeOp counts one registry call by result.
func (m *Metrics) observeOp(op string, err error) {
	m.registryOps.WithLabelValues(op, opResult(err)).Inc()
}

func opResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case registry.IsUnavailable(err):
		return "unavailable"
	case registry.IsNotFound(err):
		return "not_found"
	case registry.IsConflict(err):
		return "conflict"
	default:
		return "error"
	}
}
