package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dndinv"

// Metrics holds the server's prometheus collectors. Every method is safe to
// call on a nil *Metrics, so services can run without metrics in tests.
type Metrics struct {
	registry *prometheus.Registry

	connections      prometheus.Gauge
	grantsIssued     prometheus.Counter
	grantsRejected   prometheus.Counter
	evictions        prometheus.Counter
	eventsPublished  *prometheus.CounterVec
	deliveries       prometheus.Counter
	deliveryFailures prometheus.Counter
	actions          *prometheus.CounterVec
	lootTransitions  *prometheus.CounterVec
}

// New creates Metrics on a private registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Live streaming connections",
		}),
		grantsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grants_issued_total",
			Help:      "Registration grants issued",
		}),
		grantsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grants_rejected_total",
			Help:      "Registration or command tokens rejected",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evictions_total",
			Help:      "Connections evicted from the registry",
		}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Events published, by event type",
		}, []string{"event"}),
		deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Messages enqueued on connection outboxes",
		}),
		deliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_failures_total",
			Help:      "Messages that could not be enqueued",
		}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Dispatched actions, by action and outcome",
		}, []string{"action", "outcome"}),
		lootTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loot_phase_transitions_total",
			Help:      "Loot pool phase transitions, by target phase",
		}, []string{"phase"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.connections,
		m.grantsIssued,
		m.grantsRejected,
		m.evictions,
		m.eventsPublished,
		m.deliveries,
		m.deliveryFailures,
		m.actions,
		m.lootTransitions,
	)
	return m
}

// Handler serves the registry in the prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connections.Dec()
	m.evictions.Inc()
}

func (m *Metrics) GrantIssued() {
	if m == nil {
		return
	}
	m.grantsIssued.Inc()
}

func (m *Metrics) GrantRejected() {
	if m == nil {
		return
	}
	m.grantsRejected.Inc()
}

// EventPublished records one publish and how its deliveries went
func (m *Metrics) EventPublished(event string, delivered, failed int) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(event).Inc()
	m.deliveries.Add(float64(delivered))
	m.deliveryFailures.Add(float64(failed))
}

// ActionHandled records a dispatched action. outcome is "ok" or an error code.
func (m *Metrics) ActionHandled(action, outcome string) {
	if m == nil {
		return
	}
	m.actions.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) LootPhaseChanged(phase string) {
	if m == nil {
		return
	}
	m.lootTransitions.WithLabelValues(phase).Inc()
}
