// Package metrics exposes relay activity as Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "roomchat"

type Metrics struct {
	registry *prometheus.Registry

	Joins            prometheus.Counter
	Leaves           prometheus.Counter
	Rejected         *prometheus.CounterVec
	Messages         prometheus.Counter
	Locations        *prometheus.CounterVec
	DeliveryFailures prometheus.Counter
	Participants     prometheus.Gauge
	Connections      prometheus.Gauge
}

// New builds a private registry so independent instances (tests, multiple
// servers in one process) never collide on registration.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Joins: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "joins_total",
			Help: "Successful room joins.",
		}),
		Leaves: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "leaves_total",
			Help: "Participants removed on disconnect.",
		}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "rejected_total",
			Help: "Client requests rejected, by operation and reason.",
		}, []string{"op", "reason"}),
		Messages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "messages_total",
			Help: "Chat messages broadcast.",
		}),
		Locations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "locations_total",
			Help: "Location messages broadcast, by geofence classification.",
		}, []string{"region"}),
		DeliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "delivery_failures_total",
			Help: "Per-connection sends that failed during fan-out.",
		}),
		Participants: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "participants",
			Help: "Participants currently joined to a room.",
		}),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "connections",
			Help: "Open transport connections.",
		}),
	}
	reg.MustRegister(
		m.Joins, m.Leaves, m.Rejected, m.Messages, m.Locations,
		m.DeliveryFailures, m.Participants, m.Connections,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
