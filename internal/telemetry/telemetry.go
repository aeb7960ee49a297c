// Package telemetry exposes the broker's prometheus metrics.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every counter and histogram the broker records.
type Metrics struct {
	registry *prometheus.Registry

	EndpointsContacted *prometheus.CounterVec
	OffersAccepted     prometheus.Counter
	AcquireRuns        *prometheus.CounterVec
	EndpointLatency    prometheus.Histogram
	ThreadsCreated     prometheus.Counter
}

// New builds a Metrics set on a dedicated registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		EndpointsContacted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quibble",
			Name:      "endpoints_contacted_total",
			Help:      "Seller endpoints contacted, by outcome.",
		}, []string{"outcome"}),
		OffersAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quibble",
			Name:      "offers_accepted_total",
			Help:      "Offers accepted into result sets.",
		}),
		AcquireRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quibble",
			Name:      "acquire_runs_total",
			Help:      "Acquisition runs, by result (full, partial, empty).",
		}, []string{"result"}),
		EndpointLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "quibble",
			Name:      "endpoint_seconds",
			Help:      "Wall time spent per endpoint contact.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		ThreadsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quibble",
			Name:      "threads_created_total",
			Help:      "Buyer threads created.",
		}),
	}
	reg.MustRegister(m.EndpointsContacted, m.OffersAccepted, m.AcquireRuns, m.EndpointLatency, m.ThreadsCreated)
	return m
}

// Handler serves the registry for the /metrics route.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Outcome labels for EndpointsContacted.
const (
	OutcomeAccepted  = "accepted"
	OutcomeRejected  = "rejected"
	OutcomeNoMatch   = "no_products"
	OutcomeTransport = "transport_fault"
)
