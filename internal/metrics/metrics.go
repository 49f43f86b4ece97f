// Package metrics exposes Prometheus counters for verification runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	registry *prometheus.Registry

	TemplatesCreated prometheus.Counter
	TemplatesFailed  prometheus.Counter
	TemplatesSkipped prometheus.Counter
	Pairs            *prometheus.CounterVec
	EngineCalls      *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics on a private registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		TemplatesCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "iris_templates_created_total",
			Help: "Templates created and persisted by the engine",
		}),
		TemplatesFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "iris_templates_failed_total",
			Help: "Subjects whose template could not be created",
		}),
		TemplatesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "iris_templates_skipped_total",
			Help: "Subjects already present in the template store",
		}),
		Pairs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "iris_pairs_total",
			Help: "Verified pairs by result status",
		}, []string{"status"}),
		EngineCalls: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "iris_engine_call_seconds",
			Help:    "Latency of biometric engine calls",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}
}

// TemplateOutcome counts one population outcome ("populated", "skipped" or "failed").
func (m *Metrics) TemplateOutcome(outcome string) {
	switch outcome {
	case "populated":
		m.TemplatesCreated.Inc()
	case "skipped":
		m.TemplatesSkipped.Inc()
	case "failed":
		m.TemplatesFailed.Inc()
	}
}

// PairResult counts one matched pair.
func (m *Metrics) PairResult(status string) {
	m.Pairs.WithLabelValues(status).Inc()
}

// EngineCall observes the latency of one engine operation.
func (m *Metrics) EngineCall(op string, d time.Duration) {
	m.EngineCalls.WithLabelValues(op).Observe(d.Seconds())
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
