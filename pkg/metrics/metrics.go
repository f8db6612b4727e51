// Package metrics exposes Prometheus instrumentation for the ingestion
// pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline counters. All counters are safe for
// concurrent use.
type Metrics struct {
	registry *prometheus.Registry

	IngestedTotal   prometheus.Counter
	DuplicatesTotal prometheus.Counter
	RejectedTotal   prometheus.Counter
	RuleOverrides   prometheus.Counter
	ParseFallbacks  *prometheus.CounterVec
}

// New creates and registers the pipeline metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		IngestedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sms_ingested_total",
			Help: "Messages ingested and persisted.",
		}),
		DuplicatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sms_duplicates_total",
			Help: "Messages rejected by the dedup gate.",
		}),
		RejectedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sms_rejected_total",
			Help: "Requests rejected for missing user id or empty text.",
		}),
		RuleOverrides: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sms_rule_overrides_total",
			Help: "Ingestions where at least one user rule fired.",
		}),
		ParseFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sms_parse_fallbacks_total",
			Help: "Fields that fell back to their default during extraction.",
		}, []string{"field"}),
	}

	reg.MustRegister(m.IngestedTotal, m.DuplicatesTotal, m.RejectedTotal, m.RuleOverrides, m.ParseFallbacks)
	return m
}

// Handler returns the /metrics scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
