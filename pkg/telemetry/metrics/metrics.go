// Package metrics provides Prometheus instrumentation for Warden.
//
// Metrics:
//   - warden_decisions_total: decisions by outcome and reason
//   - warden_decision_duration_seconds: decision evaluation latency
//   - warden_events_ingested_total: telemetry events ingested by kind
//   - warden_audit_queue_depth: pending audit log appends
//   - warden_audit_append_retries_total: audit append retries after storage failures
//   - warden_simulations_total: simulation runs by result
//   - warden_rule_modules_loaded: rule modules in the active evaluation set
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"outpost-hq/warden/pkg/config"
)

// Metrics holds all Prometheus collectors for the engine.
type Metrics struct {
	registry *prometheus.Registry

	decisionsTotal      *prometheus.CounterVec
	decisionDuration    prometheus.Histogram
	eventsIngestedTotal *prometheus.CounterVec
	auditQueueDepth     prometheus.Gauge
	auditRetriesTotal   prometheus.Counter
	simulationsTotal    *prometheus.CounterVec
	ruleModulesLoaded   prometheus.Gauge
}

// New creates and registers all collectors on a fresh registry.
func New(cfg *config.MetricsConfig) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "decisions_total",
				Help:      "Total number of live policy decisions",
			},
			[]string{"outcome", "rule"},
		),

		decisionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "decision_duration_seconds",
				Help:      "Duration of decision evaluation in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 15), // 10µs to 160ms
			},
		),

		eventsIngestedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "events_ingested_total",
				Help:      "Total number of telemetry events ingested",
			},
			[]string{"kind"},
		),

		auditQueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "audit_queue_depth",
				Help:      "Number of audit entries waiting to be written",
			},
		),

		auditRetriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "audit_append_retries_total",
				Help:      "Total number of audit append retries after storage failures",
			},
		),

		simulationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "simulations_total",
				Help:      "Total number of simulation runs",
			},
			[]string{"result"},
		),

		ruleModulesLoaded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "rule_modules_loaded",
				Help:      "Number of rule modules in the active evaluation set",
			},
		),
	}

	registry.MustRegister(
		m.decisionsTotal,
		m.decisionDuration,
		m.eventsIngestedTotal,
		m.auditQueueDepth,
		m.auditRetriesTotal,
		m.simulationsTotal,
		m.ruleModulesLoaded,
	)

	return m
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordDecision counts one live decision.
func (m *Metrics) RecordDecision(outcome, rule string, seconds float64) {
	m.decisionsTotal.WithLabelValues(outcome, rule).Inc()
	m.decisionDuration.Observe(seconds)
}

// RecordIngest counts ingested telemetry events by kind.
func (m *Metrics) RecordIngest(kind string, count int) {
	m.eventsIngestedTotal.WithLabelValues(kind).Add(float64(count))
}

// SetAuditQueueDepth reports the pending audit append count.
func (m *Metrics) SetAuditQueueDepth(depth int) {
	m.auditQueueDepth.Set(float64(depth))
}

// RecordAuditRetry counts one audit append retry.
func (m *Metrics) RecordAuditRetry() {
	m.auditRetriesTotal.Inc()
}

// RecordSimulation counts one simulation run ("ok" or "compile_error").
func (m *Metrics) RecordSimulation(result string) {
	m.simulationsTotal.WithLabelValues(result).Inc()
}

// SetRuleModulesLoaded reports the active rule module count.
func (m *Metrics) SetRuleModulesLoaded(n int) {
	m.ruleModulesLoaded.Set(float64(n))
}
