// Package metrics exports audit outcomes as Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"

	"invoice-auditor/internal/core"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "invoice_auditor"

// AuditMetrics implements core.AuditObserver.
type AuditMetrics struct {
	registry   *prometheus.Registry
	audits     *prometheus.CounterVec
	flags      *prometheus.CounterVec
	confidence prometheus.Histogram
	degraded   *prometheus.CounterVec
}

// NewAuditMetrics registers the audit metrics on a fresh registry.
func NewAuditMetrics() *AuditMetrics {
	m := &AuditMetrics{
		registry: prometheus.NewRegistry(),
		audits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audits_total",
			Help:      "Completed invoice audits by outcome.",
		}, []string{"passed", "risk_level"}),
		flags: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_flags_total",
			Help:      "Audit flags raised by kind, code and severity.",
		}, []string{"kind", "code", "severity"}),
		confidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "audit_confidence",
			Help:      "Confidence score of completed audits.",
			Buckets:   []float64{0, 25, 50, 70, 85, 95, 100},
		}),
		degraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_stage_degraded_total",
			Help:      "Audit stages skipped because a collaborator failed or timed out.",
		}, []string{"stage"}),
	}
	m.registry.MustRegister(m.audits, m.flags, m.confidence, m.degraded)
	return m
}

func (m *AuditMetrics) ObserveAudit(result *core.AuditResult) {
	m.audits.WithLabelValues(strconv.FormatBool(result.ValidationResults.Passed), string(result.RiskLevel)).Inc()
	m.confidence.Observe(float64(result.Confidence))
	for _, f := range result.Flags {
		m.flags.WithLabelValues(string(f.Kind), string(f.Code), string(f.Severity)).Inc()
	}
}

func (m *AuditMetrics) ObserveDegraded(stage string) {
	m.degraded.WithLabelValues(stage).Inc()
}

// Registry exposes the underlying registry, e.g. for tests.
func (m *AuditMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *AuditMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
