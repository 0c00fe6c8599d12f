// Package metrics holds the prometheus collectors of the moderation flow.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Submission kinds.
const (
	KindImmediate = "immediate"
	KindModerated = "moderated"
)

// Decision labels.
const (
	DecisionApproveAll      = "approve_all"
	DecisionRejectAll       = "reject_all"
	DecisionApproveSpecific = "approve_specific"
)

type Metrics struct {
	registry *prometheus.Registry

	submissions *prometheus.CounterVec
	decisions   *prometheus.CounterVec
	txRetries   prometheus.Histogram
	rateLimited *prometheus.CounterVec
}

// New registers collectors on a fresh registry together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		submissions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "doclearn_profile_submissions_total",
				Help: "Profile fields submitted, by routing kind",
			},
			[]string{"kind"},
		),
		decisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "doclearn_moderation_decisions_total",
				Help: "Moderator decisions committed, by decision",
			},
			[]string{"decision"},
		),
		txRetries: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "doclearn_tx_retries",
				Help:    "Serialization retries per committed transaction",
				Buckets: []float64{0, 1, 2, 3, 5},
			},
		),
		rateLimited: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "doclearn_rate_limited_total",
				Help: "Requests rejected by the rate limiter",
			},
			[]string{"scope"},
		),
	}
}

// FieldsSubmitted adds n fields of the given kind.
func (m *Metrics) FieldsSubmitted(kind string, n int) {
	if n > 0 {
		m.submissions.WithLabelValues(kind).Add(float64(n))
	}
}

func (m *Metrics) Decision(decision string) {
	m.decisions.WithLabelValues(decision).Inc()
}

// ObserveRetries matches dbx.RetryObserver.
func (m *Metrics) ObserveRetries(retries int) {
	m.txRetries.Observe(float64(retries))
}

func (m *Metrics) RateLimited(scope string) {
	m.rateLimited.WithLabelValues(scope).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
