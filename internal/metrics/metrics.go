// Package metrics holds Cooper's Prometheus collectors.
//
// All recording methods are safe on a nil *Metrics so components can be
// built without instrumentation in tests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cooper"

// Metrics groups the collectors recorded by the service.
type Metrics struct {
	expensesCreated   prometheus.Counter
	ruleDenials       *prometheus.CounterVec
	providerRequests  *prometheus.CounterVec
	milestoneReleases *prometheus.CounterVec
	refundsMatured    prometheus.Counter
	httpDuration      *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		expensesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expenses_created_total",
			Help:      "Expenses persisted after passing spending rules.",
		}),
		ruleDenials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_denials_total",
			Help:      "Spending or join attempts denied by rules, by reason.",
		}, []string{"reason"}),
		providerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Payment provider calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		milestoneReleases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "milestone_releases_total",
			Help:      "Milestone release attempts by result.",
		}, []string{"result"}),
		refundsMatured: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refunds_matured_total",
			Help:      "Refunds credited to wallets.",
		}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method, route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		gatherer: reg,
	}

	reg.MustRegister(
		m.expensesCreated,
		m.ruleDenials,
		m.providerRequests,
		m.milestoneReleases,
		m.refundsMatured,
		m.httpDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) ExpenseCreated() {
	if m == nil {
		return
	}
	m.expensesCreated.Inc()
}

func (m *Metrics) RuleDenied(reason string) {
	if m == nil {
		return
	}
	m.ruleDenials.WithLabelValues(reason).Inc()
}

// ProviderRequest records one provider call. outcome is "ok", "error" or
// "retryable".
func (m *Metrics) ProviderRequest(op, outcome string) {
	if m == nil {
		return
	}
	m.providerRequests.WithLabelValues(op, outcome).Inc()
}

// MilestoneRelease records a release attempt. result is "released",
// "contended" or "failed".
func (m *Metrics) MilestoneRelease(result string) {
	if m == nil {
		return
	}
	m.milestoneReleases.WithLabelValues(result).Inc()
}

func (m *Metrics) RefundsMatured(n int) {
	if m == nil {
		return
	}
	m.refundsMatured.Add(float64(n))
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
