// Package jobmetrics exposes Prometheus counters for the job queue:
// how many jobs are claimed, how many succeed or fail, and how many
// handler invocations (attempts) are made, all by tag. This is an ambient
// observability concern carried alongside the core queue, not part of
// its correctness.
package jobmetrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector is satisfied by *Metrics; handlers/the runner depend on
// this rather than the concrete type so tests can swap in a no-op.
type Collector interface {
	RecordClaimed(tag string)
	RecordSucceeded(tag string)
	RecordFailed(tag string)
	RecordAttempt(tag string, attempt int)
}

// Metrics is the Prometheus-backed Collector implementation.
type Metrics struct {
	claimed    *prometheus.CounterVec
	succeeded  *prometheus.CounterVec
	failed     *prometheus.CounterVec
	attempts   *prometheus.CounterVec
}

// NewMetrics builds a Metrics and registers its series with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		claimed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "servare_jobs_claimed_total",
			Help: "Total number of jobs claimed for execution, by tag.",
		}, []string{"tag"}),
		succeeded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "servare_jobs_succeeded_total",
			Help: "Total number of jobs that completed successfully, by tag.",
		}, []string{"tag"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "servare_jobs_failed_total",
			Help: "Total number of jobs that exhausted their retry budget, by tag.",
		}, []string{"tag"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "servare_job_attempts_total",
			Help: "Total number of job handler invocations, by tag.",
		}, []string{"tag"}),
	}

	reg.MustRegister(m.claimed, m.succeeded, m.failed, m.attempts)
	return m
}

func (m *Metrics) RecordClaimed(tag string)   { m.claimed.WithLabelValues(tag).Inc() }
func (m *Metrics) RecordSucceeded(tag string) { m.succeeded.WithLabelValues(tag).Inc() }
func (m *Metrics) RecordFailed(tag string)    { m.failed.WithLabelValues(tag).Inc() }
func (m *Metrics) RecordAttempt(tag string, attempt int) {
	m.attempts.WithLabelValues(tag).Inc()
}

var _ Collector = (*Metrics)(nil)

// Handler returns the HTTP handler Prometheus scrapes.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
