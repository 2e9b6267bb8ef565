// Package metrics holds the Prometheus collectors for the ingestion pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Submission outcomes.
const (
	OutcomeSaved    = "saved"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Notification outcomes.
const (
	OutcomeSent    = "sent"
	OutcomeSkipped = "skipped"
)

// Metrics is the set of collectors the service updates.
type Metrics struct {
	registry      *prometheus.Registry
	submissions   *prometheus.CounterVec
	notifications *prometheus.CounterVec
	appendLatency prometheus.Histogram
}

// New registers the collectors on a fresh registry along with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contactsheet",
			Name:      "submissions_total",
			Help:      "Submissions received, by outcome.",
		}, []string{"outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contactsheet",
			Name:      "notifications_total",
			Help:      "Post-commit notifications, by outcome.",
		}, []string{"outcome"}),
		appendLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "contactsheet",
			Name:      "append_duration_seconds",
			Help:      "Time spent appending a record to the table, lock wait included.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(
		m.submissions,
		m.notifications,
		m.appendLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Submission counts one ingestion attempt. Nil receivers are ignored.
func (m *Metrics) Submission(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}

// Notification counts one notifier outcome.
func (m *Metrics) Notification(err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSent
	if err != nil {
		outcome = OutcomeFailed
	}
	m.notifications.WithLabelValues(outcome).Inc()
}

// NotificationSkipped counts a submission for which no destination was configured.
func (m *Metrics) NotificationSkipped() {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(OutcomeSkipped).Inc()
}

// ObserveAppend records how long an append took.
func (m *Metrics) ObserveAppend(d time.Duration) {
	if m == nil {
		return
	}
	m.appendLatency.Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
