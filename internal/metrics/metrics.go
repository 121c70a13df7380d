package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the worker's Prometheus collectors on a private registry so
// tests can build as many instances as they like.
type Metrics struct {
	registry *prometheus.Registry

	jobsProcessed *prometheus.CounterVec
	decisions     *prometheus.CounterVec
	retries       prometheus.Counter
	deadLetters   prometheus.Counter
	malformed     prometheus.Counter
	loopErrors    prometheus.Counter
	duration      *prometheus.HistogramVec
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		jobsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paworker_jobs_processed_total",
				Help: "Job attempts processed, by result and error kind",
			},
			[]string{"result", "kind"},
		),
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paworker_policy_decisions_total",
				Help: "Policy decisions produced, by policy and outcome",
			},
			[]string{"policy", "decision"},
		),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "paworker_jobs_retried_total",
			Help: "Jobs pushed back onto the main queue",
		}),
		deadLetters: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "paworker_jobs_dead_lettered_total",
			Help: "Jobs escalated to the dead-letter queue",
		}),
		malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "paworker_malformed_payloads_total",
			Help: "Queue payloads dropped because they could not be decoded",
		}),
		loopErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "paworker_consumer_errors_total",
			Help: "Consumer iterations that failed and triggered a pause",
		}),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "paworker_job_duration_seconds",
				Help:    "Wall time of one job attempt",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
			},
			[]string{"result"},
		),
	}

	m.registry.MustRegister(
		m.jobsProcessed,
		m.decisions,
		m.retries,
		m.deadLetters,
		m.malformed,
		m.loopErrors,
		m.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RecordAttempt records one pipeline attempt. kind is empty on success.
func (m *Metrics) RecordAttempt(kind string, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if kind != "" {
		result = "failure"
	}
	m.jobsProcessed.WithLabelValues(result, kind).Inc()
	m.duration.WithLabelValues(result).Observe(elapsed.Seconds())
}

func (m *Metrics) RecordDecision(policyID, decision string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(policyID, decision).Inc()
}

func (m *Metrics) RecordRetry() {
	if m == nil {
		return
	}
	m.retries.Inc()
}

func (m *Metrics) RecordDeadLetter() {
	if m == nil {
		return
	}
	m.deadLetters.Inc()
}

func (m *Metrics) RecordMalformed() {
	if m == nil {
		return
	}
	m.malformed.Inc()
}

func (m *Metrics) RecordLoopError() {
	if m == nil {
		return
	}
	m.loopErrors.Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
