package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the banking engine.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	transactionsTotal   *prometheus.CounterVec
	rejectionsTotal     *prometheus.CounterVec
	externalErrors      *prometheus.CounterVec
	operationDuration   *prometheus.HistogramVec
	postingRetriesTotal prometheus.Counter
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		transactionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bank_transactions_total",
				Help: "Total committed transactions by operation.",
			},
			[]string{"operation"},
		),
		rejectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bank_rejections_total",
				Help: "Total rejected operations by reason.",
			},
			[]string{"reason"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bank_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bank_operation_duration_seconds",
				Help:    "Duration of engine operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		postingRetriesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bank_posting_retries_total",
				Help: "Total posting retries after serialization conflicts.",
			},
		),
	}
}

// IncrTransaction increments the committed transaction counter.
func (m *Metrics) IncrTransaction(operation string) {
	m.transactionsTotal.WithLabelValues(operation).Inc()
}

// IncrRejection increments the rejection counter for a reason.
func (m *Metrics) IncrRejection(reason string) {
	m.rejectionsTotal.WithLabelValues(reason).Inc()
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// RecordDuration records how long an engine operation took.
func (m *Metrics) RecordDuration(operation string, d time.Duration) {
	m.operationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrPostingRetry counts one conflict-triggered posting retry.
func (m *Metrics) IncrPostingRetry() {
	m.postingRetriesTotal.Inc()
}
