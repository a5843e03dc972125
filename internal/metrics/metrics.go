// Package metrics registers the Prometheus collectors exposed on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeCommitted = "committed"
	OutcomeReplayed  = "replayed"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

var (
	LedgerTransactions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_transactions_total",
		Help: "Ledger operations by kind and outcome",
	}, []string{"kind", "outcome"})

	LedgerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_operation_duration_seconds",
		Help:    "Latency distribution of ledger and rotation operations",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"operation"})

	TxRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_tx_retries_total",
		Help: "Serializable transactions retried after a serialization failure or deadlock",
	}, []string{"operation"})

	DuplicateRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_duplicate_rejections_total",
		Help: "Requests rejected by the duplicate fingerprint detector",
	})

	IdempotentReplays = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_idempotent_replays_total",
		Help: "Requests answered from a stored idempotency response",
	})

	CacheFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_cache_failures_total",
		Help: "Best-effort store failures that were failed open",
	}, []string{"store"})

	IdempotencyPurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_idempotency_purged_total",
		Help: "Expired idempotency records deleted",
	})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_http_requests_total",
		Help: "HTTP requests by route pattern and status code",
	}, []string{"route", "status"})
)

func Handler() http.Handler {
	return promhttp.Handler()
}

// Observe starts a latency timer for op; call the returned func when done.
func Observe(op string) func() {
	timer := prometheus.NewTimer(LedgerDuration.WithLabelValues(op))
	return func() { timer.ObserveDuration() }
}
