package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Summary generation outcomes recorded in feedback_summaries_total.
const (
	OutcomeStructured      = "structured"
	OutcomeFallback        = "fallback"
	OutcomeNoFeedback      = "no_feedback"
	OutcomeRateLimited     = "rate_limited"
	OutcomePaymentRequired = "payment_required"
	OutcomeUpstreamError   = "upstream_error"
	OutcomeStorageError    = "storage_error"
)

var (
	summariesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedback_summaries_total",
			Help: "Summary generation attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// status is "ok", "error" (transport/timeout) or the upstream HTTP status.
	llmLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_request_duration_seconds",
			Help:    "Duration of LLM completion requests in seconds.",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(summariesTotal, llmLatency)
}

// RecordSummaryOutcome increments feedback_summaries_total{outcome}.
func RecordSummaryOutcome(outcome string) {
	summariesTotal.WithLabelValues(outcome).Inc()
}

// ObserveLLMRequest records one completion request. Its signature matches
// llm.Client.Observe.
func ObserveLLMRequest(status string, elapsed time.Duration) {
	llmLatency.WithLabelValues(status).Observe(elapsed.Seconds())
}
