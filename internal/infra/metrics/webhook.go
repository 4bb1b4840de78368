package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		webhookRequests,
		webhookDuration,
		webhookMatches,
		webhookRateLimited,
	)
}

var (
	// result: matched|already_processed|unresolved|invalid|rejected|error
	webhookRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhook_requests_total",
			Help: "Count of bank webhook deliveries by outcome.",
		},
		[]string{"result"},
	)

	webhookDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_webhook_duration_seconds",
			Help:    "Duration of the bank webhook handler in seconds.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15},
		},
		[]string{"result"},
	)

	// method is the bounded audit label, e.g. exact_match_bank_content_format.
	webhookMatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhook_matches_total",
			Help: "Matched webhooks by match method.",
		},
		[]string{"method"},
	)

	webhookRateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payment_webhook_rate_limited_total",
			Help: "Webhook deliveries rejected by the per-source rate limiter.",
		},
	)
)

func ObserveWebhook(result string, started time.Time) {
	r := norm(result)
	webhookRequests.WithLabelValues(r).Inc()
	webhookDuration.WithLabelValues(r).Observe(time.Since(started).Seconds())
}

func IncWebhookMatch(method string) {
	webhookMatches.WithLabelValues(norm(method)).Inc()
}

func IncWebhookRateLimited() {
	webhookRateLimited.Inc()
}
