package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		unresolvedBacklog,
		stalePendingIntents,
		operatorNotifications,
	)
}

var (
	unresolvedBacklog = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "unresolved_payments_backlog",
			Help: "Unresolved payments waiting for an operator.",
		},
	)

	stalePendingIntents = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "payment_intents_stale_pending",
			Help: "Pending payment intents older than the configured staleness window.",
		},
	)

	// status: sent|error
	operatorNotifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "operator_notifications_total",
			Help: "Operator alerts about unresolved payments by delivery status.",
		},
		[]string{"status"},
	)
)

func SetUnresolvedBacklog(n int) {
	unresolvedBacklog.Set(float64(n))
}

func SetStalePendingIntents(n int) {
	stalePendingIntents.Set(float64(n))
}

func IncOperatorNotification(status string) {
	operatorNotifications.WithLabelValues(norm(status)).Inc()
}
