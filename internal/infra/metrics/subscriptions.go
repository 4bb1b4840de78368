package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		subscriptionsUpgradedTotal,
		subscriptionsDeactivatedTotal,
	)
}

var (
	subscriptionsUpgradedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscriptions_upgraded_total",
			Help: "Subscriptions activated by a settled payment, labeled by plan name.",
		},
		[]string{"plan"},
	)

	subscriptionsDeactivatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriptions_deactivated_total",
			Help: "Prior active subscriptions closed while upgrading.",
		},
	)
)

func IncSubscriptionUpgraded(plan string) {
	subscriptionsUpgradedTotal.WithLabelValues(norm(plan)).Inc()
}

func AddSubscriptionsDeactivated(n int64) {
	if n > 0 {
		subscriptionsDeactivatedTotal.Add(float64(n))
	}
}
