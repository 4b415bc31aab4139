package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		activationsTotal,
		commissionsCentsTotal,
		withdrawalsTotal,
		subscriptionsExpiredTotal,
	)
}

var (
	activationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "activations_total",
			Help: "Plan activations by source (code/payment) and result.",
		},
		[]string{"source", "result"},
	)

	commissionsCentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "commissions_cents_total",
			Help: "Commission cents credited, labeled by referral level.",
		},
		[]string{"level"},
	)

	withdrawalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "withdrawals_total",
			Help: "Withdrawal requests by resulting status.",
		},
		[]string{"status"},
	)

	subscriptionsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriptions_expired_total",
			Help: "Subscriptions flipped to expired by the periodic sweep.",
		},
	)
)

func IncActivation(source, result string) {
	activationsTotal.WithLabelValues(norm(source), norm(result)).Inc()
}

func AddCommissionCents(level string, cents int64) {
	commissionsCentsTotal.WithLabelValues(norm(level)).Add(float64(cents))
}

func IncWithdrawal(status string) {
	withdrawalsTotal.WithLabelValues(norm(status)).Inc()
}

func AddSubscriptionsExpired(n int64) {
	subscriptionsExpiredTotal.Add(float64(n))
}
