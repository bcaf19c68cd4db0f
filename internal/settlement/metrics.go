package settlement

import "github.com/prometheus/client_golang/prometheus"

var (
	SettleAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_attempts_total",
			Help: "Settlement attempts by outcome",
		},
		[]string{"outcome"},
	)
	PayoutsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "settlement_payouts_total",
			Help: "Escrow payouts submitted successfully",
		},
	)
)

func init() {
	prometheus.MustRegister(SettleAttempts)
	prometheus.MustRegister(PayoutsTotal)
}
