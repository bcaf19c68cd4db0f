package match

import "github.com/prometheus/client_golang/prometheus"

var (
	MovesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_moves_total",
			Help: "Move submissions by outcome (accepted, duplicate, rejected)",
		},
		[]string{"outcome"},
	)
	ResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_resolutions_total",
			Help: "Matches resolved, by verdict",
		},
		[]string{"verdict"},
	)
	DecryptFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "match_decrypt_failures_total",
			Help: "Resolution attempts aborted because a move could not be decrypted",
		},
	)
)

func init() {
	prometheus.MustRegister(MovesTotal)
	prometheus.MustRegister(ResolutionsTotal)
	prometheus.MustRegister(DecryptFailures)
}
