package resolution

import "github.com/prometheus/client_golang/prometheus"

var (
	actionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steer_resolution_actions_total",
			Help: "Resolution actions executed, by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	escalationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steer_resolution_escalations_total",
			Help: "Resolutions that required a human, by reason",
		},
		[]string{"reason"},
	)

	resolutionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "steer_resolution_duration_seconds",
			Help:    "Wall-clock time of the resolution step sequence",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"category"},
	)
)

func init() {
	prometheus.MustRegister(
		actionsTotal,
		escalationsTotal,
		resolutionDuration,
	)
}
