package action

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	actionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "actions_total",
			Help: "Total number of actions by kind, route and outcome.",
		},
		[]string{"kind", "route", "status"},
	)
	actionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "action_duration_seconds",
			Help:    "Histogram of successful action durations.",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		},
		[]string{"kind", "route"},
	)
)
