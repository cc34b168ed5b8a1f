package shuffle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	poolSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "meetup_shuffle_pool_size",
		Help:    "Number of candidates a shuffle draws from",
		Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
	})

	outcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meetup_shuffle_outcomes_total",
		Help: "Shuffle sessions by outcome",
	}, []string{"outcome"})
)
