package activity

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// operationsTotal counts store mutations by operation and reason code
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meetup_activity_operations_total",
		Help: "Activity store mutations by operation and result",
	}, []string{"operation", "result"})

	// storedActivities tracks the size of the canonical collection, expired records included
	storedActivities = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "meetup_activities_stored",
		Help: "Activities held by the store, including expired history",
	})
)

func observe(operation string, err error) {
	operationsTotal.WithLabelValues(operation, Reason(err)).Inc()
}
