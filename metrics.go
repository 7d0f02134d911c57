package livetiming

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	lapsCompletedMetric = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "livetiming",
		Name:      "laps_completed_total",
		Help:      "Laps completed across all cars.",
	})

	lapNumberRegressionsMetric = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "livetiming",
		Name:      "lap_number_regressions_total",
		Help:      "Lap data updates ignored because the lap number went backwards within a session.",
	})

	alertsRaisedMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "livetiming",
		Subsystem: "race_engineer",
		Name:      "alerts_total",
		Help:      "Race engineer alerts raised, by category and priority.",
	}, []string{"category", "priority"})

	websocketClientsMetric = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "livetiming",
		Subsystem: "websocket",
		Name:      "clients",
		Help:      "Connected websocket clients.",
	})

	websocketDroppedClientsMetric = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "livetiming",
		Subsystem: "websocket",
		Name:      "dropped_clients_total",
		Help:      "Websocket clients disconnected for not keeping up with broadcasts.",
	})
)
