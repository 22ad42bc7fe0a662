package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ShortfallsDetected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payfesa_shortfalls_detected_total",
		Help: "Cycles found short of the expected contribution total.",
	})

	CoverageOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payfesa_reserve_coverage_total",
		Help: "Reserve coverage attempts by outcome.",
	}, []string{"outcome"})

	NotificationsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payfesa_notifications_total",
		Help: "Notifications handed to the dispatcher.",
	})

	ReserveBalance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "payfesa_reserve_balance_tambala",
		Help: "Current reserve wallet balance in tambala.",
	})

	PositionChanges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payfesa_payout_position_changes_total",
		Help: "Persisted payout position changes across recomputes.",
	})
)
