package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TicketsIssued counts successful event registrations.
	TicketsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engage_tickets_issued_total",
		Help: "Number of event registrations accepted.",
	})

	// CheckIns counts successful check-ins.
	CheckIns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engage_checkins_total",
		Help: "Number of attendance check-ins recorded.",
	})

	// PointsAwarded accumulates points granted by check-ins.
	PointsAwarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engage_points_awarded_total",
		Help: "Total points awarded through check-ins.",
	})

	// Redemptions counts successful reward redemptions by reward id.
	Redemptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engage_redemptions_total",
		Help: "Number of reward redemptions by reward id.",
	}, []string{"reward_id"})

	// HeartbeatFailures counts registry heartbeats that did not land.
	HeartbeatFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engage_registry_heartbeat_failures_total",
		Help: "Number of failed registry heartbeat attempts.",
	})

	// RemoteCallFailures counts degraded profile enrichment calls.
	RemoteCallFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engage_remote_call_failures_total",
		Help: "Number of failed cross-service calls by target service.",
	}, []string{"service"})
)
