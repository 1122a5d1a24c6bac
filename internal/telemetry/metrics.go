package telemetry

import "github.com/prometheus/client_golang/prometheus"

var DailyRoutineRunsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "postflow",
		Subsystem: "daily_routine",
		Name:      "runs_total",
		Help:      "Total number of daily routine invocations by outcome status.",
	},
	[]string{"status"},
)

var DailyRoutineDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "postflow",
		Subsystem: "daily_routine",
		Name:      "duration_seconds",
		Help:      "Daily routine wall-clock duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"status"},
)

var PostsClaimedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "postflow",
		Subsystem: "posting",
		Name:      "claimed_total",
		Help:      "Total number of posts claimed by the publish worker.",
	},
)

var PostsPublishedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "postflow",
		Subsystem: "posting",
		Name:      "published_total",
		Help:      "Total number of posts resolved by the publish worker by outcome.",
	},
	[]string{"outcome"},
)

var BudgetReservationsRejectedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "postflow",
		Subsystem: "ledger",
		Name:      "reservations_rejected_total",
		Help:      "Total number of budget reservations rejected as over-budget, by bucket.",
	},
	[]string{"bucket"},
)

var OAuthRefreshTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "postflow",
		Subsystem: "oauth",
		Name:      "refresh_total",
		Help:      "Total number of X OAuth token refresh attempts by outcome.",
	},
	[]string{"outcome"},
)

var AutoStopsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "postflow",
		Subsystem: "guard",
		Name:      "auto_stops_total",
		Help:      "Total number of auto-stop triggers by reason.",
	},
	[]string{"reason"},
)

var DedupeCacheHitsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "postflow",
		Subsystem: "posting",
		Name:      "dedupe_cache_total",
		Help:      "Total number of content-hash dedupe checks by cache outcome (hit/miss/fallback).",
	},
	[]string{"outcome"},
)

var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "postflow",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds by method, route and status.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "route", "status"},
)

var SchedulerTicksTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "postflow",
		Subsystem: "scheduler",
		Name:      "ticks_total",
		Help:      "Total number of scheduler trigger firings by trigger kind.",
	},
	[]string{"trigger"},
)

// All returns every postflow metric collector for registration.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		DailyRoutineRunsTotal,
		DailyRoutineDuration,
		PostsClaimedTotal,
		PostsPublishedTotal,
		BudgetReservationsRejectedTotal,
		OAuthRefreshTotal,
		AutoStopsTotal,
		DedupeCacheHitsTotal,
		SchedulerTicksTotal,
		HTTPRequestDuration,
	}
}
