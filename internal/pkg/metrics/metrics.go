package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SpendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_spends_total",
			Help: "Total scoped spends by outcome",
		},
		[]string{"outcome"},
	)
	CompensationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_compensations_total",
			Help: "Total compensating credits issued after failed protected operations",
		},
	)
	WarsFinalizedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wars_finalized_total",
			Help: "Total wars closed by the finalizer, by outcome",
		},
		[]string{"outcome"},
	)
	WarActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "war_actions_total",
			Help: "Total recorded war actions by kind",
		},
		[]string{"kind"},
	)
	RateLimitBlockedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limiter_blocked_total",
			Help: "Total requests blocked by the rate limiter",
		},
		[]string{"path"},
	)
)

func init() {
	prometheus.MustRegister(
		SpendsTotal,
		CompensationsTotal,
		WarsFinalizedTotal,
		WarActionsTotal,
		RateLimitBlockedTotal,
	)
}

// Handler returns the prometheus scrape endpoint handler
func Handler() http.Handler {
	return promhttp.Handler()
}
