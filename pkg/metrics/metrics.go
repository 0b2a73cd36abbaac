package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "loyalty"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "path"},
	)

	// result is "ok" or an apperror kind.
	DailyClaims = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "daily_claims_total",
			Help:      "Daily reward claims by outcome",
		},
		[]string{"result"},
	)

	Redemptions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redemptions_total",
			Help:      "Reward redemptions by reward and outcome",
		},
		[]string{"reward", "result"},
	)

	CoinsMoved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coins_total",
			Help:      "Coins posted to the ledger by direction and source",
		},
		[]string{"direction", "source"},
	)

	BadgesAwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "badges_awarded_total",
			Help:      "Badges unlocked",
		},
		[]string{"badge"},
	)

	BalanceMismatches = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "balance_mismatches",
			Help:      "Accounts whose cached balance disagreed with the ledger at the last reconcile",
		},
	)

	TxRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tx_retries_total",
			Help:      "Transactions retried after contention",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		DailyClaims,
		Redemptions,
		CoinsMoved,
		BadgesAwarded,
		BalanceMismatches,
		TxRetries,
	)
}

// Result labels a business outcome.
func Result(kind string, err error) string {
	if err == nil {
		return "ok"
	}
	return kind
}

func Handler() http.Handler {
	return promhttp.Handler()
}
