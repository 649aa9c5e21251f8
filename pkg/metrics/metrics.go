package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	NotificationsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_ingested_total",
			Help: "Inbound payment notifications by processing outcome",
		},
		[]string{"outcome"},
	)

	ClaimAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claim_attempts_total",
			Help: "Claim and reject attempts by outcome",
		},
		[]string{"action", "outcome"},
	)

	BroadcastsSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcasts_sent_total",
			Help: "Messages pushed to seller connections",
		},
	)

	BroadcastFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcast_failures_total",
			Help: "Per-connection send failures during fan-out",
		},
	)

	SellerConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "seller_connections_active",
			Help: "Currently registered seller push connections",
		},
	)
)

func Register() {
	prometheus.MustRegister(NotificationsIngested)
	prometheus.MustRegister(ClaimAttempts)
	prometheus.MustRegister(BroadcastsSent)
	prometheus.MustRegister(BroadcastFailures)
	prometheus.MustRegister(SellerConnections)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
