package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "selforder_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "code", "method"},
	)

	OrdersPlaced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "selforder_orders_placed_total",
			Help: "Total orders placed by diners",
		},
	)

	OrdersCancelled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "selforder_orders_cancelled_total",
			Help: "Total orders cancelled inside the confirmation window",
		},
	)

	OrdersAutoConfirmed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "selforder_orders_auto_confirmed_total",
			Help: "Total orders confirmed automatically at window expiry",
		},
	)

	DBTxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "selforder_db_tx_seconds",
			Help:    "Duration of DB transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	OutboxLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "selforder_outbox_lag_seconds",
			Help: "Lag of outbox publishing",
		},
	)

	PushClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "selforder_push_clients",
			Help: "Connected push channel clients",
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "selforder_rate_limit_exceeded_total",
			Help: "Total rate limit exceeded",
		},
	)
)
