package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersPlacedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Total number of orders placed",
	})

	OrdersRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_rejected_total",
		Help: "Total number of rejected checkouts",
	}, []string{"reason"})

	OrdersVoidedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_voided_total",
		Help: "Total number of voided orders",
	})

	CheckoutLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "checkout_duration_seconds",
		Help:    "Latency of the checkout transaction",
		Buckets: prometheus.DefBuckets,
	})

	PointsRedeemedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "points_redeemed_total",
		Help: "Total loyalty points redeemed for rewards",
	})

	PointsEarnedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "points_earned_total",
		Help: "Total loyalty points accrued on checkouts",
	})

	StockDeductionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_deductions_total",
		Help: "Total number of inventory rows deducted by checkouts",
	})

	StockAlertsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_alerts_total",
		Help: "Total number of low-stock alerts recorded",
	})

	MenuCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "menu_cache_hits_total",
		Help: "Total number of menu reads served from cache",
	})

	MenuCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "menu_cache_misses_total",
		Help: "Total number of menu reads that fell through to the database",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
