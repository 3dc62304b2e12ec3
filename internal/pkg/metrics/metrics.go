package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SettlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mintgate_settlements_total",
		Help: "The total number of settlement attempts by outcome",
	}, []string{"status", "medium"})

	GuardRejects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mintgate_guard_rejects_total",
		Help: "Total eligibility guard rejections",
	}, []string{"reason"})

	LatencyBucket = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mintgate_latency_bucket",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	OracleRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mintgate_oracle_requests_total",
		Help: "Price oracle lookups by source and outcome",
	}, []string{"source", "status"})

	DispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mintgate_dispatch_total",
		Help: "Lazy mint dispatches by capability and outcome",
	}, []string{"capability", "status"})

	NonceMarkFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mintgate_nonce_mark_failures_total",
		Help: "Committed settlements whose nonce could not be marked used; each one is an open replay window",
	})
)
