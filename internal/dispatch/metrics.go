package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_dispatch_total",
		Help: "Delivery attempts to downstream targets by outcome.",
	}, []string{"target", "kind", "status"})

	dispatchLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_dispatch_latency_seconds",
		Help:    "Delivery attempt latency per downstream target.",
		Buckets: prometheus.DefBuckets,
	}, []string{"target"})

	queueDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_dispatch_queue_dropped_total",
		Help: "Fan-out jobs dropped because the dispatch queue was full.",
	})
)
