// Package telemetry owns the Prometheus collectors shared across the
// service. Collectors are created eagerly so packages can use them in
// tests; Register exposes them on the default registry once.
package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "execdash"

var (
	StoreOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Metrics store operations by kind and outcome.",
		},
		[]string{"op", "outcome"},
	)

	FeedSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_subscribers",
			Help:      "Active change feed subscriptions in this process.",
		},
	)

	FeedDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_deliveries_total",
			Help:      "Change feed notifications by result (delivered, dropped).",
		},
		[]string{"result"},
	)

	EditorSubmits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "editor_submits_total",
			Help:      "Admin editor submits by status.",
		},
		[]string{"status"},
	)

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served by method and status.",
		},
		[]string{"method", "status"},
	)

	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Histogram of HTTP request durations in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method"},
	)
)

var registerOnce sync.Once

// Register adds every collector to the default registry. Safe to call more
// than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(StoreOps, FeedSubscribers, FeedDeliveries, EditorSubmits, HTTPRequests, HTTPDuration)
	})
}
