// Package metrics exposes Prometheus instrumentation for the synchronizer.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	resolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_sync_resolutions_total",
			Help: "Resolution cycles by resource and outcome",
		},
		[]string{"resource", "outcome"},
	)

	retriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_sync_retries_total",
			Help: "Retries issued after a failed first attempt",
		},
		[]string{"resource"},
	)

	activeSubscriptions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dashboard_sync_active_subscriptions",
			Help: "Subscriptions currently polling",
		},
	)

	resolveSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dashboard_sync_resolve_seconds",
			Help:    "Duration of resolution cycles including retry delay",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"resource"},
	)
)

func init() {
	prometheus.MustRegister(resolutionsTotal)
	prometheus.MustRegister(retriesTotal)
	prometheus.MustRegister(activeSubscriptions)
	prometheus.MustRegister(resolveSeconds)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordResolution(resource, outcome string, seconds float64) {
	resolutionsTotal.WithLabelValues(resource, outcome).Inc()
	resolveSeconds.WithLabelValues(resource).Observe(seconds)
}

func RecordRetry(resource string) {
	retriesTotal.WithLabelValues(resource).Inc()
}

func SubscriptionStarted() {
	activeSubscriptions.Inc()
}

func SubscriptionStopped() {
	activeSubscriptions.Dec()
}
