// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	syncOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_sync_operations_total",
			Help: "Gallery synchronization operations by outcome",
		},
		[]string{"op", "result"},
	)

	syncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gallery_sync_duration_seconds",
			Help:    "Latency of gallery synchronization operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	likeRollbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gallery_like_rollbacks_total",
			Help: "Optimistic like toggles reverted after a remote failure",
		},
	)

	orphansReported = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_orphans_reported_total",
			Help: "Stored objects left without an image row",
		},
		[]string{"reason"},
	)

	orphansRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gallery_orphans_removed_total",
			Help: "Orphaned objects removed by the worker",
		},
	)

	activeStores = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gallery_session_stores",
			Help: "Per-session gallery stores currently held in memory",
		},
	)

	httpRequests = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gallery_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// ObserveSync records one synchronization operation.
func ObserveSync(op string, started time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	syncOperations.WithLabelValues(op, result).Inc()
	syncDuration.WithLabelValues(op).Observe(time.Since(started).Seconds())
}

func LikeRolledBack() { likeRollbacks.Inc() }

func OrphanReported(reason string) { orphansReported.WithLabelValues(reason).Inc() }

func OrphansRemoved(n int) { orphansRemoved.Add(float64(n)) }

func SetActiveStores(n int) { activeStores.Set(float64(n)) }

func ObserveHTTP(method, route, status string, elapsed time.Duration) {
	httpRequests.WithLabelValues(method, route, status).Observe(elapsed.Seconds())
}
