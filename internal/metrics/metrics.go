// Package metrics exposes Prometheus collectors for the archiver.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	linksDiscoveredTotal *prometheus.CounterVec
	blobsScannedTotal    *prometheus.CounterVec
	resolveOutcomesTotal *prometheus.CounterVec
	resolveRateLimited   prometheus.Counter
	resolveQueueDepth    prometheus.Gauge
	sinkFlushesTotal     *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		linksDiscoveredTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "googlrot_links_discovered_total",
				Help: "Total candidate links routed by the discovery pipeline, labeled by result.",
			},
			[]string{"result"},
		)

		blobsScannedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "googlrot_blobs_scanned_total",
				Help: "Total source blobs processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		resolveOutcomesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "googlrot_resolve_outcomes_total",
				Help: "Total resolution outcomes written, labeled by classification.",
			},
			[]string{"status"},
		)

		resolveRateLimited = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "googlrot_resolve_ratelimited_total",
				Help: "Total probe attempts dropped due to the rate-limit interstitial.",
			},
		)

		resolveQueueDepth = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "googlrot_resolve_queue_depth",
				Help: "Current number of links waiting in the resolution queue.",
			},
		)

		sinkFlushesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "googlrot_sink_flushes_total",
				Help: "Total durable sink flushes, labeled by sink name.",
			},
			[]string{"sink"},
		)
	})
}

// LinkDiscovered counts one routed candidate ("accepted" or "rejected").
func LinkDiscovered(result string) {
	if linksDiscoveredTotal != nil {
		linksDiscoveredTotal.WithLabelValues(result).Inc()
	}
}

// BlobScanned counts one processed source blob ("ok", "skipped").
func BlobScanned(outcome string) {
	if blobsScannedTotal != nil {
		blobsScannedTotal.WithLabelValues(outcome).Inc()
	}
}

// ResolveOutcome counts one persisted resolution outcome.
func ResolveOutcome(status string) {
	if resolveOutcomesTotal != nil {
		resolveOutcomesTotal.WithLabelValues(status).Inc()
	}
}

// ResolveRateLimited counts one dropped rate-limited attempt.
func ResolveRateLimited() {
	if resolveRateLimited != nil {
		resolveRateLimited.Inc()
	}
}

// SetResolveQueueDepth records the current resolution queue depth.
func SetResolveQueueDepth(depth int) {
	if resolveQueueDepth != nil {
		resolveQueueDepth.Set(float64(depth))
	}
}

// SinkFlush counts one durable sink flush.
func SinkFlush(sink string) {
	if sinkFlushesTotal != nil {
		sinkFlushesTotal.WithLabelValues(sink).Inc()
	}
}
