// Package metrics exposes Prometheus collectors for the ingestion
// pipeline. Collectors register on the default registry at package
// load, so observers are safe to call from any phase.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pagesDiscoveredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wikichron_pages_discovered_total",
			Help: "Total number of article pages discovered by the crawl.",
		},
	)

	pagesScrapedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikichron_pages_scraped_total",
			Help: "Total number of pages scraped, labeled by status.",
		},
		[]string{"status"},
	)

	fetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikichron_fetches_total",
			Help: "Total number of HTTP fetches, labeled by code.",
		},
		[]string{"code"},
	)

	fetchDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wikichron_fetch_duration_seconds",
			Help:    "Histogram of page fetch latencies.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)

	imagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikichron_images_total",
			Help: "Total number of images handled, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	modelInvocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikichron_model_invocations_total",
			Help: "Total number of model invocations, labeled by status.",
		},
		[]string{"status"},
	)

	batchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikichron_batches_total",
			Help: "Total number of analysis batches, labeled by status.",
		},
		[]string{"status"},
	)

	retriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikichron_retries_total",
			Help: "Total number of retry attempts, labeled by operation.",
		},
		[]string{"op"},
	)

	phaseDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wikichron_phase_duration_seconds",
			Help:    "Histogram of phase run durations.",
			Buckets: []float64{1, 10, 60, 300, 900, 3600, 10800},
		},
		[]string{"phase"},
	)

	checkpointSavesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikichron_checkpoint_saves_total",
			Help: "Total number of checkpoint writes, labeled by key.",
		},
		[]string{"key"},
	)
)

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePageDiscovered increments the discovered pages counter.
func ObservePageDiscovered() {
	pagesDiscoveredTotal.Inc()
}

// ObservePageScraped increments the scrape counter for the given status.
func ObservePageScraped(status string) {
	pagesScrapedTotal.WithLabelValues(status).Inc()
}

// ObserveFetch records one HTTP fetch.
func ObserveFetch(code int, duration time.Duration) {
	fetchesTotal.WithLabelValues(strconv.Itoa(code)).Inc()
	fetchDurationSeconds.Observe(duration.Seconds())
}

// ObserveImage increments the image counter for the given outcome.
func ObserveImage(outcome string) {
	imagesTotal.WithLabelValues(outcome).Inc()
}

// ObserveModelInvocation increments the model invocation counter.
func ObserveModelInvocation(status string) {
	modelInvocationsTotal.WithLabelValues(status).Inc()
}

// ObserveBatch increments the batch counter for the given status.
func ObserveBatch(status string) {
	batchesTotal.WithLabelValues(status).Inc()
}

// ObserveRetry increments the retry counter for the given operation.
func ObserveRetry(op string) {
	retriesTotal.WithLabelValues(op).Inc()
}

// ObservePhase records the duration of one phase run.
func ObservePhase(phase string, duration time.Duration) {
	phaseDurationSeconds.WithLabelValues(phase).Observe(duration.Seconds())
}

// ObserveCheckpointSave increments the checkpoint write counter.
func ObserveCheckpointSave(key string) {
	checkpointSavesTotal.WithLabelValues(key).Inc()
}
