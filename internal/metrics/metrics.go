// Package metrics provides Prometheus metrics for the Volume backend.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "volume"

var (
	// FeedFetchTotal counts feed fetches by outcome.
	FeedFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_fetch_total",
			Help:      "Total number of feed fetches",
		},
		[]string{"status"},
	)

	// FeedFetchDuration measures feed fetch duration.
	FeedFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_fetch_duration_seconds",
			Help:      "Duration of feed fetches in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// ArticlesIngested counts refreshed articles by outcome.
	ArticlesIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_ingested_total",
			Help:      "Articles handed to the store by feed refresh",
		},
		[]string{"result"},
	)

	// CounterIncrements counts shoutout and click increments.
	CounterIncrements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "counter_increments_total",
			Help:      "Total number of endorsement counter increments",
		},
		[]string{"entity", "result"},
	)

	// FeaturedFlips counts featured flag writes during rotation.
	FeaturedFlips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "featured_flips_total",
			Help:      "Featured flag updates made by rotation",
		},
		[]string{"status"},
	)

	// CacheRequests counts trending cache lookups.
	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trending_cache_requests_total",
			Help:      "Trending cache lookups",
		},
		[]string{"result"},
	)

	// JobRuns counts scheduled job runs by outcome.
	JobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Scheduled job runs",
		},
		[]string{"job", "status"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Duration of scheduled job runs in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"job"},
	)

	// ExternalFailures counts tolerated failures of side services.
	ExternalFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "external_failures_total",
			Help:      "Failures of image, push, event and cache services",
		},
		[]string{"service"},
	)
)

// RecordFeedFetch records one feed fetch.
func RecordFeedFetch(status string, seconds float64) {
	FeedFetchTotal.WithLabelValues(status).Inc()
	FeedFetchDuration.Observe(seconds)
}

// RecordBatchInsert records the outcome of one batch insert.
func RecordBatchInsert(inserted, skipped int) {
	ArticlesIngested.WithLabelValues("inserted").Add(float64(inserted))
	ArticlesIngested.WithLabelValues("skipped").Add(float64(skipped))
}

func RecordIncrement(entity, result string) {
	CounterIncrements.WithLabelValues(entity, result).Inc()
}

func RecordFeaturedFlip(status string) {
	FeaturedFlips.WithLabelValues(status).Inc()
}

func RecordCache(result string) {
	CacheRequests.WithLabelValues(result).Inc()
}

func RecordExternalFailure(service string) {
	ExternalFailures.WithLabelValues(service).Inc()
}

func RecordJobRun(job, status string, seconds float64) {
	JobRuns.WithLabelValues(job, status).Inc()
	JobDuration.WithLabelValues(job).Observe(seconds)
}
