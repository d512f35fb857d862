// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for:
// - ranking and search requests (latency, reason codes, exclusions)
// - retrieval channel health
// - profile and ranking caches
// - feedback ingestion and profile persistence
// - catalog (DuckDB) and feedback store (Badger) operations
// - embedding client and its circuit breaker
// - HTTP API

var (
	// Ranking Metrics
	RankingRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ranking_requests_total",
			Help: "Total ranking requests by operation and reason code",
		},
		[]string{"operation", "reason"}, // operation: recommend, search
	)

	RankingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ranking_duration_seconds",
			Help:    "End-to-end ranking latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"operation", "cache"}, // cache: hit, miss
	)

	RankingCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ranking_candidates",
			Help:    "Number of candidates retrieved per recommendation request",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10),
		},
	)

	RankingExclusions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ranking_exclusions_total",
			Help: "Candidates removed before ranking, by reason",
		},
		[]string{"reason"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ranking_cache_lookups_total",
			Help: "Cache lookups by cache and result",
		},
		[]string{"cache", "result"}, // cache: ranking, search, profile; result: hit, miss
	)

	// Search Metrics
	SearchChannelRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_channel_requests_total",
			Help: "Retrieval channel calls by channel and status",
		},
		[]string{"channel", "status"}, // status: ok, unavailable, skipped
	)

	SearchChannelHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_channel_hits_total",
			Help: "Ids returned by each retrieval channel",
		},
		[]string{"channel"},
	)

	// Feedback Metrics
	FeedbackEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedback_events_total",
			Help: "Feedback events recorded by action",
		},
		[]string{"action"},
	)

	ProfileUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "profile_updates_total",
			Help: "Profile vector update batches by result",
		},
		[]string{"result"}, // applied, unchanged, failed
	)

	ProfilePendingEvents = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "profile_pending_events",
			Help: "Feedback events waiting for a profile save retry",
		},
	)

	// Event Bus Metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Messages published on the internal event bus",
		},
		[]string{"topic", "result"},
	)

	EventsHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_handled_total",
			Help: "Messages handled from the internal event bus",
		},
		[]string{"topic", "result"},
	)

	// Store Metrics
	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_operation_duration_seconds",
			Help:    "Duration of catalog and feedback store operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"store", "operation"}, // store: duckdb, badger
	)

	StoreOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_operation_errors_total",
			Help: "Failed catalog and feedback store operations",
		},
		[]string{"store", "operation"},
	)

	// Embedding Client Metrics
	EmbedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "embed_requests_total",
			Help: "Embedding service requests by kind and result",
		},
		[]string{"kind", "result"}, // kind: text, image
	)

	EmbedDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "embed_request_duration_seconds",
			Help:    "Embedding service latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Requests through the circuit breaker by result",
		},
		[]string{"name", "result"}, // success, failure, rejected
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current consecutive failures seen by the circuit breaker",
		},
		[]string{"name"},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		},
	)
)

// RecordRanking records the outcome of a recommend or search request.
func RecordRanking(operation, reason string, cacheHit bool, duration time.Duration) {
	RankingRequests.WithLabelValues(operation, reason).Inc()
	RankingDuration.WithLabelValues(operation, hitLabel(cacheHit)).Observe(duration.Seconds())
}

// RecordCacheLookup records a hit or miss for the named cache.
func RecordCacheLookup(cache string, hit bool) {
	CacheLookups.WithLabelValues(cache, hitLabel(hit)).Inc()
}

// RecordExclusions adds per-reason exclusion counts.
func RecordExclusions(counts map[string]int) {
	for reason, n := range counts {
		if n > 0 {
			RankingExclusions.WithLabelValues(reason).Add(float64(n))
		}
	}
}

// RecordChannel records one retrieval channel call.
func RecordChannel(channel, status string, hits int) {
	SearchChannelRequests.WithLabelValues(channel, status).Inc()
	if hits > 0 {
		SearchChannelHits.WithLabelValues(channel).Add(float64(hits))
	}
}

// RecordStoreOperation records a catalog or feedback store call.
func RecordStoreOperation(store, operation string, duration time.Duration, err error) {
	StoreOperationDuration.WithLabelValues(store, operation).Observe(duration.Seconds())
	if err != nil {
		StoreOperationErrors.WithLabelValues(store, operation).Inc()
	}
}

// RecordEmbed records an embedding request.
func RecordEmbed(kind string, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	EmbedRequests.WithLabelValues(kind, result).Inc()
	EmbedDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the in-flight gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

func hitLabel(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}
