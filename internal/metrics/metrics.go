// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

// Package metrics holds the Prometheus collectors for Sahayak. Collectors are
// registered on the default registry through promauto and exposed at
// /metrics by the API router.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Data access layer
	SourceLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sahayak_source_loads_total",
			Help: "Table loads by answering source and outcome",
		},
		[]string{"table", "source", "status"},
	)

	SourceLoadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sahayak_source_load_duration_seconds",
			Help:    "Duration of table loads in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"table", "source"},
	)

	SourceFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sahayak_source_fallbacks_total",
			Help: "Loads answered by the fallback source",
		},
		[]string{"table"},
	)

	// Recommendation requests
	RecommendRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sahayak_recommend_requests_total",
			Help: "Recommendation requests by input mode and outcome",
		},
		[]string{"mode", "status"},
	)

	RecommendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sahayak_recommend_duration_seconds",
			Help:    "End-to-end recommendation latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	RecommendEmptyCategory = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sahayak_recommend_empty_category_total",
			Help: "Responses where a category came back empty",
		},
		[]string{"category"},
	)

	SimilarityStaleLookups = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sahayak_similarity_stale_lookups_total",
			Help: "Similarity lookups for services absent from the matrix",
		},
	)

	// Derived artifacts
	RegenerationRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sahayak_regeneration_runs_total",
			Help: "Artifact rebuilds by artifact and outcome",
		},
		[]string{"artifact", "status"},
	)

	RegenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sahayak_regeneration_duration_seconds",
			Help:    "Artifact rebuild duration in seconds",
			Buckets: []float64{.1, .5, 1, 5, 15, 30, 60, 180, 600},
		},
		[]string{"artifact"},
	)

	RegenerationConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sahayak_regeneration_conflicts_total",
			Help: "Regeneration requests rejected because one was already running",
		},
		[]string{"artifact"},
	)

	ArtifactVersion = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sahayak_artifact_version",
			Help: "Version of the artifact currently served",
		},
		[]string{"artifact"},
	)

	ArtifactEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sahayak_artifact_entries",
			Help: "Number of keys (districts, clusters, services) in the served artifact",
		},
		[]string{"artifact"},
	)

	// Sync pipeline
	SyncTableRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sahayak_sync_table_runs_total",
			Help: "Per-table sync outcomes",
		},
		[]string{"table", "status"},
	)

	SyncRowsSynced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sahayak_sync_rows_total",
			Help: "Rows persisted by the sync pipeline",
		},
		[]string{"table"},
	)

	SyncCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sahayak_sync_cycle_duration_seconds",
			Help:    "Duration of a full sync cycle in seconds",
			Buckets: []float64{1, 5, 30, 60, 300, 900, 1800, 3600},
		},
	)

	SyncLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sahayak_sync_last_success_timestamp",
			Help: "Unix time of the last cycle with at least one successful table",
		},
	)

	SyncAuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sahayak_sync_auth_attempts_total",
			Help: "Login attempts against the external authority",
		},
		[]string{"status"},
	)

	// Embedding provider
	EmbeddingRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sahayak_embedding_requests_total",
			Help: "Embedding provider calls by outcome",
		},
		[]string{"status"},
	)

	EmbeddingCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sahayak_embedding_cache_hits_total",
			Help: "Embedding vectors served from the local cache",
		},
	)

	EmbeddingCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sahayak_embedding_cache_misses_total",
			Help: "Embedding vectors requested from the provider",
		},
	)

	EmbeddingCacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sahayak_embedding_cache_entries",
			Help: "Entries held by the embedding client's caches",
		},
		[]string{"cache"},
	)

	DescriptionEnhancements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sahayak_description_enhancements_total",
			Help: "Service description rewrites by outcome (success, error, cached)",
		},
		[]string{"status"},
	)

	// Circuit breakers
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sahayak_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sahayak_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// HTTP API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sahayak_api_requests_total",
			Help: "HTTP requests by method, route and status code",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sahayak_api_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

func status(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// RecordSourceLoad records one table load attempt against a source.
func RecordSourceLoad(table, source string, duration time.Duration, err error) {
	SourceLoads.WithLabelValues(table, source, status(err)).Inc()
	if err == nil {
		SourceLoadDuration.WithLabelValues(table, source).Observe(duration.Seconds())
	}
}

// RecordSourceFallback records a load that the fallback source answered.
func RecordSourceFallback(table string) {
	SourceFallbacks.WithLabelValues(table).Inc()
}

// RecordRecommendation records a finished recommendation request.
func RecordRecommendation(mode string, duration time.Duration, err error) {
	RecommendRequests.WithLabelValues(mode, status(err)).Inc()
	RecommendDuration.Observe(duration.Seconds())
}

// RecordEmptyCategory records a category that produced no entries.
func RecordEmptyCategory(category string) {
	RecommendEmptyCategory.WithLabelValues(category).Inc()
}

// RecordStaleSimilarity records a lookup for a service missing from the matrix.
func RecordStaleSimilarity() {
	SimilarityStaleLookups.Inc()
}

// RecordRegeneration records one artifact rebuild.
func RecordRegeneration(artifact string, duration time.Duration, err error) {
	RegenerationRuns.WithLabelValues(artifact, status(err)).Inc()
	RegenerationDuration.WithLabelValues(artifact).Observe(duration.Seconds())
}

// RecordRegenerationConflict records a rejected concurrent rebuild.
func RecordRegenerationConflict(artifact string) {
	RegenerationConflicts.WithLabelValues(artifact).Inc()
}

// SetArtifact publishes the version and size of a freshly swapped artifact.
func SetArtifact(artifact string, version int64, entries int) {
	ArtifactVersion.WithLabelValues(artifact).Set(float64(version))
	ArtifactEntries.WithLabelValues(artifact).Set(float64(entries))
}

// RecordSyncTable records the outcome of one table in a sync cycle.
func RecordSyncTable(table string, rows int64, err error) {
	SyncTableRuns.WithLabelValues(table, status(err)).Inc()
	if err == nil {
		SyncRowsSynced.WithLabelValues(table).Add(float64(rows))
	}
}

// RecordSyncCycle records a finished cycle. succeeded is the number of tables
// that were fetched and persisted.
func RecordSyncCycle(duration time.Duration, succeeded int) {
	SyncCycleDuration.Observe(duration.Seconds())
	if succeeded > 0 {
		SyncLastSuccess.Set(float64(time.Now().Unix()))
	}
}

// RecordAuthAttempt records a login attempt.
func RecordAuthAttempt(err error) {
	SyncAuthAttempts.WithLabelValues(status(err)).Inc()
}

// RecordEmbeddingRequest records a provider call.
func RecordEmbeddingRequest(err error) {
	EmbeddingRequests.WithLabelValues(status(err)).Inc()
}

// RecordEmbeddingCache publishes the size of one of the embedding caches.
func RecordEmbeddingCache(name string, size int) {
	EmbeddingCacheEntries.WithLabelValues(name).Set(float64(size))
}

// RecordEnhancement records a description rewrite outcome.
func RecordEnhancement(status string) {
	DescriptionEnhancements.WithLabelValues(status).Inc()
}

// RecordAPIRequest records an HTTP request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
