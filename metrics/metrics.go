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
	// Ranking
	RankingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "match_ranking_duration_seconds",
			Help:    "Duration of potential match ranking requests in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	CandidatesScored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "match_candidates_scored_total",
			Help: "Total number of candidates scored against a requester, excluding degraded ones",
		},
	)

	ScoringDegraded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_scoring_degraded_total",
			Help: "Candidates that scored zero because attribute lookup failed",
		},
		[]string{"reason"}, // "timeout", "not_found", "dependency"
	)

	// Lifecycle
	MatchesCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matches_created_total",
			Help: "Total number of match records created",
		},
	)

	MatchesRemoved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matches_removed_total",
			Help: "Total number of match records removed",
		},
		[]string{"action"}, // "reject", "unmatch"
	)

	MatchConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "match_conflicts_total",
			Help: "createMatch calls rejected because the pair already had a record",
		},
	)

	// Attribute store circuit breaker: 0 closed, 1 half-open, 2 open
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "attribute_breaker_state",
			Help: "Circuit breaker state for attribute lookups (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	// Match event fan-out
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_events_published_total",
			Help: "Match events published to subscribers",
		},
		[]string{"type"},
	)

	EventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "match_events_dropped_total",
			Help: "Match events dropped because a subscriber buffer was full",
		},
	)

	// API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordAPIRequest records one finished API request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
