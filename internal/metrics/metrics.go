// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Stream Metrics
	SessionsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relay_sessions_active",
			Help: "Number of connected stream sessions",
		},
		[]string{"transport"}, // "sse", "websocket"
	)

	TopicsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_topics_active",
			Help: "Number of topic channels with at least one subscriber",
		},
	)

	SequenceTopics = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_sequence_topics",
			Help: "Number of topics with a live sequence counter",
		},
	)

	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_deliveries_total",
			Help: "Total number of successful event deliveries",
		},
		[]string{"scope"},
	)

	DeliveryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_delivery_failures_total",
			Help: "Total number of failed event deliveries",
		},
		[]string{"scope", "reason"}, // reason: "slow_consumer", "closed", "other"
	)

	PublishDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_publish_duration_seconds",
			Help:    "Duration of a publish call including scope resolution",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"scope"},
	)

	StaleSessionsReclaimed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_stale_sessions_reclaimed_total",
			Help: "Total number of sessions reclaimed by the liveness monitor",
		},
	)

	ResolutionErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_resolution_errors_total",
			Help: "Total number of failed team permission lookups",
		},
	)

	TeamCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_team_cache_total",
			Help: "Team permission cache lookups",
		},
		[]string{"result"}, // "hit", "miss"
	)

	SubscriptionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_subscription_requests_total",
			Help: "Total number of subscribe and unsubscribe requests",
		},
		[]string{"action"},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_api_active_requests",
			Help: "Number of API requests currently being served",
		},
	)

	// Ingest Metrics
	IngestMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_ingest_messages_total",
			Help: "Total number of ingest envelopes processed",
		},
		[]string{"result"}, // "published", "invalid", "failed"
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
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)
)

// RecordPublish records the outcome of one publish call.
func RecordPublish(scope string, delivered int, duration time.Duration) {
	if delivered > 0 {
		DeliveriesTotal.WithLabelValues(scope).Add(float64(delivered))
	}
	PublishDuration.WithLabelValues(scope).Observe(duration.Seconds())
}

// RecordDeliveryFailure records one failed write.
func RecordDeliveryFailure(scope, reason string) {
	DeliveryFailures.WithLabelValues(scope, reason).Inc()
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the in-flight request gauge.
func TrackActiveRequest(start bool) {
	if start {
		APIActiveRequests.Inc()
		return
	}
	APIActiveRequests.Dec()
}

// RecordTeamCache records a permission cache lookup.
func RecordTeamCache(hit bool) {
	if hit {
		TeamCacheLookups.WithLabelValues("hit").Inc()
		return
	}
	TeamCacheLookups.WithLabelValues("miss").Inc()
}

// RecordIngest records one processed ingest envelope.
func RecordIngest(result string) {
	IngestMessages.WithLabelValues(result).Inc()
}
