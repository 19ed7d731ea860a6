// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

/*
Package metrics provides Prometheus metrics collection and export for observability.

All collectors are registered on the default registry through promauto and
are exposed at /metrics by the API router:

	curl http://localhost:8787/metrics

# Available Metrics

Stream:
  - relay_sessions_active: connected sessions by transport
  - relay_topics_active: topic channels with at least one member
  - relay_deliveries_total: successful deliveries by scope
  - relay_delivery_failures_total: failed deliveries by scope
  - relay_publish_duration_seconds: publish latency by scope
  - relay_stale_sessions_reclaimed_total: sessions removed by the liveness monitor
  - relay_resolution_errors_total: team permission lookups that failed
  - relay_team_cache_total: permission cache hits and misses

HTTP:
  - relay_api_requests_total, relay_api_request_duration_seconds

Ingest:
  - relay_ingest_messages_total: envelopes by result

Circuit breaker:
  - circuit_breaker_state, circuit_breaker_requests_total,
    circuit_breaker_consecutive_failures, circuit_breaker_state_transitions_total
*/
package metrics
