// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

/*
Package middleware provides HTTP middleware shared by the API router.

  - RequestID: accepts or generates X-Request-ID and seeds the logging
    context with request and correlation ids
  - PrometheusMetrics: request count, latency and in-flight gauge, labelled
    by chi route pattern

Both take and return http.HandlerFunc; Handler and the api package's
chiMiddleware adapter convert them for chi's r.Use.

The metrics wrapper forwards Flush, Hijack and Unwrap so it can sit in front
of the event-stream and WebSocket endpoints.
*/
package middleware
