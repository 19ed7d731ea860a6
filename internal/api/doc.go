// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

/*
Package api exposes the event stream and its control endpoints over HTTP
using the chi router.

Routes:

	GET  /api/v1/health/live                       liveness probe
	GET  /api/v1/health/ready                      readiness probe (registry running)
	GET  /metrics                                  Prometheus exposition

	GET  /api/v1/stream                            Server-Sent Events stream
	GET  /api/v1/ws                                WebSocket stream (same JSON frames)
	POST /api/v1/stream/subscribe                  {sessionId, topics} -> {subscribed}
	POST /api/v1/stream/unsubscribe                {sessionId, topics} -> {unsubscribed}

	GET  /api/v1/admin/sessions                    registry snapshot
	POST /api/v1/admin/broadcast                   publish an envelope now -> {notified}
	POST /api/v1/admin/events                      queue an envelope on the ingest topic
	POST /api/v1/admin/refresh                     ask every client to refetch
	POST /api/v1/admin/sessions/{id}/revoke        sessionInvalidated{revoked} + unregister
	POST /api/v1/admin/analyses/{id}/move          reassign and notify both teams
	POST /api/v1/admin/users/{id}/permissions      purge cached grants and notify the user

Every stream connection receives a reserved "connection" frame followed by
"init" before any broadcast can reach it: both are queued on the transport
before the session is registered.

Subscribe filters the requested topics to those the session may view. A
non-admin may only subscribe to analyses owned by a team in its snapshot.

Subscribe and unsubscribe are rate limited per user (falling back to client
IP) with go-chi/httprate. The stream endpoints are not rate limited; the
admin group has its own limit.
*/
package api
