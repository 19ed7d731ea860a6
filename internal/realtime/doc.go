// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

/*
Package realtime implements server-side event distribution: the session
registry and its topic channels, the broadcast dispatcher, and the liveness
monitor.

# Architecture

	producers ──► Dispatcher.Publish(Event{Type, Payload, Scope})
	                 │
	                 ├─ Team scope: Resolver ──► TeamPermissions (breaker, cache)
	                 │
	                 └─ Registry (single goroutine owns all maps)
	                        │
	                        ▼
	                 Session.Conn.Send(frame)  (non-blocking enqueue)
	                        │
	                 SSEConn / WSConn write loop ──► client

The Registry is an actor: RunWithContext owns the session map, the topic
membership map and the per-user index, and every operation is a closure
executed on that goroutine. Callers never take a lock. Session liveness
fields are atomics so delivery happens outside the actor.

# Scopes

Every event declares exactly one Scope, a closed union built with Global,
Team, User, AdminOnly or Topic. There is no predicate scope.

A Team scope with an empty team id is delivered to every session. This is
kept for compatibility with producers that emit team events before the
team is known, and every occurrence is logged at warn level.

# Delivery

Publish encodes the shared payload once. Events carrying a Transform are
encoded per recipient. A write that fails (slow consumer or closed
transport) never aborts the loop; failed sessions are unregistered after
the loop, and Publish returns the number of successful deliveries.
*/
package realtime
