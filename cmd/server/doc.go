// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

/*
Package main is the entry point for the Relay server.

Relay pushes analysis events to browser and CLI clients over SSE or
WebSocket. Producers call the dispatcher in-process, through the admin API, or
by publishing envelopes on the ingest topic.

# Application Architecture

	RootSupervisor ("relay")
	├── DataSupervisor ("data-layer")
	│   └── session-registry
	├── MessagingSupervisor ("messaging-layer")
	│   ├── liveness-monitor
	│   ├── metrics-publisher (PROCMETRICS_ENABLED)
	│   └── ingest-bridge (INGEST_ENABLED)
	└── APISupervisor ("api-layer")
	    └── http-server

Component initialization order:

 1. Configuration: Koanf v2 (defaults, config.yaml, environment)
 2. Directory: users, teams and analyses from DIRECTORY_FILE (Casbin)
 3. Sequence tracker: memory, or Badger when SEQUENCE_STORE=badger
 4. Registry, resolver (circuit breaker, optional LRU) and dispatcher
 5. Ingest bus: in-process GoChannel, or NATS JetStream (-tags nats)
 6. Authentication: JWT, or AUTH_MODE=none for development
 7. HTTP server: Chi router

# Signal Handling

On SIGINT or SIGTERM every open session receives
{"type":"sessionInvalidated","reason":"server_shutdown"}, then the registry
closes all connections and the HTTP server drains for SHUTDOWN_TIMEOUT.

# Build Tags

	go build ./cmd/server              # GoChannel ingest only
	go build -tags nats ./cmd/server   # adds INGEST_BACKEND=nats

# Example Usage

	export JWT_SECRET=$(openssl rand -base64 32)
	export DIRECTORY_FILE=/etc/relay/directory.yaml
	export INGEST_ENABLED=true
	./relay
*/
package main
