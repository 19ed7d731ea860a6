// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

/*
Package config provides centralized configuration management for Relay.

Configuration is loaded with Koanf in three layers, each overriding the last:

 1. Built-in defaults (defaultConfig)
 2. Optional YAML file (CONFIG_PATH, then config.yaml, /etc/relay/config.yaml)
 3. Environment variables, mapped from flat names to nested keys

# Environment Variables

Server:
  - HTTP_PORT: Listen port (default: 8787)
  - HTTP_HOST: Bind address (default: 0.0.0.0)
  - SHUTDOWN_TIMEOUT: Graceful shutdown budget (default: 15s)
  - ENVIRONMENT: development or production (default: development)

Stream:
  - HEARTBEAT_INTERVAL: Liveness tick period (default: 30s)
  - STALE_AFTER: Reclaim sessions idle this long (default: 3x heartbeat)
  - STREAM_SEND_BUFFER: Per-connection queue depth (default: 256)
  - STREAM_VIEW_PERMISSION: Team permission for team-scoped events (default: view_analyses)
  - ENABLE_WEBSOCKET: Mount /api/v1/ws (default: true)

Resolver:
  - RESOLVER_TIMEOUT: Team permission lookup timeout (default: 2s)
  - RESOLVER_CACHE_TTL: Optional team user cache TTL, 0 disables (default: 0)
  - RESOLVER_BREAKER_FAILURES: Consecutive failures before the breaker opens (default: 5)

Security:
  - AUTH_MODE: jwt or none (default: jwt; none is refused in production)
  - JWT_SECRET: HMAC signing secret, at least 32 characters
  - CORS_ORIGINS: Comma-separated allowed origins
  - SUBSCRIBE_RATE_LIMIT / SUBSCRIBE_RATE_WINDOW: Per-IP subscribe limits (default: 60 per 1m)

Sequence:
  - SEQUENCE_STORE: memory or badger (default: memory)
  - SEQUENCE_PATH: Badger directory when SEQUENCE_STORE=badger

Ingest:
  - INGEST_ENABLED: Start the event ingest bridge (default: false)
  - INGEST_BACKEND: gochannel or nats (default: gochannel)
  - NATS_URL: NATS server URL(s) (default: nats://127.0.0.1:4222)
  - INGEST_TOPIC: Subject carrying event envelopes (default: relay.events)

Logging:
  - LOG_LEVEL: trace, debug, info, warn, error (default: info)
  - LOG_FORMAT: json or console (default: json)
  - LOG_CALLER: Include caller file:line (default: false)

Unmapped environment variables are ignored.
*/
package config
