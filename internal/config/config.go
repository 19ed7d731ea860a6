// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Stream      StreamConfig      `koanf:"stream"`
	Resolver    ResolverConfig    `koanf:"resolver"`
	Security    SecurityConfig    `koanf:"security"`
	Sequence    SequenceConfig    `koanf:"sequence"`
	Directory   DirectoryConfig   `koanf:"directory"`
	Ingest      IngestConfig      `koanf:"ingest"`
	ProcMetrics ProcMetricsConfig `koanf:"procmetrics"`
	Supervisor  SupervisorConfig  `koanf:"supervisor"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port              int           `koanf:"port"`
	Host              string        `koanf:"host"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
	Environment       string        `koanf:"environment"`
}

// StreamConfig holds realtime delivery settings.
type StreamConfig struct {
	// HeartbeatInterval is the liveness tick period.
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval"`

	// StaleAfter reclaims sessions with no successful push for this long.
	// Zero means three heartbeat intervals.
	StaleAfter time.Duration `koanf:"stale_after"`

	// SendBuffer is the per-connection outbound queue depth. A full queue
	// is treated as a failed push.
	SendBuffer int `koanf:"send_buffer"`

	// ViewPermission is the team permission required to receive team-scoped events.
	ViewPermission string `koanf:"view_permission"`

	// KeepAlive is the SSE comment interval that keeps proxies from idling out.
	KeepAlive time.Duration `koanf:"keep_alive"`

	// WebSocketEnabled mounts the /api/v1/ws endpoint.
	WebSocketEnabled bool `koanf:"websocket_enabled"`

	// WebSocketOrigins restricts the upgrade Origin header. Empty allows same-host only.
	WebSocketOrigins []string `koanf:"websocket_origins"`
}

// ResolverConfig holds team permission resolution settings.
type ResolverConfig struct {
	Timeout            time.Duration `koanf:"timeout"`
	CacheTTL           time.Duration `koanf:"cache_ttl"`
	CacheSize          int           `koanf:"cache_size"`
	BreakerFailures    uint32        `koanf:"breaker_failures"`
	BreakerOpenTimeout time.Duration `koanf:"breaker_open_timeout"`
}

// SecurityConfig holds authentication and request limiting settings.
type SecurityConfig struct {
	AuthMode       string        `koanf:"auth_mode"`
	JWTSecret      string        `koanf:"jwt_secret"`
	SessionTimeout time.Duration `koanf:"session_timeout"`
	CORSOrigins    []string      `koanf:"cors_origins"`

	// SubscribeRateLimit bounds subscribe/unsubscribe calls per client IP per window.
	SubscribeRateLimit  int           `koanf:"subscribe_rate_limit"`
	SubscribeRateWindow time.Duration `koanf:"subscribe_rate_window"`
	RateLimitDisabled   bool          `koanf:"rate_limit_disabled"`
}

// SequenceConfig selects where per-topic sequence high-water marks live.
type SequenceConfig struct {
	// Store is "memory" (default) or "badger".
	Store string `koanf:"store"`
	// Path is the badger directory (required when store=badger).
	Path      string `koanf:"path"`
	LeaseSize uint64 `koanf:"lease_size"`
}

// DirectoryConfig points at the YAML users/teams/analyses document.
type DirectoryConfig struct {
	File string `koanf:"file"`
	// Watch reloads the file when it changes and refreshes every client.
	Watch bool `koanf:"watch"`
}

// IngestConfig controls the event ingest bridge.
type IngestConfig struct {
	Enabled bool `koanf:"enabled"`
	// Backend is "gochannel" (in-process) or "nats" (requires the nats build tag).
	Backend       string        `koanf:"backend"`
	URL           string        `koanf:"url"`
	Topic         string        `koanf:"topic"`
	QueueGroup    string        `koanf:"queue_group"`
	DurableName   string        `koanf:"durable_name"`
	MaxReconnects int           `koanf:"max_reconnects"`
	ReconnectWait time.Duration `koanf:"reconnect_wait"`
	AckWait       time.Duration `koanf:"ack_wait"`
	CloseTimeout  time.Duration `koanf:"close_timeout"`
}

// ProcMetricsConfig controls the periodic metrics broadcast.
type ProcMetricsConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Interval time.Duration `koanf:"interval"`
	// Host adds host-wide CPU and memory to snapshots (admins only).
	Host bool `koanf:"host"`
}

// SupervisorConfig mirrors the suture failure parameters.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold"`
	FailureDecay     float64       `koanf:"failure_decay"`
	FailureBackoff   time.Duration `koanf:"failure_backoff"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// EffectiveStaleAfter returns StaleAfter, or three heartbeat intervals when unset.
func (s StreamConfig) EffectiveStaleAfter() time.Duration {
	if s.StaleAfter > 0 {
		return s.StaleAfter
	}
	return 3 * s.HeartbeatInterval
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}
