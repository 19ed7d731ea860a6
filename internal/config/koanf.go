// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/relay/config.yaml",
	"/etc/relay/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              8787,
			Host:              "0.0.0.0",
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
			ShutdownTimeout:   15 * time.Second,
			Environment:       "development",
		},
		Stream: StreamConfig{
			HeartbeatInterval: 30 * time.Second,
			StaleAfter:        0, // 3x heartbeat
			SendBuffer:        256,
			ViewPermission:    "view_analyses",
			KeepAlive:         15 * time.Second,
			WebSocketEnabled:  true,
			WebSocketOrigins:  []string{},
		},
		Resolver: ResolverConfig{
			Timeout:            2 * time.Second,
			CacheTTL:           0, // disabled; permission changes apply immediately
			CacheSize:          1024,
			BreakerFailures:    5,
			BreakerOpenTimeout: 30 * time.Second,
		},
		Security: SecurityConfig{
			AuthMode:            "jwt",
			JWTSecret:           "",
			SessionTimeout:      24 * time.Hour,
			CORSOrigins:         []string{},
			SubscribeRateLimit:  60,
			SubscribeRateWindow: time.Minute,
			RateLimitDisabled:   false,
		},
		Sequence: SequenceConfig{
			Store:     "memory",
			Path:      "",
			LeaseSize: 1000,
		},
		Directory: DirectoryConfig{
			File:  "directory.yaml",
			Watch: false,
		},
		Ingest: IngestConfig{
			Enabled:       false,
			Backend:       "gochannel",
			URL:           "nats://127.0.0.1:4222",
			Topic:         "relay.events",
			QueueGroup:    "relay",
			DurableName:   "relay-ingest",
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
			AckWait:       30 * time.Second,
			CloseTimeout:  10 * time.Second,
		},
		ProcMetrics: ProcMetricsConfig{
			Enabled:  true,
			Interval: 5 * time.Second,
			Host:     true,
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5.0,
			FailureDecay:     30.0,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load loads configuration using Koanf with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
func Load() (*Config, error) {
	return load(findConfigFile())
}

// LoadFile is Load with an explicit config file path. An empty path skips
// the file layer.
func LoadFile(path string) (*Config, error) {
	return load(path)
}

func load(configPath string) (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// HTTP_PORT -> server.port
	// HEARTBEAT_INTERVAL -> stream.heartbeat_interval
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"security.cors_origins",
	"stream.websocket_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps flat environment variable names to koanf paths.
var envMappings = map[string]string{
	// Server
	"http_port":                "server.port",
	"http_host":                "server.host",
	"http_read_header_timeout": "server.read_header_timeout",
	"http_idle_timeout":        "server.idle_timeout",
	"shutdown_timeout":         "server.shutdown_timeout",
	"environment":              "server.environment",

	// Stream
	"heartbeat_interval":     "stream.heartbeat_interval",
	"stale_after":            "stream.stale_after",
	"stream_send_buffer":     "stream.send_buffer",
	"stream_view_permission": "stream.view_permission",
	"stream_keep_alive":      "stream.keep_alive",
	"enable_websocket":       "stream.websocket_enabled",
	"websocket_origins":      "stream.websocket_origins",

	// Resolver
	"resolver_timeout":              "resolver.timeout",
	"resolver_cache_ttl":            "resolver.cache_ttl",
	"resolver_cache_size":           "resolver.cache_size",
	"resolver_breaker_failures":     "resolver.breaker_failures",
	"resolver_breaker_open_timeout": "resolver.breaker_open_timeout",

	// Security
	"auth_mode":             "security.auth_mode",
	"jwt_secret":            "security.jwt_secret",
	"session_timeout":       "security.session_timeout",
	"cors_origins":          "security.cors_origins",
	"subscribe_rate_limit":  "security.subscribe_rate_limit",
	"subscribe_rate_window": "security.subscribe_rate_window",
	"disable_rate_limit":    "security.rate_limit_disabled",

	// Sequence
	"sequence_store":      "sequence.store",
	"sequence_path":       "sequence.path",
	"sequence_lease_size": "sequence.lease_size",

	// Directory
	"directory_file":  "directory.file",
	"directory_watch": "directory.watch",

	// Ingest
	"ingest_enabled":       "ingest.enabled",
	"ingest_backend":       "ingest.backend",
	"nats_url":             "ingest.url",
	"ingest_topic":         "ingest.topic",
	"nats_queue_group":     "ingest.queue_group",
	"nats_durable_name":    "ingest.durable_name",
	"nats_max_reconnects":  "ingest.max_reconnects",
	"nats_reconnect_wait":  "ingest.reconnect_wait",
	"nats_ack_wait":        "ingest.ack_wait",
	"ingest_close_timeout": "ingest.close_timeout",

	// Process metrics
	"enable_procmetrics":   "procmetrics.enabled",
	"procmetrics_interval": "procmetrics.interval",
	"procmetrics_host":     "procmetrics.host",

	// Supervisor
	"supervisor_failure_threshold": "supervisor.failure_threshold",
	"supervisor_failure_decay":     "supervisor.failure_decay",
	"supervisor_failure_backoff":   "supervisor.failure_backoff",
	"supervisor_shutdown_timeout":  "supervisor.shutdown_timeout",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - JWT_SECRET -> security.jwt_secret
//   - SEQUENCE_STORE -> sequence.store
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}

	// For unmapped keys, return empty string to skip them
	// This prevents random environment variables from polluting config
	return ""
}

// WatchConfigFile sets up a file watcher for hot-reload capability.
// The caller is responsible for synchronizing access to the reloaded config.
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)
	return provider.Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
