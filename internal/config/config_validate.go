// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package config

import (
	"fmt"
	"strings"
	"time"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateStream(); err != nil {
		return err
	}

	if err := c.validateResolver(); err != nil {
		return err
	}

	if err := c.validateSecurity(); err != nil {
		return err
	}

	if err := c.validateSequence(); err != nil {
		return err
	}

	if err := c.validateIngest(); err != nil {
		return err
	}

	if err := c.validateProcMetrics(); err != nil {
		return err
	}

	return c.validateLogging()
}

// validateServer validates server configuration
func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	return nil
}

// validateStream validates realtime delivery settings
func (c *Config) validateStream() error {
	if c.Stream.HeartbeatInterval < time.Second {
		return fmt.Errorf("HEARTBEAT_INTERVAL must be at least 1s, got %v", c.Stream.HeartbeatInterval)
	}
	if c.Stream.StaleAfter != 0 && c.Stream.StaleAfter <= c.Stream.HeartbeatInterval {
		return fmt.Errorf("STALE_AFTER (%v) must exceed HEARTBEAT_INTERVAL (%v)",
			c.Stream.StaleAfter, c.Stream.HeartbeatInterval)
	}
	if c.Stream.SendBuffer < 1 {
		return fmt.Errorf("STREAM_SEND_BUFFER must be at least 1")
	}
	if strings.TrimSpace(c.Stream.ViewPermission) == "" {
		return fmt.Errorf("STREAM_VIEW_PERMISSION is required")
	}
	if c.Stream.KeepAlive < 0 {
		return fmt.Errorf("STREAM_KEEP_ALIVE must not be negative")
	}
	return nil
}

// validateResolver validates team resolution settings
func (c *Config) validateResolver() error {
	if c.Resolver.Timeout <= 0 {
		return fmt.Errorf("RESOLVER_TIMEOUT must be positive")
	}
	if c.Resolver.CacheTTL < 0 {
		return fmt.Errorf("RESOLVER_CACHE_TTL must not be negative")
	}
	if c.Resolver.CacheTTL > 0 && c.Resolver.CacheSize < 1 {
		return fmt.Errorf("RESOLVER_CACHE_SIZE must be at least 1 when the cache is enabled")
	}
	if c.Resolver.BreakerFailures == 0 {
		return fmt.Errorf("RESOLVER_BREAKER_FAILURES must be at least 1")
	}
	return nil
}

// validateSecurity validates authentication, CORS and rate limit settings
func (c *Config) validateSecurity() error {
	if err := c.validateAuthMode(); err != nil {
		return err
	}

	if err := c.validateCORS(); err != nil {
		return err
	}

	if err := c.validateRateLimits(); err != nil {
		return err
	}

	if c.Security.AuthMode == "jwt" {
		return c.validateJWTSecret()
	}
	return nil
}

// validAuthModes defines the allowed authentication modes
var validAuthModes = map[string]bool{
	"none": true,
	"jwt":  true,
}

// validateAuthMode validates the authentication mode
func (c *Config) validateAuthMode() error {
	if !validAuthModes[c.Security.AuthMode] {
		return fmt.Errorf("AUTH_MODE must be one of: none, jwt")
	}

	// Refuse to start unauthenticated in production.
	if c.Security.AuthMode == "none" && c.IsProduction() {
		return fmt.Errorf("AUTH_MODE=none is not allowed when ENVIRONMENT=production. " +
			"Set AUTH_MODE=jwt or use ENVIRONMENT=development for testing purposes")
	}
	return nil
}

// validateCORS rejects wildcard origins in production with authentication enabled.
func (c *Config) validateCORS() error {
	if c.Security.AuthMode != "none" && c.hasWildcardCORS() && c.IsProduction() {
		return fmt.Errorf("CORS_ORIGINS=* (wildcard) is not allowed in production with authentication enabled. " +
			"Set specific origins: CORS_ORIGINS=https://yourdomain.com,https://app.yourdomain.com " +
			"or use ENVIRONMENT=development for testing purposes")
	}
	return nil
}

// hasWildcardCORS checks if CORS origins contain a wildcard
func (c *Config) hasWildcardCORS() bool {
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

// ShouldWarnAboutCORS returns true if a CORS warning should be logged at startup.
func (c *Config) ShouldWarnAboutCORS() bool {
	return c.Security.AuthMode != "none" && c.hasWildcardCORS()
}

// Rate limit constants
const (
	minRateLimitRequests = 1           // Minimum 1 request allowed
	maxRateLimitRequests = 100000      // Maximum 100K requests per window
	minRateLimitWindow   = time.Second // Minimum 1 second window
	maxRateLimitWindow   = time.Hour   // Maximum 1 hour window
)

// validateRateLimits validates subscribe rate limiting bounds.
func (c *Config) validateRateLimits() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.SubscribeRateLimit < minRateLimitRequests || c.Security.SubscribeRateLimit > maxRateLimitRequests {
		return fmt.Errorf("SUBSCRIBE_RATE_LIMIT must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Security.SubscribeRateWindow < minRateLimitWindow || c.Security.SubscribeRateWindow > maxRateLimitWindow {
		return fmt.Errorf("SUBSCRIBE_RATE_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Server.Environment)
	return env == "production" || env == "prod"
}

// validateJWTSecret validates the JWT signing secret
func (c *Config) validateJWTSecret() error {
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when AUTH_MODE is jwt")
	}
	if len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters for security")
	}
	if containsPlaceholder(c.Security.JWTSecret) {
		return fmt.Errorf("JWT_SECRET contains a placeholder value - generate a secure secret with: openssl rand -base64 32")
	}
	if c.Security.SessionTimeout <= 0 {
		return fmt.Errorf("SESSION_TIMEOUT must be positive")
	}
	return nil
}

// validateSequence validates the sequence store selection
func (c *Config) validateSequence() error {
	switch c.Sequence.Store {
	case "memory":
	case "badger":
		if c.Sequence.Path == "" {
			return fmt.Errorf("SEQUENCE_PATH is required when SEQUENCE_STORE=badger")
		}
	default:
		return fmt.Errorf("SEQUENCE_STORE must be one of: memory, badger")
	}
	if c.Sequence.LeaseSize == 0 {
		return fmt.Errorf("SEQUENCE_LEASE_SIZE must be at least 1")
	}
	return nil
}

// validateIngest validates the ingest bridge (only if enabled)
func (c *Config) validateIngest() error {
	if !c.Ingest.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Ingest.Topic) == "" {
		return fmt.Errorf("INGEST_TOPIC is required when INGEST_ENABLED=true")
	}
	switch c.Ingest.Backend {
	case "gochannel":
		return nil
	case "nats":
		if err := validateNATSURL(c.Ingest.URL); err != nil {
			return fmt.Errorf("NATS_URL is invalid: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("INGEST_BACKEND must be one of: gochannel, nats")
	}
}

// validateProcMetrics validates the metrics broadcast interval (only if enabled)
func (c *Config) validateProcMetrics() error {
	if c.ProcMetrics.Enabled && c.ProcMetrics.Interval < 100*time.Millisecond {
		return fmt.Errorf("PROCMETRICS_INTERVAL must be at least 100ms")
	}
	return nil
}

// validLogLevels defines the allowed log levels
var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validLogFormats defines the allowed log formats
var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

// validateLogging validates logging configuration
func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

// placeholderPatterns defines common placeholder patterns that indicate
// the user forgot to set a real value.
var placeholderPatterns = []string{
	"REPLACE",
	"CHANGEME",
	"CHANGE_ME",
	"YOUR_SECRET",
	"PLACEHOLDER",
	"EXAMPLE",
}

// containsPlaceholder checks if a value contains common placeholder patterns.
func containsPlaceholder(value string) bool {
	upperValue := strings.ToUpper(value)
	for _, pattern := range placeholderPatterns {
		if strings.Contains(upperValue, pattern) {
			return true
		}
	}
	return false
}
