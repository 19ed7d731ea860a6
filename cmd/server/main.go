// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/tomtom215/relay/internal/config"
	"github.com/tomtom215/relay/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("auth_mode", cfg.Security.AuthMode).
		Str("sequence_store", cfg.Sequence.Store).
		Bool("ingest_enabled", cfg.Ingest.Enabled).
		Bool("websocket_enabled", cfg.Stream.WebSocketEnabled).
		Dur("heartbeat_interval", cfg.Stream.HeartbeatInterval).
		Msg("Configuration loaded")

	if cfg.ShouldWarnAboutCORS() {
		logging.Warn().Msg("CORS_ORIGINS=* allows any website to open streams with a user's cookie; set explicit origins in production")
	}
	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Subscribe rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}

	a, err := newApp(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize server")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.run(ctx); err != nil {
		stop()
		//nolint:gocritic // run has already released its resources
		logging.Fatal().Err(err).Msg("Supervisor tree error")
	}
	logging.Info().Msg("Server stopped")
}
