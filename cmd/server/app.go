// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tomtom215/relay/internal/api"
	"github.com/tomtom215/relay/internal/auth"
	"github.com/tomtom215/relay/internal/config"
	"github.com/tomtom215/relay/internal/directory"
	"github.com/tomtom215/relay/internal/ingest"
	"github.com/tomtom215/relay/internal/logging"
	"github.com/tomtom215/relay/internal/models"
	"github.com/tomtom215/relay/internal/procmetrics"
	"github.com/tomtom215/relay/internal/realtime"
	"github.com/tomtom215/relay/internal/sequence"
	"github.com/tomtom215/relay/internal/supervisor"
	"github.com/tomtom215/relay/internal/supervisor/services"
)

// reloadNoticeTimeout bounds the refresh broadcast after a directory reload.
const reloadNoticeTimeout = 5 * time.Second

// app is the wired server.
type app struct {
	cfg        *config.Config
	directory  *directory.Directory
	sequences  *sequence.Tracker
	resolver   *realtime.Resolver
	dispatcher *realtime.Dispatcher
	bus        *ingest.Bus
	server     *http.Server
	tree       *supervisor.SupervisorTree
}

// newApp builds every component from cfg and registers the long-running ones
// with a supervisor tree. Nothing runs until run is called.
func newApp(cfg *config.Config) (*app, error) {
	dir, err := directory.LoadFile(cfg.Directory.File, cfg.Stream.ViewPermission)
	if err != nil {
		return nil, err
	}

	store, err := openSequenceStore(cfg.Sequence)
	if err != nil {
		return nil, err
	}
	sequences := sequence.NewTracker(store, int(cfg.Sequence.LeaseSize))

	registry := realtime.NewRegistry()
	resolver := realtime.NewResolver(dir, realtime.ResolverConfig{
		Timeout:            cfg.Resolver.Timeout,
		CacheTTL:           cfg.Resolver.CacheTTL,
		CacheSize:          cfg.Resolver.CacheSize,
		BreakerFailures:    cfg.Resolver.BreakerFailures,
		BreakerOpenTimeout: cfg.Resolver.BreakerOpenTimeout,
	})
	dispatcher := realtime.NewDispatcher(registry, resolver, dir, sequences, realtime.DispatcherConfig{
		Permission: cfg.Stream.ViewPermission,
	})

	a := &app{
		cfg:        cfg,
		directory:  dir,
		sequences:  sequences,
		resolver:   resolver,
		dispatcher: dispatcher,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfigFrom(cfg.Supervisor))
	if err != nil {
		_ = sequences.Close()
		return nil, fmt.Errorf("create supervisor tree: %w", err)
	}
	a.tree = tree

	tree.AddDataService(services.NewRunnerService("session-registry", registry))
	tree.AddMessagingService(services.NewRunnerService("liveness-monitor", realtime.NewMonitor(dispatcher, realtime.LivenessConfig{
		Interval:   cfg.Stream.HeartbeatInterval,
		StaleAfter: cfg.Stream.EffectiveStaleAfter(),
	})))

	var tracker ingest.ProcessTracker
	if cfg.ProcMetrics.Enabled {
		source := procmetrics.NewSource(cfg.ProcMetrics.Host)
		tracker = source
		tree.AddMessagingService(services.NewRunnerService("metrics-publisher",
			realtime.NewMetricsPublisher(dispatcher, source, cfg.ProcMetrics.Interval)))
	}
	events := ingest.NewHandler(dispatcher, tracker)
	handler := api.NewHandler(dispatcher, dir, events, cfg)

	if cfg.Ingest.Enabled {
		bus, err := openBus(cfg.Ingest)
		if err != nil {
			_ = sequences.Close()
			return nil, err
		}
		a.bus = bus
		bridge := ingest.NewBridge(bus, cfg.Ingest.Topic, events)
		handler.SetEventPublisher(bridge)
		tree.AddMessagingService(services.NewRunnerService("ingest-bridge", bridge))
	}

	authMw, err := newAuthMiddleware(&cfg.Security)
	if err != nil {
		a.close()
		return nil, err
	}
	router := api.NewRouter(handler, authMw, api.NewChiMiddleware(api.ChiMiddlewareConfigFromSecurity(&cfg.Security)))

	// No WriteTimeout: streams stay open indefinitely.
	a.server = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
	tree.AddAPIService(services.NewHTTPServerService(a.server, cfg.Server.ShutdownTimeout))

	return a, nil
}

func openSequenceStore(cfg config.SequenceConfig) (sequence.Store, error) {
	if cfg.Store != "badger" {
		return sequence.NewMemoryStore(), nil
	}
	store, err := sequence.OpenBadgerStore(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open sequence store: %w", err)
	}
	logging.Info().Str("path", cfg.Path).Msg("Durable sequence store opened")
	return store, nil
}

func openBus(cfg config.IngestConfig) (*ingest.Bus, error) {
	logger := logging.NewWatermillLogger()
	if cfg.Backend != "nats" {
		return ingest.NewGoChannelBus(logger), nil
	}
	if !ingest.NATSAvailable {
		return nil, errors.New("INGEST_BACKEND=nats requires a binary built with -tags nats")
	}
	bus, err := ingest.NewNATSBus(ingest.NATSConfig{
		URL:           cfg.URL,
		QueueGroup:    cfg.QueueGroup,
		DurableName:   cfg.DurableName,
		MaxReconnects: cfg.MaxReconnects,
		ReconnectWait: cfg.ReconnectWait,
		AckWait:       cfg.AckWait,
		CloseTimeout:  cfg.CloseTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("connect ingest bus: %w", err)
	}
	return bus, nil
}

func newAuthMiddleware(sec *config.SecurityConfig) (*auth.Middleware, error) {
	if sec.AuthMode == "none" {
		logging.Warn().Msg("Authentication is DISABLED (AUTH_MODE=none); every client is an administrator")
		return auth.NewMiddleware(nil, sec.AuthMode), nil
	}
	jwtManager, err := auth.NewJWTManager(sec)
	if err != nil {
		return nil, fmt.Errorf("initialize JWT manager: %w", err)
	}
	return auth.NewMiddleware(jwtManager, sec.AuthMode), nil
}

// run serves until ctx ends. Open sessions are told the server is going away
// before the registry and HTTP server stop.
func (a *app) run(ctx context.Context) error {
	defer a.close()

	if a.cfg.Directory.Watch {
		if err := config.WatchConfigFile(a.cfg.Directory.File, a.reloadDirectory); err != nil {
			logging.Warn().Err(err).Str("file", a.cfg.Directory.File).Msg("Directory watch unavailable")
		}
	}

	logging.Info().Str("addr", a.server.Addr).Msg("Starting supervisor tree")
	err := a.tree.ServeWithDrain(ctx, a.drain)

	if report, reportErr := a.tree.UnstoppedServiceReport(); reportErr == nil {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop within the shutdown timeout")
		}
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (a *app) drain(ctx context.Context) {
	n, err := a.dispatcher.InvalidateAll(ctx, models.InvalidationServerShutdown)
	if err != nil {
		logging.Warn().Err(err).Msg("Shutdown notice failed")
		return
	}
	logging.Info().Int("sessions", n).Msg("Shutdown notice sent")
}

// reloadDirectory swaps in the edited directory file and tells every client
// to refetch its snapshot.
func (a *app) reloadDirectory() {
	if err := a.directory.Reload(a.cfg.Directory.File); err != nil {
		logging.Error().Err(err).Str("file", a.cfg.Directory.File).Msg("Directory reload failed, keeping previous contents")
		return
	}
	a.resolver.Purge()

	ctx, cancel := context.WithTimeout(context.Background(), reloadNoticeTimeout)
	defer cancel()
	if _, err := a.dispatcher.Refresh(ctx, "directory_reloaded"); err != nil {
		logging.Warn().Err(err).Msg("Refresh after directory reload failed")
	}
}

func (a *app) close() {
	if a.bus != nil {
		if err := a.bus.Close(); err != nil {
			logging.Err(err).Msg("Error closing ingest bus")
		}
	}
	if err := a.sequences.Close(); err != nil {
		logging.Err(err).Msg("Error closing sequence store")
	}
}
