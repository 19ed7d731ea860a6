// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

/*
Package supervisor provides process supervision for Relay using suture v4.

The tree organizes the long-running services into three layers:

	RootSupervisor ("relay")
	├── DataSupervisor ("data-layer")
	│   └── session-registry
	├── MessagingSupervisor ("messaging-layer")
	│   ├── liveness-monitor
	│   ├── metrics-publisher (if PROCMETRICS_ENABLED)
	│   └── ingest-bridge (if INGEST_ENABLED)
	└── APISupervisor ("api-layer")
	    └── http-server

Crashed services restart with suture's failure decay and backoff. Supervisor
events are logged through sutureslog, whose slog handler forwards to zerolog
(see logging.NewSlogLogger).

# Shutdown

ServeWithDrain separates the two halves of a graceful stop. When the caller's
context ends, the drain function runs first while the registry and the HTTP
server are still serving, which is where main broadcasts sessionInvalidated
with reason server_shutdown. The tree is canceled afterwards; the registry
then closes every connection and the HTTP server shuts down.

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfigFrom(cfg.Supervisor))
	if err != nil {
	    return err
	}
	tree.AddDataService(services.NewRunnerService("session-registry", registry))
	tree.AddMessagingService(services.NewRunnerService("liveness-monitor", monitor))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	err = tree.ServeWithDrain(ctx, func(ctx context.Context) {
	    dispatcher.InvalidateAll(ctx, models.InvalidationServerShutdown)
	})

Services that miss the shutdown timeout are listed by UnstoppedServiceReport.
*/
package supervisor
