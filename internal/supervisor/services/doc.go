// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

/*
Package services provides suture.Service wrappers for Relay components.

Each wrapper implements the suture.Service interface:

	type Service interface {
	    Serve(ctx context.Context) error
	}

and fmt.Stringer, so supervisor events name the service.

# Available Services

HTTP Server (HTTPServerService):
  - Wraps *http.Server and translates ListenAndServe into Serve
  - Shuts down with a timeout, then force-closes lingering connections

Context Runners (RunnerService):
  - Wraps anything with RunWithContext(ctx) error
  - Used for the session registry, liveness monitor, metrics publisher
    and ingest bridge

Returning ctx.Err() after cancellation is a normal stop. Any other return
counts as a failure and suture restarts the service with backoff.
*/
package services
