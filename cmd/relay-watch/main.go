// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

// Command relay-watch follows a Relay event stream from the terminal.
//
// It keeps one stream open, reconnecting with backoff, subscribes to the
// given topics, and prints every event after heartbeats and duplicate log
// lines are filtered out. SIGCONT (for example after resuming a stopped job
// with fg) reconnects immediately. SIGINT or SIGTERM exits.
//
//	relay-watch --url https://relay.example.com --token "$TOKEN" --topics job-42,job-43
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
