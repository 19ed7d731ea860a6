// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package services

import (
	"context"
)

// ContextRunner is any loop that runs until its context ends.
//
// Satisfied by *realtime.Registry, *realtime.Monitor,
// *realtime.MetricsPublisher and *ingest.Bridge.
type ContextRunner interface {
	RunWithContext(ctx context.Context) error
}

// RunnerService wraps a ContextRunner as a named supervised service.
//
//	tree.AddDataService(services.NewRunnerService("session-registry", registry))
//	tree.AddMessagingService(services.NewRunnerService("liveness-monitor", monitor))
type RunnerService struct {
	runner ContextRunner
	name   string
}

// NewRunnerService creates a wrapper. name appears in supervisor events.
func NewRunnerService(name string, runner ContextRunner) *RunnerService {
	return &RunnerService{runner: runner, name: name}
}

// Serve implements suture.Service by delegating to RunWithContext, which
// returns ctx.Err() on normal shutdown.
func (s *RunnerService) Serve(ctx context.Context) error {
	return s.runner.RunWithContext(ctx)
}

// String implements fmt.Stringer for suture log messages.
func (s *RunnerService) String() string {
	return s.name
}
