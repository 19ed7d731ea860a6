// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/relay/internal/realtime"
)

// mockRunner is a test double for the ContextRunner interface.
type mockRunner struct {
	runErr   error
	runCount atomic.Int32
}

func (m *mockRunner) RunWithContext(ctx context.Context) error {
	m.runCount.Add(1)
	if m.runErr != nil {
		return m.runErr
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestRunnerService_Interface(t *testing.T) {
	var _ suture.Service = (*RunnerService)(nil)
	var _ ContextRunner = (*realtime.Registry)(nil)
	var _ ContextRunner = (*realtime.Monitor)(nil)
	var _ ContextRunner = (*realtime.MetricsPublisher)(nil)
}

func TestRunnerService_Serve(t *testing.T) {
	t.Run("returns context error on cancellation", func(t *testing.T) {
		runner := &mockRunner{}
		svc := NewRunnerService("liveness-monitor", runner)

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() { errCh <- svc.Serve(ctx) }()

		time.Sleep(20 * time.Millisecond)
		cancel()

		select {
		case err := <-errCh:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled, got %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("Serve did not return after context cancellation")
		}
		if runner.runCount.Load() != 1 {
			t.Errorf("runs = %d, want 1", runner.runCount.Load())
		}
	})

	t.Run("propagates runner errors", func(t *testing.T) {
		expectedErr := errors.New("subscribe failed")
		svc := NewRunnerService("ingest-bridge", &mockRunner{runErr: expectedErr})

		if err := svc.Serve(context.Background()); !errors.Is(err, expectedErr) {
			t.Errorf("Serve() = %v, want %v", err, expectedErr)
		}
	})
}

func TestRunnerService_String(t *testing.T) {
	svc := NewRunnerService("session-registry", &mockRunner{})
	if svc.String() != "session-registry" {
		t.Errorf("String() = %q, want session-registry", svc.String())
	}
}

func TestRunnerService_RegistryUnderSupervisor(t *testing.T) {
	registry := realtime.NewRegistry()
	svc := NewRunnerService("session-registry", registry)

	sup := suture.New("test-sup", suture.Spec{
		FailureThreshold: 3,
		FailureBackoff:   10 * time.Millisecond,
		Timeout:          time.Second,
	})
	sup.Add(svc)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := sup.ServeBackground(ctx)

	var count int
	var err error
	for i := 0; i < 50; i++ {
		count, err = registry.Count(context.Background())
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil || count != 0 {
		t.Fatalf("Count() = %d, %v; want 0, nil", count, err)
	}

	cancel()
	<-errCh

	if _, err := registry.Count(context.Background()); !errors.Is(err, realtime.ErrRegistryStopped) {
		t.Errorf("Count() after stop = %v, want ErrRegistryStopped", err)
	}
}
