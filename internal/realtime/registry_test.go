// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package realtime

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/relay/internal/metrics"
)

func TestRegistry_RegisterAssignsID(t *testing.T) {
	r := startRegistry(t)
	s, _ := register(t, r, "u1", RoleUser)

	if s.ID == "" {
		t.Fatal("session id not assigned")
	}
	if !s.IsConnected() {
		t.Error("IsConnected() = false after Register")
	}
	if s.LastPushAt().IsZero() || s.ConnectedAt.IsZero() {
		t.Error("timestamps not initialized")
	}

	dup := NewSession("u1", RoleUser, nil, newFakeConn())
	dup.ID = s.ID
	if _, err := r.Register(context.Background(), dup); !errors.Is(err, ErrDuplicateSession) {
		t.Errorf("duplicate Register() error = %v", err)
	}
}

func TestRegistry_UnregisterIdempotent(t *testing.T) {
	ctx := context.Background()
	r := startRegistry(t)
	s, conn := register(t, r, "u1", RoleUser)
	if _, err := r.Subscribe(ctx, s.ID, "job-1"); err != nil {
		t.Fatal(err)
	}

	removed, err := r.Unregister(ctx, s.ID)
	if err != nil || !removed {
		t.Fatalf("Unregister() = %v, %v", removed, err)
	}
	if !conn.isClosed() {
		t.Error("transport not closed")
	}
	if s.IsConnected() {
		t.Error("IsConnected() = true after Unregister")
	}

	removed, err = r.Unregister(ctx, s.ID)
	if err != nil || removed {
		t.Errorf("second Unregister() = %v, %v; want false, nil", removed, err)
	}
	if n, _ := r.TopicCount(ctx); n != 0 {
		t.Errorf("TopicCount() = %d, topic not released with its last member", n)
	}
}

func TestRegistry_TopicLifecycle(t *testing.T) {
	ctx := context.Background()
	r := startRegistry(t)
	a, _ := register(t, r, "u1", RoleUser)
	b, _ := register(t, r, "u2", RoleUser)

	got, err := r.Subscribe(ctx, a.ID, "job-1", "job-1", "job-2", "")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []string{"job-1", "job-2"}) {
		t.Errorf("Subscribe() = %v", got)
	}
	_, _ = r.Subscribe(ctx, b.ID, "job-1")

	if n, _ := r.TopicCount(ctx); n != 2 {
		t.Errorf("TopicCount() = %d, want 2", n)
	}

	_, _ = r.Unsubscribe(ctx, a.ID, "job-2")
	if n, _ := r.TopicCount(ctx); n != 1 {
		t.Errorf("TopicCount() after releasing job-2 = %d, want 1", n)
	}

	members, _ := r.Sessions(ctx, Topic("job-1"))
	if len(members) != 2 {
		t.Errorf("job-1 members = %d, want 2", len(members))
	}

	subs, _ := r.SubscriptionsOf(ctx, a.ID)
	if !reflect.DeepEqual(subs, []string{"job-1"}) {
		t.Errorf("SubscriptionsOf() = %v", subs)
	}
}

func TestRegistry_UnknownLookupsAreEmpty(t *testing.T) {
	ctx := context.Background()
	r := startRegistry(t)
	register(t, r, "u1", RoleUser)

	for _, scope := range []Scope{Topic("nope"), User("nobody"), AdminOnly()} {
		got, err := r.Sessions(ctx, scope)
		if err != nil {
			t.Errorf("Sessions(%s) error = %v", scope, err)
		}
		if len(got) != 0 {
			t.Errorf("Sessions(%s) = %d sessions, want 0", scope, len(got))
		}
	}

	subscribed, err := r.Subscribe(ctx, "missing", "job-1")
	if err != nil || len(subscribed) != 0 {
		t.Errorf("Subscribe(missing) = %v, %v", subscribed, err)
	}
	if s, err := r.Lookup(ctx, "missing"); s != nil || err != nil {
		t.Errorf("Lookup(missing) = %v, %v", s, err)
	}
}

func TestRegistry_ScopeResolution(t *testing.T) {
	ctx := context.Background()
	r := startRegistry(t)
	u1a, _ := register(t, r, "u1", RoleUser)
	u1b, _ := register(t, r, "u1", RoleUser)
	register(t, r, "u2", RoleUser)
	admin, _ := register(t, r, "root", RoleAdmin)

	tests := []struct {
		scope Scope
		want  []string
	}{
		{User("u1"), []string{u1a.ID, u1b.ID}},
		{AdminOnly(), []string{admin.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.scope.String(), func(t *testing.T) {
			got, err := r.Sessions(ctx, tt.scope)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d sessions, want %d", len(got), len(tt.want))
			}
			ids := map[string]bool{}
			for _, s := range got {
				ids[s.ID] = true
			}
			for _, id := range tt.want {
				if !ids[id] {
					t.Errorf("missing session %s", id)
				}
			}
		})
	}

	all, _ := r.Sessions(ctx, Global())
	if len(all) != 4 {
		t.Errorf("Global() resolved %d sessions, want 4", len(all))
	}
	if _, err := r.Sessions(ctx, Team("t1")); !errors.Is(err, ErrInvalidScope) {
		t.Errorf("team scope error = %v, want ErrInvalidScope", err)
	}
}

func TestRegistry_Snapshot(t *testing.T) {
	ctx := context.Background()
	r := startRegistry(t)
	s, _ := register(t, r, "u1", RoleUser, "t2", "t1")
	_, _ = r.Subscribe(ctx, s.ID, "job-9")

	snap, err := r.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap) != 1 {
		t.Fatalf("len(Snapshot) = %d", len(snap))
	}
	info := snap[0]
	if info.ID != s.ID || info.UserID != "u1" || info.Transport != "fake" {
		t.Errorf("unexpected info %+v", info)
	}
	if !reflect.DeepEqual(info.Teams, []string{"t1", "t2"}) || !reflect.DeepEqual(info.Topics, []string{"job-9"}) {
		t.Errorf("teams/topics = %v / %v", info.Teams, info.Topics)
	}
}

func TestRegistry_StopClosesSessions(t *testing.T) {
	r := NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.RunWithContext(ctx) }()

	_, conn := register(t, r, "u1", RoleUser)
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("RunWithContext() = %v", err)
	}
	if !conn.isClosed() {
		t.Error("session transport left open after shutdown")
	}
	if _, err := r.Count(context.Background()); !errors.Is(err, ErrRegistryStopped) {
		t.Errorf("Count() after stop error = %v, want ErrRegistryStopped", err)
	}
	if err := r.RunWithContext(context.Background()); !errors.Is(err, ErrRegistryStopped) {
		t.Errorf("restart after stop = %v", err)
	}
}

func TestRegistry_ContextCanceledBeforeStart(t *testing.T) {
	r := NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Fill the queue so the submit must wait on ctx.
	for i := 0; i < cap(r.ops); i++ {
		r.ops <- func() {}
	}
	if _, err := r.Count(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Count() error = %v, want context.Canceled", err)
	}
}

func TestRegistry_QueuedRegisterIgnoresLaterCancel(t *testing.T) {
	r := NewRegistry()
	gauge := metrics.SessionsActive.WithLabelValues("fake")
	before := testutil.ToFloat64(gauge)

	ctx, cancel := context.WithCancel(context.Background())
	s := NewSession("u1", RoleUser, nil, newFakeConn())
	type result struct {
		id  string
		err error
	}
	res := make(chan result, 1)
	go func() {
		id, err := r.Register(ctx, s)
		res <- result{id, err}
	}()

	// The loop is not running, so the op waits in the queue.
	deadline := time.Now().Add(3 * time.Second)
	for len(r.ops) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Register never queued its op")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case got := <-res:
		t.Fatalf("Register() = %q, %v before its op ran", got.id, got.err)
	case <-time.After(20 * time.Millisecond):
	}

	runCtx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.RunWithContext(runCtx)
	}()
	t.Cleanup(func() {
		stop()
		<-done
	})

	var got result
	select {
	case got = <-res:
	case <-time.After(3 * time.Second):
		t.Fatal("Register did not return")
	}
	if got.err != nil || got.id != s.ID {
		t.Fatalf("Register() = %q, %v; want %q, nil", got.id, got.err, s.ID)
	}
	if !s.IsConnected() {
		t.Error("registered session reports disconnected")
	}
	if n, _ := r.Count(context.Background()); n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
	if delta := testutil.ToFloat64(gauge) - before; delta != 1 {
		t.Errorf("sessions gauge delta = %v, want 1", delta)
	}

	if _, err := r.Unregister(context.Background(), s.ID); err != nil {
		t.Fatal(err)
	}
	if delta := testutil.ToFloat64(gauge) - before; delta != 0 {
		t.Errorf("sessions gauge delta after Unregister = %v, want 0", delta)
	}
}
