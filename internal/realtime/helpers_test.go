// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package realtime

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/relay/internal/logging"
	"github.com/tomtom215/relay/internal/models"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

// fakeConn records frames instead of writing them.
type fakeConn struct {
	mu       sync.Mutex
	frames   [][]byte
	fail     error
	closed   bool
	done     chan struct{}
	doneOnce sync.Once
}

func newFakeConn() *fakeConn { return &fakeConn{done: make(chan struct{})} }

func (c *fakeConn) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	if c.closed {
		return ErrConnClosed
	}
	c.frames = append(c.frames, frame)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.doneOnce.Do(func() { close(c.done) })
	return nil
}

func (c *fakeConn) Done() <-chan struct{} { return c.done }
func (c *fakeConn) Transport() string     { return "fake" }

func (c *fakeConn) setFail(err error) {
	c.mu.Lock()
	c.fail = err
	c.mu.Unlock()
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// messages decodes every recorded frame.
func (c *fakeConn) messages(t *testing.T) []*models.RawMessage {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*models.RawMessage, 0, len(c.frames))
	for _, f := range c.frames {
		msg, err := models.DecodeRaw(f)
		if err != nil {
			t.Fatalf("bad frame %s: %v", f, err)
		}
		out = append(out, msg)
	}
	return out
}

func (c *fakeConn) count(msgType string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, f := range c.frames {
		if msg, err := models.DecodeRaw(f); err == nil && msg.Type == msgType {
			n++
		}
	}
	return n
}

// fakeClock is a settable clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakePerms is a TeamPermissions with canned answers.
type fakePerms struct {
	mu    sync.Mutex
	teams map[string][]string
	err   error
	block chan struct{}
	calls atomic.Int32
}

func (p *fakePerms) UserIDsWithTeamPermission(ctx context.Context, teamID, permission string) ([]string, error) {
	p.calls.Add(1)
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	return p.teams[teamID], nil
}

type fakeJobs map[string]string

func (j fakeJobs) AnalysisTeamID(_ context.Context, jobID string) (string, error) {
	if team, ok := j[jobID]; ok {
		return team, nil
	}
	return "", errors.New("unknown analysis")
}

// startRegistry runs a registry until the test ends.
func startRegistry(t *testing.T, opts ...RegistryOption) *Registry {
	t.Helper()
	r := NewRegistry(opts...)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.RunWithContext(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return r
}

// register adds a session backed by a fakeConn.
func register(t *testing.T, r *Registry, userID string, role Role, teams ...string) (*Session, *fakeConn) {
	t.Helper()
	conn := newFakeConn()
	s := NewSession(userID, role, teams, conn)
	if _, err := r.Register(context.Background(), s); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return s, conn
}

func newTestDispatcher(r *Registry, perms TeamPermissions, jobs JobTeams) *Dispatcher {
	var resolver *Resolver
	if perms != nil {
		resolver = NewResolver(perms, ResolverConfig{Timeout: time.Second})
	}
	return NewDispatcher(r, resolver, jobs, nil, DispatcherConfig{})
}
