// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package streamclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/relay/internal/logging"
	"github.com/tomtom215/relay/internal/models"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

const connectionFrame = `{"type":"connection","data":{"status":"connected"}}`

func initFrame(sessionID string) string {
	return fmt.Sprintf(`{"type":"init","sessionId":%q,"serverTime":"2026-01-01T00:00:00Z"}`, sessionID)
}

func epochInitFrame(sessionID, epoch string) string {
	return fmt.Sprintf(`{"type":"init","sessionId":%q,"epoch":%q,"serverTime":"2026-01-01T00:00:00Z"}`, sessionID, epoch)
}

// paddedInitFrame is an init whose analyses snapshot is about size bytes.
func paddedInitFrame(sessionID string, size int) string {
	return fmt.Sprintf(`{"type":"init","sessionId":%q,"analyses":{"pad":%q}}`, sessionID, strings.Repeat("x", size))
}

func logFrame(topic string, seq uint64) string {
	return fmt.Sprintf(`{"type":"log","data":{"topicId":%q,"log":{"sequence":%d,"message":"line"},"totalCount":%d}}`, topic, seq, seq)
}

// streamFunc serves one stream connection; n is its 1-based index.
type streamFunc func(f *fakeServer, n int, w http.ResponseWriter, r *http.Request)

// fakeServer serves the stream and subscribe endpoints.
type fakeServer struct {
	srv     *httptest.Server
	quit    chan struct{}
	streams atomic.Int32

	stream          streamFunc
	subscribeStatus func(n int) int

	mu         sync.Mutex
	subscribes []models.SubscribeRequest
	authHeader string
}

func newFakeServer(t *testing.T, stream streamFunc) *fakeServer {
	t.Helper()
	return newFakeServerWithStatus(t, stream, nil)
}

// newFakeServerWithStatus fails the nth subscribe call with status(n)
// unless it returns 200.
func newFakeServerWithStatus(t *testing.T, stream streamFunc, status func(n int) int) *fakeServer {
	t.Helper()
	f := &fakeServer{quit: make(chan struct{}), stream: stream, subscribeStatus: status}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/stream", func(w http.ResponseWriter, r *http.Request) {
		n := int(f.streams.Add(1))
		f.mu.Lock()
		f.authHeader = r.Header.Get("Authorization")
		f.mu.Unlock()
		f.stream(f, n, w, r)
	})
	mux.HandleFunc("/api/v1/stream/subscribe", func(w http.ResponseWriter, r *http.Request) {
		var req models.SubscribeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.subscribes = append(f.subscribes, req)
		n := len(f.subscribes)
		f.mu.Unlock()

		if f.subscribeStatus != nil {
			if code := f.subscribeStatus(n); code != http.StatusOK {
				http.Error(w, "nope", code)
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(models.SubscribeResponse{Subscribed: req.Topics})
	})
	mux.HandleFunc("/api/v1/stream/unsubscribe", func(w http.ResponseWriter, r *http.Request) {
		var req models.SubscribeRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(models.UnsubscribeResponse{Unsubscribed: req.Topics})
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(func() {
		close(f.quit)
		f.srv.Close()
	})
	return f
}

func (f *fakeServer) subscribeCalls() []models.SubscribeRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.SubscribeRequest(nil), f.subscribes...)
}

// open writes the stream headers followed by frames.
func (f *fakeServer) open(w http.ResponseWriter, frames ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	for _, frame := range frames {
		fmt.Fprintf(w, "data: %s\n\n", frame)
	}
	w.(http.Flusher).Flush()
}

// hold keeps a stream open until the client or the test goes away.
func (f *fakeServer) hold(r *http.Request) {
	select {
	case <-r.Context().Done():
	case <-f.quit:
	}
}

// recorder collects handled frames and state changes.
type recorder struct {
	mu     sync.Mutex
	msgs   []*models.RawMessage
	states []State
}

func (r *recorder) handle(msg *models.RawMessage) {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
}

func (r *recorder) state(s State) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.msgs))
	for i, m := range r.msgs {
		out[i] = m.Type
	}
	return out
}

func (r *recorder) logSequences() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []uint64
	for _, m := range r.msgs {
		if m.Type != models.MessageTypeLog {
			continue
		}
		var d models.LogData
		if err := json.Unmarshal(m.Data, &d); err == nil {
			out = append(out, d.Log.Sequence)
		}
	}
	return out
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func startClient(t *testing.T, f *fakeServer, rec *recorder, mutate func(*Config)) *Client {
	t.Helper()
	cfg := Config{
		BaseURL:       f.srv.URL,
		Token:         "tok",
		BaseDelay:     time.Millisecond,
		MaxDelay:      4 * time.Millisecond,
		MaxAttempts:   3,
		Handler:       rec.handle,
		OnStateChange: rec.state,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNew_RejectsBadBaseURL(t *testing.T) {
	for _, base := range []string{"", "relay.example.com", "ftp://relay.example.com", "http://"} {
		if _, err := New(Config{BaseURL: base}); err == nil {
			t.Errorf("New(%q) succeeded", base)
		}
	}
}

func TestNew_Defaults(t *testing.T) {
	c, err := New(Config{BaseURL: "http://relay.example.com"})
	if err != nil {
		t.Fatal(err)
	}
	if c.cfg.OpenTimeout != DefaultOpenTimeout || c.cfg.BaseDelay != DefaultBaseDelay ||
		c.cfg.MaxDelay != DefaultMaxDelay || c.cfg.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("defaults not applied: %+v", c.cfg)
	}
	if c.State() != StateConnecting {
		t.Errorf("initial state = %s", c.State())
	}
}

func TestReconnectBackOff_Delays(t *testing.T) {
	b := newReconnectBackOff(time.Second, 5*time.Second, 5)
	want := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second, backoff.Stop}
	for i, w := range want {
		if got := b.NextBackOff(); got != w {
			t.Errorf("delay %d = %v, want %v", i, got, w)
		}
	}

	b.Reset()
	if got := b.NextBackOff(); got != time.Second {
		t.Errorf("after Reset delay = %v, want 1s", got)
	}
}

func TestState_Terminal(t *testing.T) {
	terminal := map[State]bool{
		StateConnecting:     false,
		StateConnected:      false,
		StateError:          false,
		StateFailed:         true,
		StateServerShutdown: true,
		StateDisconnected:   true,
		StateClosed:         true,
	}
	for s, want := range terminal {
		if s.Terminal() != want {
			t.Errorf("%s.Terminal() = %v, want %v", s, !want, want)
		}
	}
}

func TestClient_FiltersFrames(t *testing.T) {
	f := newFakeServer(t, func(f *fakeServer, _ int, w http.ResponseWriter, r *http.Request) {
		f.open(w,
			connectionFrame,
			initFrame("s1"),
			`{"type":"heartbeat","timestamp":"2026-01-01T00:00:00Z"}`,
			logFrame("job-42", 1),
			logFrame("job-42", 1),
			`not json`,
			`{"data":{}}`,
			logFrame("job-42", 2),
			logFrame("job-7", 1),
			`{"type":"logsCleared","data":{"topicId":"job-42"}}`,
			logFrame("job-42", 1),
		)
		f.hold(r)
	})
	rec := &recorder{}
	c := startClient(t, f, rec, nil)

	waitFor(t, "all frames", func() bool { return len(rec.types()) == 6 })

	wantTypes := []string{"init", "log", "log", "log", "logsCleared", "log"}
	for i, typ := range rec.types() {
		if typ != wantTypes[i] {
			t.Errorf("frame %d type = %s, want %s", i, typ, wantTypes[i])
		}
	}
	if got := fmt.Sprint(rec.logSequences()); got != "[1 2 1 1]" {
		t.Errorf("log sequences = %s, want [1 2 1 1]", got)
	}
	if c.State() != StateConnected {
		t.Errorf("State() = %s, want connected", c.State())
	}
	if c.SessionID() != "s1" || !c.HasInitialData() {
		t.Errorf("SessionID() = %q, HasInitialData() = %v", c.SessionID(), c.HasInitialData())
	}

	f.mu.Lock()
	auth := f.authHeader
	f.mu.Unlock()
	if auth != "Bearer tok" {
		t.Errorf("Authorization = %q", auth)
	}
}

func TestClient_SessionInvalidatedIsTerminal(t *testing.T) {
	tests := []struct {
		reason string
		want   State
	}{
		{models.InvalidationServerShutdown, StateServerShutdown},
		{models.InvalidationRevoked, StateDisconnected},
		{"", StateDisconnected},
	}

	for _, tt := range tests {
		name := tt.reason
		if name == "" {
			name = "no_reason"
		}
		t.Run(name, func(t *testing.T) {
			f := newFakeServer(t, func(f *fakeServer, _ int, w http.ResponseWriter, r *http.Request) {
				f.open(w, connectionFrame, initFrame("s1"),
					fmt.Sprintf(`{"type":"sessionInvalidated","reason":%q}`, tt.reason))
				f.hold(r)
			})
			rec := &recorder{}
			c := startClient(t, f, rec, nil)

			select {
			case <-c.Done():
			case <-time.After(3 * time.Second):
				t.Fatal("loop did not exit")
			}
			if c.State() != tt.want {
				t.Errorf("State() = %s, want %s", c.State(), tt.want)
			}
			if c.Wake() {
				t.Error("Wake() = true in a terminal state")
			}
			if _, err := c.Subscribe(context.Background(), "job-42"); !errors.Is(err, ErrTerminal) {
				t.Errorf("Subscribe() error = %v, want ErrTerminal", err)
			}
			if n := f.streams.Load(); n != 1 {
				t.Errorf("connections = %d, want 1", n)
			}
			types := rec.types()
			if len(types) != 2 || types[1] != models.MessageTypeSessionInvalidated {
				t.Errorf("handled = %v, want init then sessionInvalidated", types)
			}
		})
	}
}

func TestClient_ReconnectsAfterDrop(t *testing.T) {
	f := newFakeServer(t, func(f *fakeServer, n int, w http.ResponseWriter, r *http.Request) {
		f.open(w, connectionFrame, initFrame(fmt.Sprintf("s%d", n)))
		if n == 1 {
			return
		}
		f.hold(r)
	})
	rec := &recorder{}
	c := startClient(t, f, rec, nil)

	waitFor(t, "second session", func() bool { return c.SessionID() == "s2" })
	if c.State() != StateConnected {
		t.Errorf("State() = %s, want connected", c.State())
	}
	if c.Attempts() != 0 {
		t.Errorf("Attempts() = %d after a successful open, want 0", c.Attempts())
	}

	rec.mu.Lock()
	states := append([]State(nil), rec.states...)
	rec.mu.Unlock()
	want := []State{StateConnected, StateError, StateConnecting, StateConnected}
	if len(states) != len(want) {
		t.Fatalf("states = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("states = %v, want %v", states, want)
			break
		}
	}
}

func TestClient_NewEpochRestartsDedup(t *testing.T) {
	// Connection 1 is the old server process, later ones a restarted
	// process that numbers job-42 from 1 again.
	f := newFakeServer(t, func(f *fakeServer, n int, w http.ResponseWriter, r *http.Request) {
		epoch := "epoch-b"
		if n == 1 {
			epoch = "epoch-a"
		}
		f.open(w, connectionFrame, epochInitFrame(fmt.Sprintf("s%d", n), epoch),
			logFrame("job-42", 1), logFrame("job-42", 2), logFrame("job-42", 3))
		if n == 1 {
			return
		}
		f.hold(r)
	})
	rec := &recorder{}
	c := startClient(t, f, rec, nil)

	waitFor(t, "second session", func() bool { return c.SessionID() == "s2" })
	waitFor(t, "logs of both epochs", func() bool { return len(rec.logSequences()) >= 6 })
	if got := fmt.Sprint(rec.logSequences()); got != "[1 2 3 1 2 3]" {
		t.Errorf("log sequences = %s, want [1 2 3 1 2 3]", got)
	}
}

func TestClient_SameEpochKeepsDedup(t *testing.T) {
	f := newFakeServer(t, func(f *fakeServer, n int, w http.ResponseWriter, r *http.Request) {
		if n == 1 {
			f.open(w, connectionFrame, epochInitFrame("s1", "epoch-a"),
				logFrame("job-42", 1), logFrame("job-42", 2), logFrame("job-42", 3))
			return
		}
		f.open(w, connectionFrame, epochInitFrame(fmt.Sprintf("s%d", n), "epoch-a"),
			logFrame("job-42", 2), logFrame("job-42", 3), logFrame("job-42", 4))
		f.hold(r)
	})
	rec := &recorder{}
	c := startClient(t, f, rec, nil)

	waitFor(t, "second session", func() bool { return c.SessionID() == "s2" })
	waitFor(t, "new log", func() bool { return len(rec.logSequences()) >= 4 })
	// Let any wrongly accepted replay arrive before checking.
	time.Sleep(20 * time.Millisecond)
	if got := fmt.Sprint(rec.logSequences()); got != "[1 2 3 4]" {
		t.Errorf("log sequences = %s, want [1 2 3 4]", got)
	}
}

func TestClient_FrameLargerThanMaxFrameSize(t *testing.T) {
	f := newFakeServer(t, func(f *fakeServer, _ int, w http.ResponseWriter, r *http.Request) {
		f.open(w, connectionFrame, paddedInitFrame("s1", 4096))
		f.hold(r)
	})
	rec := &recorder{}
	startClient(t, f, rec, func(cfg *Config) { cfg.MaxFrameSize = 1024 })

	waitFor(t, "a reconnect after the oversized frame", func() bool { return f.streams.Load() >= 2 })
	for _, typ := range rec.types() {
		if typ == models.MessageTypeInit {
			t.Fatal("oversized init was delivered")
		}
	}
	rec.mu.Lock()
	states := append([]State(nil), rec.states...)
	rec.mu.Unlock()
	if len(states) < 2 || states[0] != StateConnected || states[1] != StateError {
		t.Errorf("states = %v, want connected then error", states)
	}
}

func TestClient_DefaultMaxFrameSizeFitsLargeInit(t *testing.T) {
	f := newFakeServer(t, func(f *fakeServer, _ int, w http.ResponseWriter, r *http.Request) {
		f.open(w, connectionFrame, paddedInitFrame("s1", 2<<20))
		f.hold(r)
	})
	rec := &recorder{}
	c := startClient(t, f, rec, nil)

	waitFor(t, "init", func() bool { return c.HasInitialData() })
	if c.SessionID() != "s1" {
		t.Errorf("SessionID() = %q, want s1", c.SessionID())
	}
	if n := f.streams.Load(); n != 1 {
		t.Errorf("opened %d streams, want 1", n)
	}
}

func TestClient_FailsAfterMaxAttemptsAndWakes(t *testing.T) {
	f := newFakeServer(t, func(f *fakeServer, _ int, w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	})
	rec := &recorder{}
	c := startClient(t, f, rec, nil)

	waitFor(t, "failed", func() bool { return c.State() == StateFailed })
	// One initial open plus MaxAttempts retries.
	if n := f.streams.Load(); n != 4 {
		t.Errorf("connections before failing = %d, want 4", n)
	}

	time.Sleep(20 * time.Millisecond)
	if n := f.streams.Load(); n != 4 {
		t.Errorf("failed client kept connecting: %d", n)
	}

	if !c.Wake() {
		t.Fatal("Wake() = false for a failed client")
	}
	waitFor(t, "second round", func() bool { return f.streams.Load() == 8 && c.State() == StateFailed })
}

func TestClient_WakeShortensBackoff(t *testing.T) {
	f := newFakeServer(t, func(f *fakeServer, n int, w http.ResponseWriter, r *http.Request) {
		if n == 1 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		f.open(w, connectionFrame, initFrame("s2"))
		f.hold(r)
	})
	rec := &recorder{}
	c := startClient(t, f, rec, func(cfg *Config) {
		cfg.BaseDelay = time.Hour
		cfg.MaxDelay = time.Hour
	})

	waitFor(t, "error state", func() bool { return c.State() == StateError })
	if !c.Wake() {
		t.Fatal("Wake() = false while waiting to reconnect")
	}
	waitFor(t, "reconnect", func() bool { return c.SessionID() == "s2" })

	if c.Wake() {
		t.Error("Wake() = true with a live connection")
	}
}

func TestClient_OpenTimeout(t *testing.T) {
	f := newFakeServer(t, func(f *fakeServer, _ int, _ http.ResponseWriter, r *http.Request) {
		f.hold(r)
	})
	rec := &recorder{}
	c := startClient(t, f, rec, func(cfg *Config) {
		cfg.OpenTimeout = 20 * time.Millisecond
		cfg.MaxAttempts = 1
	})

	waitFor(t, "failed after timeouts", func() bool { return c.State() == StateFailed })
	if n := f.streams.Load(); n != 2 {
		t.Errorf("connections = %d, want 2", n)
	}
}

func TestClient_SubscribeTracksAndResubscribes(t *testing.T) {
	release := make(chan struct{})
	f := newFakeServer(t, func(f *fakeServer, n int, w http.ResponseWriter, r *http.Request) {
		if n == 1 {
			<-release
		}
		f.open(w, connectionFrame, initFrame(fmt.Sprintf("s%d", n)))
		if n == 1 {
			return
		}
		f.hold(r)
	})
	rec := &recorder{}
	c := startClient(t, f, rec, nil)

	if _, err := c.Subscribe(context.Background(), "job-42"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("Subscribe() before init error = %v, want ErrNoSession", err)
	}
	close(release)

	// s1 and then s2 after the drop both get the tracked topic.
	waitFor(t, "re-subscribe on both sessions", func() bool {
		calls := f.subscribeCalls()
		for _, call := range calls {
			if call.SessionID == "s2" {
				return len(calls) >= 2
			}
		}
		return false
	})
	for _, call := range f.subscribeCalls() {
		if len(call.Topics) != 1 || call.Topics[0] != "job-42" {
			t.Errorf("re-subscribe topics = %v, want [job-42]", call.Topics)
		}
	}

	got, err := c.Subscribe(context.Background(), "job-7")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if len(got) != 1 || got[0] != "job-7" {
		t.Errorf("Subscribe() = %v, want [job-7]", got)
	}
	if topics := fmt.Sprint(c.Topics()); topics != "[job-42 job-7]" {
		t.Errorf("Topics() = %s", topics)
	}

	removed, err := c.Unsubscribe(context.Background(), "job-42")
	if err != nil || len(removed) != 1 {
		t.Errorf("Unsubscribe() = %v, %v", removed, err)
	}
	if topics := fmt.Sprint(c.Topics()); topics != "[job-7]" {
		t.Errorf("Topics() after unsubscribe = %s", topics)
	}
}

func TestClient_SubscribeRetries(t *testing.T) {
	tests := []struct {
		name      string
		status    func(n int) int
		wantCalls int
		wantCode  int
	}{
		{
			name: "server errors retried",
			status: func(n int) int {
				if n < 3 {
					return http.StatusInternalServerError
				}
				return http.StatusOK
			},
			wantCalls: 3,
		},
		{
			name:      "client errors not retried",
			status:    func(int) int { return http.StatusForbidden },
			wantCalls: 1,
			wantCode:  http.StatusForbidden,
		},
		{
			name:      "retries bounded",
			status:    func(int) int { return http.StatusTooManyRequests },
			wantCalls: 1 + DefaultSubscribeRetries,
			wantCode:  http.StatusTooManyRequests,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeServerWithStatus(t, func(f *fakeServer, _ int, w http.ResponseWriter, r *http.Request) {
				f.open(w, connectionFrame, initFrame("s1"))
				f.hold(r)
			}, tt.status)
			c := startClient(t, f, &recorder{}, nil)
			waitFor(t, "session", func() bool { return c.SessionID() == "s1" })

			_, err := c.Subscribe(context.Background(), "job-42")
			var statusErr *StatusError
			switch {
			case tt.wantCode == 0 && err != nil:
				t.Errorf("Subscribe() error = %v", err)
			case tt.wantCode != 0 && (!errors.As(err, &statusErr) || statusErr.Code != tt.wantCode):
				t.Errorf("Subscribe() error = %v, want status %d", err, tt.wantCode)
			}
			if n := len(f.subscribeCalls()); n != tt.wantCalls {
				t.Errorf("calls = %d, want %d", n, tt.wantCalls)
			}
		})
	}
}

func TestClient_CloseIsSynchronous(t *testing.T) {
	f := newFakeServer(t, func(f *fakeServer, _ int, w http.ResponseWriter, r *http.Request) {
		f.open(w, connectionFrame, initFrame("s1"))
		f.hold(r)
	})
	rec := &recorder{}
	c := startClient(t, f, rec, nil)
	waitFor(t, "connected", func() bool { return c.SessionID() == "s1" })

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	select {
	case <-c.Done():
	default:
		t.Error("loop still running after Close")
	}
	if c.State() != StateClosed {
		t.Errorf("State() = %s, want closed", c.State())
	}
	if c.Wake() {
		t.Error("Wake() = true after Close")
	}
	if _, err := c.Subscribe(context.Background(), "job-42"); !errors.Is(err, ErrClosed) {
		t.Errorf("Subscribe() error = %v, want ErrClosed", err)
	}
	if err := c.Start(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Start() error = %v, want ErrClosed", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	if n := f.streams.Load(); n != 1 {
		t.Errorf("connections = %d after Close, want 1", n)
	}
}

func TestClient_CloseBeforeStart(t *testing.T) {
	c, err := New(Config{BaseURL: "http://127.0.0.1:1"})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
	if c.State() != StateClosed {
		t.Errorf("State() = %s", c.State())
	}
}
