// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package api

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/relay/internal/auth"
	"github.com/tomtom215/relay/internal/config"
	"github.com/tomtom215/relay/internal/directory"
	"github.com/tomtom215/relay/internal/ingest"
	"github.com/tomtom215/relay/internal/logging"
	"github.com/tomtom215/relay/internal/models"
	"github.com/tomtom215/relay/internal/realtime"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

const testSecret = "api-test-secret-that-is-at-least-32-characters"

// testEnv is a running registry, dispatcher and HTTP server backed by a
// small directory:
//
//	alice  admin
//	bob    viewer of research (job-42)
//	carol  viewer of ops (job-7)
type testEnv struct {
	server     *httptest.Server
	registry   *realtime.Registry
	dispatcher *realtime.Dispatcher
	directory  *directory.Directory
	handler    *Handler
	jwt        *auth.JWTManager
	stop       context.CancelFunc
}

func testConfig() *config.Config {
	return &config.Config{
		Stream: config.StreamConfig{
			HeartbeatInterval: time.Minute,
			SendBuffer:        16,
			ViewPermission:    realtime.DefaultViewPermission,
			WebSocketEnabled:  true,
		},
		Security: config.SecurityConfig{
			AuthMode:            "jwt",
			JWTSecret:           testSecret,
			SessionTimeout:      time.Hour,
			SubscribeRateLimit:  1000,
			SubscribeRateWindow: time.Minute,
		},
	}
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()

	cfg := testConfig()
	for _, m := range mutate {
		m(cfg)
	}

	dir, err := directory.New(directory.Document{
		Roles: map[string][]string{"viewer": {realtime.DefaultViewPermission}},
		Teams: []string{"research", "ops"},
		Users: []directory.User{
			{ID: "alice", Admin: true},
			{ID: "bob", Teams: map[string]string{"research": "viewer"}},
			{ID: "carol", Teams: map[string]string{"ops": "viewer"}},
		},
		Analyses: map[string]string{"job-42": "research", "job-7": "ops"},
	}, realtime.DefaultViewPermission)
	if err != nil {
		t.Fatalf("directory.New() error = %v", err)
	}

	registry := realtime.NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = registry.RunWithContext(ctx) }()

	resolver := realtime.NewResolver(dir, realtime.ResolverConfig{})
	dispatcher := realtime.NewDispatcher(registry, resolver, dir, nil, realtime.DispatcherConfig{})

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		t.Fatalf("NewJWTManager() error = %v", err)
	}

	handler := NewHandler(dispatcher, dir, ingest.NewHandler(dispatcher, nil), cfg)
	router := NewRouter(handler,
		auth.NewMiddleware(jwtManager, cfg.Security.AuthMode),
		NewChiMiddleware(ChiMiddlewareConfigFromSecurity(&cfg.Security)))
	server := httptest.NewServer(router.SetupChi())

	// Cleanups run last-registered first: stopping the registry closes
	// open streams so server.Close does not wait on them.
	t.Cleanup(server.Close)
	t.Cleanup(cancel)

	return &testEnv{
		server:     server,
		registry:   registry,
		dispatcher: dispatcher,
		directory:  dir,
		handler:    handler,
		jwt:        jwtManager,
		stop:       cancel,
	}
}

func (e *testEnv) token(t *testing.T, user string) string {
	t.Helper()
	role := auth.RoleUser
	if user == "alice" {
		role = auth.RoleAdmin
	}
	token, err := e.jwt.GenerateToken(user, role)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	return token
}

// do sends a request as user ("" for unauthenticated) and returns the status
// and body.
func (e *testEnv) do(t *testing.T, method, path, user string, body interface{}) (int, []byte) {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+e.token(t, user))
	}

	resp, err := e.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, data
}

// sseStream reads frames from an open event stream.
type sseStream struct {
	resp   *http.Response
	reader *bufio.Reader
}

func (e *testEnv) openStream(t *testing.T, user string) *sseStream {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.server.URL+"/api/v1/stream", nil)
	if err != nil {
		cancel()
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer "+e.token(t, user))

	resp, err := e.server.Client().Do(req)
	if err != nil {
		cancel()
		t.Fatalf("open stream error = %v", err)
	}
	t.Cleanup(func() {
		cancel()
		resp.Body.Close()
	})

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("open stream status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q, want text/event-stream", ct)
	}
	return &sseStream{resp: resp, reader: bufio.NewReader(resp.Body)}
}

// next returns the next data frame, skipping comments.
func (s *sseStream) next(t *testing.T) *models.RawMessage {
	t.Helper()
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		msg, err := models.DecodeRaw([]byte(strings.TrimPrefix(line, "data: ")))
		if err != nil {
			t.Fatalf("decode frame %q: %v", line, err)
		}
		return msg
	}
}

// handshake consumes the connection and init frames and returns the
// session id.
func (s *sseStream) handshake(t *testing.T) string {
	t.Helper()
	if msg := s.next(t); msg.Type != models.MessageTypeConnection {
		t.Fatalf("first frame type = %q, want %q", msg.Type, models.MessageTypeConnection)
	}
	msg := s.next(t)
	if msg.Type != models.MessageTypeInit {
		t.Fatalf("second frame type = %q, want %q", msg.Type, models.MessageTypeInit)
	}
	if msg.SessionID == "" {
		t.Fatal("init frame has no sessionId")
	}
	return msg.SessionID
}

// closed reports whether the server ended the stream.
func (s *sseStream) closed(t *testing.T) bool {
	t.Helper()
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return true
		}
		if strings.HasPrefix(line, "data: ") {
			return false
		}
	}
}

func decodeEnvelopeBody(t *testing.T, body []byte) models.APIResponse {
	t.Helper()
	var resp models.APIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode response %q: %v", body, err)
	}
	return resp
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	resp := decodeEnvelopeBody(t, body)
	if resp.Error == nil {
		t.Fatalf("response %s has no error", body)
	}
	return resp.Error.Code
}

// dataField extracts one key of the data object of an enveloped response.
func dataField(t *testing.T, body []byte, key string) interface{} {
	t.Helper()
	resp := decodeEnvelopeBody(t, body)
	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("response data %#v is not an object", resp.Data)
	}
	return data[key]
}
