// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package api

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/relay/internal/config"
	"github.com/tomtom215/relay/internal/ingest"
	"github.com/tomtom215/relay/internal/logging"
	"github.com/tomtom215/relay/internal/realtime"
)

// Directory is the subset of the directory collaborator the handlers use.
type Directory interface {
	IsAdmin(userID string) bool
	AllowedTeamIDs(ctx context.Context, userID string) ([]string, error)
	AnalysisTeamID(ctx context.Context, jobID string) (string, error)
	MoveAnalysis(jobID, teamID string) (string, error)
	Analyses() map[string]string
	Teams() []string
}

// EventPublisher queues envelopes on the ingest topic.
type EventPublisher interface {
	Publish(env *ingest.Envelope) error
	Topic() string
}

// Handler contains dependencies for API handlers
//
// Handler methods are split across files:
//   - handlers.go: Handler struct, constructor, upgrader
//   - handlers_helpers.go: response and request helpers
//   - handlers_health.go: liveness and readiness probes
//   - handlers_stream.go: SSE, WebSocket, subscribe, unsubscribe
//   - handlers_admin.go: session listing, broadcast, revoke, moves
type Handler struct {
	dispatcher *realtime.Dispatcher
	registry   *realtime.Registry
	directory  Directory
	events     *ingest.Handler
	publisher  EventPublisher // optional, nil when ingest is disabled
	stream     config.StreamConfig
	security   config.SecurityConfig
	startTime  time.Time
}

// NewHandler creates the API handler.
//
// Example:
//
//	handler := api.NewHandler(dispatcher, dir, ingest.NewHandler(dispatcher, procs), cfg)
//	router := api.NewRouter(handler, authMiddleware, api.NewChiMiddleware(nil))
//	srv := &http.Server{Handler: router.SetupChi()}
func NewHandler(d *realtime.Dispatcher, dir Directory, events *ingest.Handler, cfg *config.Config) *Handler {
	return &Handler{
		dispatcher: d,
		registry:   d.Registry(),
		directory:  dir,
		events:     events,
		stream:     cfg.Stream,
		security:   cfg.Security,
		startTime:  time.Now(),
	}
}

// SetEventPublisher enables POST /api/v1/admin/events.
func (h *Handler) SetEventPublisher(p EventPublisher) {
	h.publisher = p
}

func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates WebSocket connection origins against
// stream.websocket_origins, then security.cors_origins. With neither
// configured only same-host origins are accepted.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	// Browsers always send Origin on WebSocket handshakes.
	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}

	allowed := h.stream.WebSocketOrigins
	if len(allowed) == 0 {
		allowed = h.security.CORSOrigins
	}

	if len(allowed) == 0 {
		u, err := url.Parse(origin)
		if err == nil && u.Host == r.Host {
			return true
		}
	}

	for _, allowedOrigin := range allowed {
		if allowedOrigin == "*" || allowedOrigin == origin {
			return true
		}
	}

	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}
