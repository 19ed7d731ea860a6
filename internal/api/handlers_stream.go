// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/relay/internal/auth"
	"github.com/tomtom215/relay/internal/logging"
	"github.com/tomtom215/relay/internal/metrics"
	"github.com/tomtom215/relay/internal/models"
	"github.com/tomtom215/relay/internal/realtime"
)

const unregisterTimeout = 5 * time.Second

// ConnectionData is the payload of the reserved "connection" frame.
type ConnectionData struct {
	SessionID string `json:"sessionId"`
	Transport string `json:"transport"`
}

// Stream serves the Server-Sent Events transport.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	conn := realtime.NewSSEConn(h.stream.SendBuffer)
	s, err := h.openSession(r.Context(), claims, conn)
	if err != nil {
		_ = conn.Close()
		respondOpenError(w, err)
		return
	}
	defer h.closeSession(s)

	if err := conn.Serve(r.Context(), w, h.stream.KeepAlive); err != nil {
		logging.Debug().Err(err).Str("session_id", s.ID).Msg("event stream ended")
	}
}

// WebSocket serves the WebSocket transport.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if !h.stream.WebSocketEnabled {
		respondError(w, http.StatusNotFound, models.ErrCodeNotFound, "WebSocket transport disabled", nil)
		return
	}
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	upgrader := h.getUpgrader()
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		logging.Debug().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	conn := realtime.NewWSConn(ws, h.stream.SendBuffer)
	s, err := h.openSession(r.Context(), claims, conn)
	if err != nil {
		logging.Warn().Err(err).Str("user_id", claims.Username).Msg("WebSocket session rejected")
		_ = ws.Close()
		return
	}
	defer h.closeSession(s)

	conn.Run()
}

// openSession snapshots the caller's identity, queues the handshake frames
// and registers the session. Queuing before registering guarantees init is
// the first non-reserved frame the client reads.
func (h *Handler) openSession(ctx context.Context, claims *auth.Claims, conn realtime.Conn) (*realtime.Session, error) {
	role := realtime.RoleUser
	if claims.IsAdmin() || h.directory.IsAdmin(claims.Username) {
		role = realtime.RoleAdmin
	}

	var teams []string
	if role == realtime.RoleAdmin {
		teams = h.directory.Teams()
	} else {
		var err error
		teams, err = h.directory.AllowedTeamIDs(ctx, claims.Username)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", realtime.ErrResolution, err)
		}
	}

	s := realtime.NewSession(claims.Username, role, teams, conn)
	s.ID = uuid.NewString()

	hello, err := models.Encode(models.MessageTypeConnection, ConnectionData{SessionID: s.ID, Transport: conn.Transport()})
	if err != nil {
		return nil, err
	}
	snapshot, err := models.Encode(models.MessageTypeInit, h.initMessage(s))
	if err != nil {
		return nil, err
	}
	for _, frame := range [][]byte{hello, snapshot} {
		if err := conn.Send(frame); err != nil {
			return nil, err
		}
	}

	if _, err := h.registry.Register(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// initMessage builds the authoritative snapshot for s: the analyses it can
// see with their owning team, its teams, and team -> analyses.
func (h *Handler) initMessage(s *realtime.Session) models.InitMessage {
	analyses := make(map[string]string)
	structure := make(map[string][]string)
	for _, team := range s.TeamIDs() {
		structure[team] = []string{}
	}
	for analysis, team := range h.directory.Analyses() {
		if !s.CanViewTeam(team) {
			continue
		}
		analyses[analysis] = team
		structure[team] = append(structure[team], analysis)
	}
	for _, list := range structure {
		sort.Strings(list)
	}

	return models.InitMessage{
		Type:          models.MessageTypeInit,
		SessionID:     s.ID,
		Epoch:         h.dispatcher.Epoch(),
		ServerTime:    h.registry.Now(),
		Analyses:      analyses,
		Teams:         s.TeamIDs(),
		TeamStructure: structure,
	}
}

func (h *Handler) closeSession(s *realtime.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), unregisterTimeout)
	defer cancel()
	if _, err := h.registry.Unregister(ctx, s.ID); err != nil && !errors.Is(err, realtime.ErrRegistryStopped) {
		logging.Warn().Err(err).Str("session_id", s.ID).Msg("failed to unregister stream session")
	}
}

func respondOpenError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, realtime.ErrResolution):
		respondError(w, http.StatusServiceUnavailable, models.ErrCodeUnavailable, "Team permissions unavailable", err)
	case errors.Is(err, realtime.ErrRegistryStopped):
		respondError(w, http.StatusServiceUnavailable, models.ErrCodeUnavailable, "Server is shutting down", nil)
	default:
		respondError(w, http.StatusInternalServerError, models.ErrCodeInternal, "Failed to open stream", err)
	}
}

// Subscribe adds the session to the requested topics it may view.
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	var req models.SubscribeRequest
	if !decodeRequest(w, r, &req, false) {
		return
	}
	s, ok := h.ownedSession(w, r, claims, req.SessionID)
	if !ok {
		return
	}

	permitted := h.authorizeTopics(r.Context(), s, req.Topics)
	subscribed := []string{}
	if len(permitted) > 0 {
		var err error
		subscribed, err = h.registry.Subscribe(r.Context(), s.ID, permitted...)
		if err != nil {
			respondError(w, http.StatusServiceUnavailable, models.ErrCodeUnavailable, "Subscription failed", err)
			return
		}
	}
	metrics.SubscriptionsTotal.WithLabelValues("subscribe").Inc()

	writeJSON(w, http.StatusOK, models.SubscribeResponse{Subscribed: subscribed})
}

// Unsubscribe removes the session from the requested topics.
func (h *Handler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	var req models.SubscribeRequest
	if !decodeRequest(w, r, &req, false) {
		return
	}
	s, ok := h.ownedSession(w, r, claims, req.SessionID)
	if !ok {
		return
	}

	unsubscribed, err := h.registry.Unsubscribe(r.Context(), s.ID, req.Topics...)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, models.ErrCodeUnavailable, "Unsubscribe failed", err)
		return
	}
	metrics.SubscriptionsTotal.WithLabelValues("unsubscribe").Inc()

	writeJSON(w, http.StatusOK, models.UnsubscribeResponse{Unsubscribed: unsubscribed})
}

// ownedSession looks up a live session the caller may manage: its own, or
// any session for admins.
func (h *Handler) ownedSession(w http.ResponseWriter, r *http.Request, claims *auth.Claims, id string) (*realtime.Session, bool) {
	s, err := h.registry.Lookup(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, models.ErrCodeUnavailable, "Session lookup failed", err)
		return nil, false
	}
	if s == nil {
		respondError(w, http.StatusNotFound, models.ErrCodeNotFound, "Session not found", nil)
		return nil, false
	}
	if s.UserID != claims.Username && !claims.IsAdmin() {
		respondError(w, http.StatusForbidden, models.ErrCodeForbidden, "Session belongs to another user", nil)
		return nil, false
	}
	return s, true
}

// authorizeTopics keeps the topics s may view. Topics are analysis ids; a
// non-admin may view those owned by a team in its snapshot.
func (h *Handler) authorizeTopics(ctx context.Context, s *realtime.Session, topics []string) []string {
	if s.IsAdmin() {
		return topics
	}
	permitted := make([]string, 0, len(topics))
	for _, topic := range topics {
		team, err := h.directory.AnalysisTeamID(ctx, topic)
		if err != nil || !s.CanViewTeam(team) {
			logging.Info().
				Str("session_id", s.ID).
				Str("user_id", s.UserID).
				Str("topic_id", topic).
				Msg("subscription denied")
			continue
		}
		permitted = append(permitted, topic)
	}
	return permitted
}
