// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/relay/internal/directory"
	"github.com/tomtom215/relay/internal/ingest"
	"github.com/tomtom215/relay/internal/logging"
	"github.com/tomtom215/relay/internal/models"
	"github.com/tomtom215/relay/internal/realtime"
)

// ListSessions returns the registry snapshot.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.registry.Snapshot(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, models.ErrCodeUnavailable, "Registry unavailable", err)
		return
	}
	topics, err := h.registry.TopicCount(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, models.ErrCodeUnavailable, "Registry unavailable", err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"count":    len(sessions),
		"topics":   topics,
	})
}

// Broadcast dispatches an envelope synchronously and reports the delivery count.
func (h *Handler) Broadcast(w http.ResponseWriter, r *http.Request) {
	env, ok := decodeEnvelope(w, r)
	if !ok {
		return
	}

	notified, err := h.events.Dispatch(r.Context(), env)
	if err != nil {
		respondDispatchError(w, err)
		return
	}

	logging.Info().
		Str("type", env.Type).
		Str("scope", env.Scope).
		Str("target", sanitizeLogValue(env.Target)).
		Int("delivered", notified).
		Msg("admin broadcast")
	respondSuccess(w, http.StatusOK, NotifiedResponse{Notified: notified})
}

// PublishEvent queues an envelope on the ingest topic. Delivery happens
// asynchronously through the bridge.
func (h *Handler) PublishEvent(w http.ResponseWriter, r *http.Request) {
	if h.publisher == nil {
		respondError(w, http.StatusServiceUnavailable, models.ErrCodeUnavailable, "Ingest is disabled", nil)
		return
	}
	env, ok := decodeEnvelope(w, r)
	if !ok {
		return
	}

	if err := h.publisher.Publish(env); err != nil {
		respondError(w, http.StatusServiceUnavailable, models.ErrCodeUnavailable, "Failed to queue event", err)
		return
	}
	respondSuccess(w, http.StatusAccepted, map[string]interface{}{
		"queued": true,
		"topic":  h.publisher.Topic(),
	})
}

// Refresh asks every client to refetch its state.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decodeRequest(w, r, &req, true) {
		return
	}
	notified, err := h.dispatcher.Refresh(r.Context(), req.Reason)
	if err != nil {
		respondDispatchError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, NotifiedResponse{Notified: notified})
}

// RevokeSession tells one session it is over and unregisters it.
func (h *Handler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	var req RevokeRequest
	if !decodeRequest(w, r, &req, true) {
		return
	}
	id := chi.URLParam(r, "id")

	found, err := h.dispatcher.Revoke(r.Context(), id, req.Reason)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, models.ErrCodeUnavailable, "Revocation failed", err)
		return
	}
	if !found {
		respondError(w, http.StatusNotFound, models.ErrCodeNotFound, "Session not found", nil)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"revoked":   true,
		"sessionId": id,
	})
}

// MoveAnalysis reassigns an analysis and notifies viewers of both teams.
func (h *Handler) MoveAnalysis(w http.ResponseWriter, r *http.Request) {
	var req MoveAnalysisRequest
	if !decodeRequest(w, r, &req, false) {
		return
	}
	analysisID := chi.URLParam(r, "id")

	prev, err := h.directory.MoveAnalysis(analysisID, req.TeamID)
	if err != nil {
		if errors.Is(err, directory.ErrUnknownAnalysis) {
			respondError(w, http.StatusNotFound, models.ErrCodeNotFound, "Analysis not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, models.ErrCodeInternal, "Move failed", err)
		return
	}

	payload := MoveAnalysisPayload{AnalysisID: analysisID, FromTeamID: prev, ToTeamID: req.TeamID}
	notified, err := h.dispatcher.BroadcastTeamMove(r.Context(), prev, req.TeamID, payload)
	if err != nil {
		// The move itself succeeded; viewers will pick it up on their next init.
		logging.Warn().Err(err).Str("analysis_id", analysisID).Msg("team move notification failed")
	}
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"notified":   notified,
		"analysisId": analysisID,
		"fromTeamId": prev,
		"toTeamId":   req.TeamID,
	})
}

// PermissionsChanged purges cached team grants and notifies the user.
func (h *Handler) PermissionsChanged(w http.ResponseWriter, r *http.Request) {
	notified, err := h.dispatcher.PermissionsChanged(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDispatchError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, NotifiedResponse{Notified: notified})
}

// decodeEnvelope parses an ingest envelope body, refusing reserved types.
func decodeEnvelope(w http.ResponseWriter, r *http.Request) (*ingest.Envelope, bool) {
	body, ok := readBody(w, r)
	if !ok {
		return nil, false
	}
	env, err := ingest.Decode(body)
	if err != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeBadRequest, err.Error(), nil)
		return nil, false
	}
	if apiErr := validateRequest(env); apiErr != nil {
		respondAPIError(w, http.StatusBadRequest, apiErr)
		return nil, false
	}
	return env, true
}

func respondDispatchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ingest.ErrInvalidEnvelope), errors.Is(err, realtime.ErrInvalidScope):
		respondError(w, http.StatusBadRequest, models.ErrCodeBadRequest, err.Error(), nil)
	case errors.Is(err, realtime.ErrResolution):
		respondError(w, http.StatusBadGateway, models.ErrCodeUnavailable, "Team permissions unavailable", err)
	default:
		respondError(w, http.StatusServiceUnavailable, models.ErrCodeUnavailable, "Dispatch failed", err)
	}
}
