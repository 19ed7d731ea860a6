// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/relay/internal/models"
)

const readinessTimeout = time.Second

// HealthLive handles liveness probe requests (Kubernetes-style)
// Returns 200 OK as long as the process is serving HTTP.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"alive":  true,
			"uptime": time.Since(h.startTime).Seconds(),
		},
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}

// HealthReady handles readiness probe requests (Kubernetes-style)
// Returns 200 OK only while the session registry is running. An open team
// resolution breaker is reported but does not fail readiness: global, user
// and topic events are still delivered.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	sessions, err := h.registry.Count(ctx)
	ready := err == nil

	teamResolution := "unconfigured"
	if res := h.dispatcher.Resolver(); res != nil {
		teamResolution = res.State().String()
	}

	statusCode := http.StatusOK
	status := "ready"
	if !ready {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	respondJSON(w, statusCode, &models.APIResponse{
		Status: status,
		Data: map[string]interface{}{
			"registry_running": ready,
			"sessions":         sessions,
			"team_resolution":  teamResolution,
			"ingest_enabled":   h.publisher != nil,
			"ready_to_serve":   ready,
		},
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}
