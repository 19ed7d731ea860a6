// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package api

// RevokeRequest is the optional body of the revoke endpoint.
type RevokeRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=64"`
}

// RefreshRequest is the optional body of the refresh endpoint.
type RefreshRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=64"`
}

// MoveAnalysisRequest reassigns an analysis to another team.
type MoveAnalysisRequest struct {
	TeamID string `json:"teamId" validate:"required,max=128"`
}

// MoveAnalysisPayload is broadcast as analysisMovedToTeam.
type MoveAnalysisPayload struct {
	AnalysisID string `json:"analysisId"`
	FromTeamID string `json:"fromTeamId"`
	ToTeamID   string `json:"toTeamId"`
}

// NotifiedResponse reports how many sessions an admin action reached.
type NotifiedResponse struct {
	Notified int `json:"notified"`
}
