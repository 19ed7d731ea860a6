// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package realtime

import "github.com/tomtom215/relay/internal/models"

// MetricsForViewer re-aggregates a metrics snapshot per recipient.
// Administrators receive the snapshot unchanged. Everyone else receives only
// the processes of teams in their snapshot, with totals recomputed from that
// subset.
func MetricsForViewer(s *Session, payload interface{}) interface{} {
	data, ok := payload.(*models.MetricsData)
	if !ok || data == nil {
		return payload
	}
	if s.IsAdmin() {
		return data
	}
	return data.FilterTeams(s.Teams())
}
