// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package realtime

import (
	"context"

	"github.com/tomtom215/relay/internal/models"
)

// TeamPermissions answers which users hold a permission on a team.
type TeamPermissions interface {
	UserIDsWithTeamPermission(ctx context.Context, teamID, permission string) ([]string, error)
}

// JobTeams maps an analysis (job) to the team that owns it.
type JobTeams interface {
	AnalysisTeamID(ctx context.Context, jobID string) (string, error)
}

// MetricsSource produces the unfiltered metrics snapshot.
type MetricsSource interface {
	AllMetricsSnapshot(ctx context.Context) (*models.MetricsData, error)
}
