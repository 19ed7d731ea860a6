// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package realtime

import (
	"context"
	"time"

	"github.com/tomtom215/relay/internal/logging"
	"github.com/tomtom215/relay/internal/metrics"
	"github.com/tomtom215/relay/internal/models"
)

// SendToUser delivers to every session of userID.
func (d *Dispatcher) SendToUser(ctx context.Context, userID, messageType string, payload interface{}) (int, error) {
	return d.Publish(ctx, Event{Type: messageType, Payload: payload, Scope: User(userID)})
}

// SendToAdmins delivers to administrator sessions.
func (d *Dispatcher) SendToAdmins(ctx context.Context, messageType string, payload interface{}) (int, error) {
	return d.Publish(ctx, Event{Type: messageType, Payload: payload, Scope: AdminOnly()})
}

// BroadcastTeamMove notifies viewers of both teams when an analysis moves
// between them. A session visible through both teams is notified once.
func (d *Dispatcher) BroadcastTeamMove(ctx context.Context, fromTeam, toTeam string, payload interface{}) (int, error) {
	teams := make([]string, 0, 2)
	for _, t := range []string{fromTeam, toTeam} {
		if t != "" && (len(teams) == 0 || teams[0] != t) {
			teams = append(teams, t)
		}
	}
	if len(teams) == 0 {
		return d.Publish(ctx, Event{Type: models.MessageTypeAnalysisMoved, Payload: payload, Scope: Team("")})
	}

	start := time.Now()
	users, err := d.resolveTeams(ctx, teams...)
	if err != nil {
		logging.Warn().Err(err).Str("from_team", fromTeam).Str("to_team", toTeam).Msg("team move broadcast abandoned")
		return 0, err
	}
	sessions, err := d.registry.SessionsForUsers(ctx, users)
	if err != nil {
		return 0, err
	}
	ev := Event{Type: models.MessageTypeAnalysisMoved, Payload: payload, Scope: Team(toTeam)}
	delivered := d.deliver(ctx, ev, sessions)
	metrics.RecordPublish(ScopeTeam.String(), delivered, time.Since(start))
	return delivered, nil
}

// LogEntry is one log line produced by an analysis.
type LogEntry struct {
	TopicID    string
	Message    string
	Timestamp  time.Time
	TotalCount uint64
}

// PublishLog stamps entry with the next sequence number of its topic and
// delivers it to the topic's subscribers. An entry without a topic id is
// broadcast globally rather than dropped.
func (d *Dispatcher) PublishLog(ctx context.Context, entry LogEntry) (int, error) {
	seq, err := d.sequences.Next(entry.TopicID)
	if err != nil {
		return 0, err
	}
	metrics.SequenceTopics.Set(float64(d.sequences.Topics()))
	if entry.Timestamp.IsZero() {
		entry.Timestamp = d.registry.Now().UTC()
	}
	if entry.TotalCount == 0 {
		entry.TotalCount = seq
	}

	scope := Topic(entry.TopicID)
	if entry.TopicID == "" {
		logging.Warn().Uint64("sequence", seq).Msg("log entry without topic id, broadcasting globally")
		scope = Global()
	}

	return d.Publish(ctx, Event{
		Type: models.MessageTypeLog,
		Payload: models.LogData{
			TopicID:    entry.TopicID,
			Log:        models.LogLine{Sequence: seq, Timestamp: entry.Timestamp, Message: entry.Message},
			TotalCount: entry.TotalCount,
		},
		Scope: scope,
	})
}

// PublishLogsCleared restarts the topic's sequence and tells receivers to
// drop their dedup state for it. The owning team is notified when it can be
// resolved, otherwise the topic subscribers.
func (d *Dispatcher) PublishLogsCleared(ctx context.Context, topicID string) (int, error) {
	if err := d.sequences.Reset(topicID); err != nil {
		return 0, err
	}
	metrics.SequenceTopics.Set(float64(d.sequences.Topics()))
	scope := Topic(topicID)
	if teamID := d.teamOf(ctx, topicID); teamID != "" {
		scope = Team(teamID)
	}
	return d.Publish(ctx, Event{
		Type:    models.MessageTypeLogsCleared,
		Payload: models.LogsClearedData{TopicID: topicID},
		Scope:   scope,
	})
}

// Heartbeat reaches every session and refreshes its liveness timestamp.
func (d *Dispatcher) Heartbeat(ctx context.Context) (int, error) {
	return d.Publish(ctx, Event{
		Type:    models.MessageTypeHeartbeat,
		Payload: models.HeartbeatMessage{Type: models.MessageTypeHeartbeat, Timestamp: d.registry.Now().UTC()},
		Scope:   Global(),
	})
}

// Refresh asks every client to refetch authoritative state.
func (d *Dispatcher) Refresh(ctx context.Context, reason string) (int, error) {
	var payload interface{}
	if reason != "" {
		payload = map[string]string{"reason": reason}
	}
	return d.Publish(ctx, Event{Type: models.MessageTypeRefresh, Payload: payload, Scope: Global()})
}

// PublishMetrics broadcasts snapshot, filtered per viewer.
func (d *Dispatcher) PublishMetrics(ctx context.Context, snapshot *models.MetricsData) (int, error) {
	return d.Publish(ctx, Event{
		Type:      models.MessageTypeMetricsUpdate,
		Payload:   snapshot,
		Scope:     Global(),
		Transform: MetricsForViewer,
	})
}

// PublishJobUpdate notifies viewers of the job's team. A missing team id is
// looked up through JobTeams; if that fails too the compatibility rule for
// team scopes applies.
func (d *Dispatcher) PublishJobUpdate(ctx context.Context, jobID, teamID string, payload interface{}) (int, error) {
	if teamID == "" {
		teamID = d.teamOf(ctx, jobID)
	}
	return d.Publish(ctx, Event{Type: models.MessageTypeAnalysisUpdate, Payload: payload, Scope: Team(teamID)})
}

// InvalidateAll tells every client its session is over, e.g. on shutdown.
func (d *Dispatcher) InvalidateAll(ctx context.Context, reason string) (int, error) {
	return d.Publish(ctx, Event{
		Type:    models.MessageTypeSessionInvalidated,
		Payload: models.SessionInvalidatedMessage{Type: models.MessageTypeSessionInvalidated, Reason: reason},
		Scope:   Global(),
	})
}

// Revoke sends sessionInvalidated to one session and unregisters it.
// It reports whether the session existed.
func (d *Dispatcher) Revoke(ctx context.Context, sessionID, reason string) (bool, error) {
	s, err := d.registry.Lookup(ctx, sessionID)
	if err != nil || s == nil {
		return false, err
	}
	if reason == "" {
		reason = models.InvalidationRevoked
	}
	frame, err := models.Encode(models.MessageTypeSessionInvalidated,
		models.SessionInvalidatedMessage{Type: models.MessageTypeSessionInvalidated, Reason: reason})
	if err != nil {
		return false, err
	}
	if err := s.deliver(frame, d.registry.Now()); err != nil {
		logging.Debug().Err(err).Str("session_id", sessionID).Msg("revocation notice not delivered")
	}
	if _, err := d.registry.Unregister(ctx, sessionID); err != nil {
		return true, err
	}
	logging.Info().Str("session_id", sessionID).Str("user_id", s.UserID).Str("reason", reason).Msg("stream session revoked")
	return true, nil
}

// PermissionsChanged drops cached team permissions and tells the affected
// user's sessions to re-authenticate.
func (d *Dispatcher) PermissionsChanged(ctx context.Context, userID string) (int, error) {
	if d.resolver != nil {
		d.resolver.Purge()
	}
	return d.SendToUser(ctx, userID, models.MessageTypePermissionsChanged, map[string]string{"userId": userID})
}

func (d *Dispatcher) teamOf(ctx context.Context, jobID string) string {
	if d.jobs == nil || jobID == "" {
		return ""
	}
	teamID, err := d.jobs.AnalysisTeamID(ctx, jobID)
	if err != nil {
		logging.Warn().Err(err).Str("topic_id", jobID).Msg("could not resolve analysis team")
		return ""
	}
	return teamID
}
