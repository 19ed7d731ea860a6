// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/relay/internal/models"
	"github.com/tomtom215/relay/internal/realtime"
)

// ErrInvalidEnvelope is returned for envelopes that cannot be dispatched.
var ErrInvalidEnvelope = errors.New("ingest: invalid envelope")

// Envelope is what external producers publish on the ingest topic.
type Envelope struct {
	Type    string          `json:"type" validate:"required,max=64"`
	Scope   string          `json:"scope,omitempty" validate:"omitempty,oneof=global team user admin adminOnly topic"`
	Target  string          `json:"target,omitempty" validate:"max=128"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ProcessTracker receives analysis process lifecycle hints.
type ProcessTracker interface {
	Track(analysisID, teamID string, pid int32)
	Untrack(analysisID string)
}

// Handler maps envelopes onto Dispatcher calls.
type Handler struct {
	dispatcher *realtime.Dispatcher
	tracker    ProcessTracker
}

// NewHandler creates a handler. tracker may be nil.
func NewHandler(d *realtime.Dispatcher, tracker ProcessTracker) *Handler {
	return &Handler{dispatcher: d, tracker: tracker}
}

// topicFields are the payload keys that can name a topic, in lookup order.
type topicFields struct {
	TopicID    string `json:"topicId"`
	AnalysisID string `json:"analysisId"`
	JobID      string `json:"jobId"`
}

func (f topicFields) topic() string {
	switch {
	case f.TopicID != "":
		return f.TopicID
	case f.AnalysisID != "":
		return f.AnalysisID
	default:
		return f.JobID
	}
}

type logPayload struct {
	topicFields
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
	TotalCount uint64    `json:"totalCount"`
}

type analysisPayload struct {
	topicFields
	TeamID string `json:"teamId"`
	Status string `json:"status"`
	PID    int32  `json:"pid"`
}

type movePayload struct {
	topicFields
	FromTeamID string `json:"fromTeamId"`
	ToTeamID   string `json:"toTeamId"`
}

type userPayload struct {
	UserID string `json:"userId"`
}

// Decode parses and sanity-checks one envelope.
func Decode(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrInvalidEnvelope)
	}
	switch env.Type {
	case models.MessageTypeHeartbeat, models.MessageTypeConnection,
		models.MessageTypeInit, models.MessageTypeSessionInvalidated:
		return nil, fmt.Errorf("%w: type %q is reserved", ErrInvalidEnvelope, env.Type)
	}
	return &env, nil
}

// Handle dispatches one encoded envelope and returns the delivery count.
func (h *Handler) Handle(ctx context.Context, data []byte) (int, error) {
	env, err := Decode(data)
	if err != nil {
		return 0, err
	}
	return h.Dispatch(ctx, env)
}

// Dispatch routes a decoded envelope.
func (h *Handler) Dispatch(ctx context.Context, env *Envelope) (int, error) {
	d := h.dispatcher
	switch env.Type {
	case models.MessageTypeLog:
		var p logPayload
		if err := unmarshalPayload(env, &p); err != nil {
			return 0, err
		}
		return d.PublishLog(ctx, realtime.LogEntry{
			TopicID:    p.topic(),
			Message:    p.Message,
			Timestamp:  p.Timestamp,
			TotalCount: p.TotalCount,
		})

	case models.MessageTypeLogsCleared:
		var p topicFields
		if err := unmarshalPayload(env, &p); err != nil {
			return 0, err
		}
		if p.topic() == "" {
			return 0, fmt.Errorf("%w: logsCleared without topic", ErrInvalidEnvelope)
		}
		return d.PublishLogsCleared(ctx, p.topic())

	case models.MessageTypeAnalysisUpdate:
		var p analysisPayload
		if err := unmarshalPayload(env, &p); err != nil {
			return 0, err
		}
		h.trackProcess(p)
		return d.PublishJobUpdate(ctx, p.topic(), p.TeamID, env.Payload)

	case models.MessageTypeAnalysisMoved:
		var p movePayload
		if err := unmarshalPayload(env, &p); err != nil {
			return 0, err
		}
		return d.BroadcastTeamMove(ctx, p.FromTeamID, p.ToTeamID, env.Payload)

	case models.MessageTypePermissionsChanged:
		var p userPayload
		if err := unmarshalPayload(env, &p); err != nil {
			return 0, err
		}
		if p.UserID == "" {
			return 0, fmt.Errorf("%w: permissionsChanged without userId", ErrInvalidEnvelope)
		}
		return d.PermissionsChanged(ctx, p.UserID)

	case models.MessageTypeRefresh:
		return d.Refresh(ctx, env.Target)
	}

	scope, err := realtime.ParseScope(env.Scope, env.Target)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidEnvelope, err)
	}
	var payload interface{}
	if len(env.Payload) > 0 {
		payload = env.Payload
	}
	return d.Publish(ctx, realtime.Event{Type: env.Type, Payload: payload, Scope: scope})
}

func (h *Handler) trackProcess(p analysisPayload) {
	if h.tracker == nil || p.topic() == "" {
		return
	}
	switch p.Status {
	case "running", "started":
		if p.PID > 0 {
			h.tracker.Track(p.topic(), p.TeamID, p.PID)
		}
	case "stopped", "completed", "failed", "cancelled":
		h.tracker.Untrack(p.topic())
	}
}

func unmarshalPayload(env *Envelope, v interface{}) error {
	if len(env.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrInvalidEnvelope, env.Type, err)
	}
	return nil
}
