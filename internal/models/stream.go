// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package models

import (
	"time"

	"github.com/goccy/go-json"
)

// Stream message types.
const (
	// Reserved: consumed by the connection controller, never forwarded.
	MessageTypeHeartbeat  = "heartbeat"
	MessageTypeConnection = "connection"

	MessageTypeInit               = "init"
	MessageTypeSessionInvalidated = "sessionInvalidated"
	MessageTypeRefresh            = "refresh"

	MessageTypeLog         = "log"
	MessageTypeLogsCleared = "logsCleared"

	MessageTypeMetricsUpdate      = "metricsUpdate"
	MessageTypeAnalysisUpdate     = "analysisUpdate"
	MessageTypeAnalysisMoved      = "analysisMovedToTeam"
	MessageTypeTeamUpdate         = "teamUpdate"
	MessageTypeTeamStructure      = "teamStructureUpdated"
	MessageTypeUserUpdated        = "userUpdated"
	MessageTypePermissionsChanged = "permissionsChanged"
	MessageTypeAdminNotice        = "adminNotice"
)

// Reasons carried by sessionInvalidated.
const (
	InvalidationServerShutdown = "server_shutdown"
	InvalidationRevoked        = "revoked"
)

// IsReserved reports whether t is a transport-level message type.
func IsReserved(t string) bool {
	return t == MessageTypeHeartbeat || t == MessageTypeConnection
}

// TopLevel is implemented by payloads that are serialized flat, with their
// own "type" field, instead of inside {"type","data"}.
type TopLevel interface {
	MessageType() string
}

// Envelope is the default frame.
type Envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Encode renders one stream frame for the given type and payload.
func Encode(messageType string, payload interface{}) ([]byte, error) {
	if tl, ok := payload.(TopLevel); ok && tl.MessageType() == messageType {
		return json.Marshal(payload)
	}
	return json.Marshal(Envelope{Type: messageType, Data: payload})
}

// InitMessage is the first authoritative snapshot after connect.
//
// Epoch names the sequence numbering in use. A client that sees a different
// epoch than on its previous session must forget the numbers it applied.
type InitMessage struct {
	Type          string      `json:"type"`
	SessionID     string      `json:"sessionId"`
	Epoch         string      `json:"epoch"`
	ServerTime    time.Time   `json:"serverTime"`
	Analyses      interface{} `json:"analyses,omitempty"`
	Teams         interface{} `json:"teams,omitempty"`
	TeamStructure interface{} `json:"teamStructure,omitempty"`
}

// MessageType implements TopLevel.
func (InitMessage) MessageType() string { return MessageTypeInit }

// HeartbeatMessage is emitted by the liveness monitor.
type HeartbeatMessage struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// MessageType implements TopLevel.
func (HeartbeatMessage) MessageType() string { return MessageTypeHeartbeat }

// SessionInvalidatedMessage tells a client its session is over.
type SessionInvalidatedMessage struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// MessageType implements TopLevel.
func (SessionInvalidatedMessage) MessageType() string { return MessageTypeSessionInvalidated }

// LogLine is one sequenced log entry of a topic.
type LogLine struct {
	Sequence  uint64    `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// LogData is the data of a "log" message.
type LogData struct {
	TopicID    string  `json:"topicId"`
	Log        LogLine `json:"log"`
	TotalCount uint64  `json:"totalCount"`
}

// LogsClearedData is the data of a "logsCleared" message.
type LogsClearedData struct {
	TopicID string `json:"topicId"`
}

// SubscribeRequest is the body of the subscribe and unsubscribe calls.
type SubscribeRequest struct {
	SessionID string   `json:"sessionId" validate:"required,uuid"`
	Topics    []string `json:"topics" validate:"required,min=1,max=100,dive,required,max=128,topicname"`
}

// SubscribeResponse answers a subscribe call.
type SubscribeResponse struct {
	Subscribed []string `json:"subscribed"`
}

// UnsubscribeResponse answers an unsubscribe call.
type UnsubscribeResponse struct {
	Unsubscribed []string `json:"unsubscribed"`
}

// RawMessage is the client-side view of any incoming frame.
type RawMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	Epoch     string          `json:"epoch,omitempty"`
	Reason    string          `json:"reason,omitempty"`

	// Raw is the complete frame as received.
	Raw json.RawMessage `json:"-"`
}

// DecodeRaw parses one frame.
func DecodeRaw(frame []byte) (*RawMessage, error) {
	var msg RawMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		return nil, err
	}
	msg.Raw = append(json.RawMessage(nil), frame...)
	return &msg, nil
}
