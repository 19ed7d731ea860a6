// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package realtime

import (
	"sort"
	"sync/atomic"
	"time"
)

// Role is the session's authorization level.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Conn is a live transport. Send must not block: it enqueues the frame or
// fails with ErrSlowConsumer or ErrConnClosed. Close must be idempotent.
type Conn interface {
	Send(frame []byte) error
	Close() error
	// Done is closed once the transport has terminated.
	Done() <-chan struct{}
	// Transport names the transport for metrics ("sse", "websocket").
	Transport() string
}

// Session is one authenticated live connection plus the identity snapshot
// taken when it was opened. Identity fields are immutable once registered.
type Session struct {
	ID          string
	UserID      string
	Role        Role
	ConnectedAt time.Time

	teams map[string]struct{}
	conn  Conn

	lastPush  atomic.Int64 // unix nanos
	connected atomic.Bool
}

// NewSession builds an unregistered session. teams is copied.
func NewSession(userID string, role Role, teams []string, conn Conn) *Session {
	set := make(map[string]struct{}, len(teams))
	for _, t := range teams {
		set[t] = struct{}{}
	}
	return &Session{UserID: userID, Role: role, teams: set, conn: conn}
}

// IsAdmin reports whether the session has the administrator role.
func (s *Session) IsAdmin() bool { return s.Role == RoleAdmin }

// CanViewTeam reports whether teamID is in the snapshot. Admins see everything.
func (s *Session) CanViewTeam(teamID string) bool {
	if s.IsAdmin() {
		return true
	}
	_, ok := s.teams[teamID]
	return ok
}

// Teams returns the allowed-team snapshot. Callers must not modify it.
func (s *Session) Teams() map[string]struct{} { return s.teams }

// TeamIDs returns the snapshot as a sorted slice.
func (s *Session) TeamIDs() []string {
	ids := make([]string, 0, len(s.teams))
	for id := range s.teams {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// LastPushAt is the time of the last successful delivery.
func (s *Session) LastPushAt() time.Time {
	return time.Unix(0, s.lastPush.Load())
}

// IsConnected reports whether the session is registered with a live transport.
func (s *Session) IsConnected() bool { return s.connected.Load() }

// Conn returns the transport handle.
func (s *Session) Conn() Conn { return s.conn }

func (s *Session) touch(now time.Time) { s.lastPush.Store(now.UnixNano()) }

// deliver writes frame and records the push on success.
func (s *Session) deliver(frame []byte, now time.Time) error {
	if !s.connected.Load() {
		return ErrConnClosed
	}
	if err := s.conn.Send(frame); err != nil {
		return err
	}
	s.touch(now)
	return nil
}

// SessionInfo is a read-only view used by admin tooling.
type SessionInfo struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Role        Role      `json:"role"`
	Transport   string    `json:"transport"`
	Teams       []string  `json:"teams"`
	Topics      []string  `json:"topics"`
	ConnectedAt time.Time `json:"connectedAt"`
	LastPushAt  time.Time `json:"lastPushAt"`
}
