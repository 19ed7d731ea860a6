// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package realtime

import "fmt"

// ScopeKind enumerates recipient-selection rules.
type ScopeKind uint8

const (
	ScopeGlobal ScopeKind = iota + 1
	ScopeTeam
	ScopeUser
	ScopeAdminOnly
	ScopeTopic
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeGlobal:
		return "global"
	case ScopeTeam:
		return "team"
	case ScopeUser:
		return "user"
	case ScopeAdminOnly:
		return "admin"
	case ScopeTopic:
		return "topic"
	default:
		return "invalid"
	}
}

// Scope selects the recipients of one event. The zero value is invalid;
// build scopes with the constructors below.
type Scope struct {
	kind ScopeKind
	id   string
}

// Global targets every connected session.
func Global() Scope { return Scope{kind: ScopeGlobal} }

// Team targets sessions of users holding the dispatcher permission on teamID.
func Team(teamID string) Scope { return Scope{kind: ScopeTeam, id: teamID} }

// User targets every session of userID.
func User(userID string) Scope { return Scope{kind: ScopeUser, id: userID} }

// AdminOnly targets administrator sessions.
func AdminOnly() Scope { return Scope{kind: ScopeAdminOnly} }

// Topic targets sessions subscribed to topicID.
func Topic(topicID string) Scope { return Scope{kind: ScopeTopic, id: topicID} }

// Kind returns the scope kind.
func (s Scope) Kind() ScopeKind { return s.kind }

// ID returns the team, user or topic id. Empty for Global and AdminOnly.
func (s Scope) ID() string { return s.id }

// Valid reports whether s was built by a constructor.
func (s Scope) Valid() bool { return s.kind >= ScopeGlobal && s.kind <= ScopeTopic }

func (s Scope) String() string {
	if s.id == "" {
		return s.kind.String()
	}
	return s.kind.String() + ":" + s.id
}

// ParseScope maps an external (kind, target) pair onto a Scope.
func ParseScope(kind, target string) (Scope, error) {
	switch kind {
	case "global", "":
		return Global(), nil
	case "team":
		return Team(target), nil
	case "user":
		if target == "" {
			return Scope{}, fmt.Errorf("%w: user scope requires a target", ErrInvalidScope)
		}
		return User(target), nil
	case "admin", "adminOnly":
		return AdminOnly(), nil
	case "topic":
		if target == "" {
			return Scope{}, fmt.Errorf("%w: topic scope requires a target", ErrInvalidScope)
		}
		return Topic(target), nil
	default:
		return Scope{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidScope, kind)
	}
}
