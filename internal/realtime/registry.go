// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package realtime

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/relay/internal/logging"
	"github.com/tomtom215/relay/internal/metrics"
)

// ErrDuplicateSession is returned when registering an id that is already live.
var ErrDuplicateSession = errors.New("realtime: duplicate session id")

// Registry owns all sessions and topic channels. State is only touched by
// the goroutine running RunWithContext; every public method submits a
// closure to it and waits for the result.
type Registry struct {
	ops      chan func()
	stopped  chan struct{}
	stopOnce sync.Once
	now      func() time.Time

	// Owned by the run loop.
	sessions map[string]*Session
	topics   map[string]map[string]struct{} // topic -> session ids
	users    map[string]map[string]struct{} // user -> session ids
	subs     map[string]map[string]struct{} // session -> topics
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates a registry. It does nothing until RunWithContext runs.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		ops:      make(chan func(), 64),
		stopped:  make(chan struct{}),
		now:      time.Now,
		sessions: make(map[string]*Session),
		topics:   make(map[string]map[string]struct{}),
		users:    make(map[string]map[string]struct{}),
		subs:     make(map[string]map[string]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunWithContext processes registry operations until ctx is canceled.
// On shutdown every remaining session is closed. Designed for suture
// supervision: a panic inside an operation restarts the loop with state intact.
func (r *Registry) RunWithContext(ctx context.Context) error {
	select {
	case <-r.stopped:
		return ErrRegistryStopped
	default:
	}

	for {
		// Shutdown takes priority over queued operations.
		select {
		case <-ctx.Done():
			r.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case <-ctx.Done():
			r.shutdown(ctx)
			return ctx.Err()
		case op := <-r.ops:
			op()
		}
	}
}

func (r *Registry) shutdown(ctx context.Context) {
	count := len(r.sessions)
	for id, s := range r.sessions {
		r.removeLocked(id)
		_ = s.conn.Close()
	}
	r.stopOnce.Do(func() { close(r.stopped) })

	reason := "context_canceled"
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		reason = "context_deadline"
	}
	logging.Info().
		Str("component", "registry").
		Str("reason", reason).
		Int("sessions_closed", count).
		Msg("session registry stopped")
}

// do runs fn on the registry goroutine and waits for it.
//
// ctx only bounds the wait for a queue slot. A queued fn always runs unless
// the registry stops, so from then on do waits for it regardless of ctx.
func (r *Registry) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	op := func() {
		defer close(done)
		fn()
	}

	select {
	case r.ops <- op:
	case <-r.stopped:
		return ErrRegistryStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-r.stopped:
		// The loop may have run fn just before stopping.
		select {
		case <-done:
			return nil
		default:
			return ErrRegistryStopped
		}
	}
}

// Register adds s to the registry and implicitly to the global channel.
// An empty s.ID is replaced with a new UUID.
func (r *Registry) Register(ctx context.Context, s *Session) (string, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := r.now()
	s.ConnectedAt = now
	s.touch(now)
	s.connected.Store(true)

	var dup bool
	var total int
	err := r.do(ctx, func() {
		if _, exists := r.sessions[s.ID]; exists {
			dup = true
			return
		}
		r.sessions[s.ID] = s
		addMember(r.users, s.UserID, s.ID)
		total = len(r.sessions)
		metrics.SessionsActive.WithLabelValues(s.conn.Transport()).Inc()
	})
	if err != nil {
		s.connected.Store(false)
		return "", err
	}
	if dup {
		s.connected.Store(false)
		return "", fmt.Errorf("%w: %s", ErrDuplicateSession, s.ID)
	}

	logging.Info().
		Str("session_id", s.ID).
		Str("user_id", s.UserID).
		Str("role", string(s.Role)).
		Int("total_sessions", total).
		Msg("stream session registered")
	return s.ID, nil
}

// Unregister removes a session from the global channel and every topic and
// closes its transport. Unknown ids are a no-op; the result reports whether
// a session was removed.
func (r *Registry) Unregister(ctx context.Context, id string) (bool, error) {
	var removed *Session
	err := r.do(ctx, func() {
		removed = r.removeLocked(id)
	})
	if err != nil {
		return false, err
	}
	if removed == nil {
		return false, nil
	}
	_ = removed.conn.Close()
	logging.Info().
		Str("session_id", id).
		Str("user_id", removed.UserID).
		Msg("stream session unregistered")
	return true, nil
}

// removeLocked must run on the registry goroutine.
func (r *Registry) removeLocked(id string) *Session {
	s, ok := r.sessions[id]
	if !ok {
		return nil
	}
	delete(r.sessions, id)
	removeMember(r.users, s.UserID, id)
	for topic := range r.subs[id] {
		removeMember(r.topics, topic, id)
	}
	delete(r.subs, id)
	s.connected.Store(false)

	metrics.SessionsActive.WithLabelValues(s.conn.Transport()).Dec()
	metrics.TopicsActive.Set(float64(len(r.topics)))
	return s
}

// Subscribe adds the session to each topic channel, creating channels on
// first use. It returns the topics the session is now subscribed to among
// those requested, which is empty when the session is unknown.
// Permission must be checked by the caller.
func (r *Registry) Subscribe(ctx context.Context, id string, topics ...string) ([]string, error) {
	var out []string
	err := r.do(ctx, func() {
		if _, ok := r.sessions[id]; !ok {
			return
		}
		for _, topic := range dedupe(topics) {
			addMember(r.topics, topic, id)
			addMember(r.subs, id, topic)
			out = append(out, topic)
		}
		metrics.TopicsActive.Set(float64(len(r.topics)))
	})
	if err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

// Unsubscribe removes the session from each topic, releasing empty
// channels. It returns the requested topics the session is no longer a
// member of, which is empty when the session is unknown.
func (r *Registry) Unsubscribe(ctx context.Context, id string, topics ...string) ([]string, error) {
	var out []string
	err := r.do(ctx, func() {
		if _, ok := r.sessions[id]; !ok {
			return
		}
		for _, topic := range dedupe(topics) {
			removeMember(r.topics, topic, id)
			removeMember(r.subs, id, topic)
			out = append(out, topic)
		}
		metrics.TopicsActive.Set(float64(len(r.topics)))
	})
	if err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

// Sessions resolves a scope to its member sessions. Team scopes need the
// permission collaborator and are resolved by the Dispatcher instead.
// Unknown topics and users resolve to an empty slice.
func (r *Registry) Sessions(ctx context.Context, scope Scope) ([]*Session, error) {
	if !scope.Valid() {
		return nil, ErrInvalidScope
	}
	if scope.Kind() == ScopeTeam {
		return nil, fmt.Errorf("%w: team scopes are resolved by the dispatcher", ErrInvalidScope)
	}

	var out []*Session
	err := r.do(ctx, func() {
		switch scope.Kind() {
		case ScopeGlobal:
			out = make([]*Session, 0, len(r.sessions))
			for _, s := range r.sessions {
				out = append(out, s)
			}
		case ScopeAdminOnly:
			for _, s := range r.sessions {
				if s.IsAdmin() {
					out = append(out, s)
				}
			}
		case ScopeUser:
			out = r.collectLocked(r.users[scope.ID()], nil)
		case ScopeTopic:
			out = r.collectLocked(r.topics[scope.ID()], nil)
		}
	})
	if err != nil {
		return nil, err
	}
	sortSessions(out)
	return out, nil
}

// SessionsForUsers returns the union of every session of the given users.
// Each session appears once.
func (r *Registry) SessionsForUsers(ctx context.Context, userIDs map[string]struct{}) ([]*Session, error) {
	var out []*Session
	err := r.do(ctx, func() {
		seen := make(map[string]struct{})
		for u := range userIDs {
			out = r.collectLocked(r.users[u], seen, out...)
		}
	})
	if err != nil {
		return nil, err
	}
	sortSessions(out)
	return out, nil
}

func (r *Registry) collectLocked(ids map[string]struct{}, seen map[string]struct{}, out ...*Session) []*Session {
	for id := range ids {
		if seen != nil {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
		}
		if s, ok := r.sessions[id]; ok {
			out = append(out, s)
		}
	}
	return out
}

// Lookup returns the session with id, or nil.
func (r *Registry) Lookup(ctx context.Context, id string) (*Session, error) {
	var s *Session
	if err := r.do(ctx, func() { s = r.sessions[id] }); err != nil {
		return nil, err
	}
	return s, nil
}

// Count returns the number of registered sessions.
func (r *Registry) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.do(ctx, func() { n = len(r.sessions) }); err != nil {
		return 0, err
	}
	return n, nil
}

// TopicCount returns the number of live topic channels.
func (r *Registry) TopicCount(ctx context.Context) (int, error) {
	var n int
	if err := r.do(ctx, func() { n = len(r.topics) }); err != nil {
		return 0, err
	}
	return n, nil
}

// SubscriptionsOf returns the sorted topics of a session.
func (r *Registry) SubscriptionsOf(ctx context.Context, id string) ([]string, error) {
	var out []string
	if err := r.do(ctx, func() { out = keys(r.subs[id]) }); err != nil {
		return nil, err
	}
	return out, nil
}

// Snapshot lists every session for admin tooling.
func (r *Registry) Snapshot(ctx context.Context) ([]SessionInfo, error) {
	var out []SessionInfo
	err := r.do(ctx, func() {
		out = make([]SessionInfo, 0, len(r.sessions))
		for id, s := range r.sessions {
			out = append(out, SessionInfo{
				ID:          id,
				UserID:      s.UserID,
				Role:        s.Role,
				Transport:   s.conn.Transport(),
				Teams:       s.TeamIDs(),
				Topics:      keys(r.subs[id]),
				ConnectedAt: s.ConnectedAt,
				LastPushAt:  s.LastPushAt(),
			})
		}
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ConnectedAt.Equal(out[j].ConnectedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ConnectedAt.Before(out[j].ConnectedAt)
	})
	return out, nil
}

// ReclaimStale unregisters every session whose last successful delivery is
// before cutoff and closes its transport.
func (r *Registry) ReclaimStale(ctx context.Context, cutoff time.Time) ([]*Session, error) {
	var stale []*Session
	err := r.do(ctx, func() {
		for id, s := range r.sessions {
			if s.LastPushAt().Before(cutoff) {
				stale = append(stale, r.removeLocked(id))
			}
		}
	})
	if err != nil {
		return nil, err
	}
	for _, s := range stale {
		_ = s.conn.Close()
	}
	sortSessions(stale)
	return stale, nil
}

// Now returns the registry clock.
func (r *Registry) Now() time.Time { return r.now() }

// sortSessions orders by connect time, then id, so fan-out order is stable.
func sortSessions(list []*Session) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].ConnectedAt.Equal(list[j].ConnectedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].ConnectedAt.Before(list[j].ConnectedAt)
	})
}

func addMember(m map[string]map[string]struct{}, key, member string) {
	set, ok := m[key]
	if !ok {
		set = make(map[string]struct{})
		m[key] = set
	}
	set[member] = struct{}{}
}

func removeMember(m map[string]map[string]struct{}, key, member string) {
	set, ok := m[key]
	if !ok {
		return
	}
	delete(set, member)
	if len(set) == 0 {
		delete(m, key)
	}
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
