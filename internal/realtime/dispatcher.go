// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/relay/internal/logging"
	"github.com/tomtom215/relay/internal/metrics"
	"github.com/tomtom215/relay/internal/models"
	"github.com/tomtom215/relay/internal/sequence"
)

// DefaultViewPermission is the team permission checked for team scopes.
const DefaultViewPermission = "view_analyses"

// Transform personalizes a payload for one recipient. Returning nil skips
// the recipient.
type Transform func(s *Session, payload interface{}) interface{}

// Event is one publish request.
type Event struct {
	Type      string
	Payload   interface{}
	Scope     Scope
	Transform Transform
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	// Permission is checked for Team scopes. Empty means DefaultViewPermission.
	Permission string
}

// Dispatcher is the single entry point for event producers.
type Dispatcher struct {
	registry   *Registry
	resolver   *Resolver
	jobs       JobTeams
	sequences  *sequence.Tracker
	permission string
}

// NewDispatcher wires the dispatcher. jobs and sequences may be nil; the
// wrappers that need them then degrade as documented on each wrapper.
func NewDispatcher(registry *Registry, resolver *Resolver, jobs JobTeams, sequences *sequence.Tracker, cfg DispatcherConfig) *Dispatcher {
	if cfg.Permission == "" {
		cfg.Permission = DefaultViewPermission
	}
	if sequences == nil {
		sequences = sequence.NewTracker(nil, 0)
	}
	return &Dispatcher{
		registry:   registry,
		resolver:   resolver,
		jobs:       jobs,
		sequences:  sequences,
		permission: cfg.Permission,
	}
}

// Registry returns the underlying registry.
func (d *Dispatcher) Registry() *Registry { return d.registry }

// Resolver returns the team resolver.
func (d *Dispatcher) Resolver() *Resolver { return d.resolver }

// Epoch identifies the sequence numbering sessions of this process receive.
func (d *Dispatcher) Epoch() string { return d.sequences.Epoch() }

// Publish resolves ev.Scope, delivers to every candidate and unregisters
// the sessions whose write failed. It returns the number of successful
// deliveries. A resolution error abandons this publish only.
func (d *Dispatcher) Publish(ctx context.Context, ev Event) (int, error) {
	start := time.Now()
	if !ev.Scope.Valid() {
		return 0, ErrInvalidScope
	}

	candidates, err := d.candidates(ctx, ev.Scope)
	if err != nil {
		logging.Warn().Err(err).
			Str("type", ev.Type).
			Str("scope", ev.Scope.String()).
			Msg("publish abandoned: recipients not resolved")
		return 0, err
	}

	delivered := d.deliver(ctx, ev, candidates)
	metrics.RecordPublish(ev.Scope.Kind().String(), delivered, time.Since(start))
	return delivered, nil
}

func (d *Dispatcher) candidates(ctx context.Context, scope Scope) ([]*Session, error) {
	if scope.Kind() != ScopeTeam {
		return d.registry.Sessions(ctx, scope)
	}
	if scope.ID() == "" {
		// Compatibility rule: team events without a team id reach everyone.
		logging.Warn().Str("scope", "team").Msg("team id missing, broadcasting to all sessions")
		return d.registry.Sessions(ctx, Global())
	}
	users, err := d.resolveTeams(ctx, scope.ID())
	if err != nil {
		return nil, err
	}
	return d.registry.SessionsForUsers(ctx, users)
}

func (d *Dispatcher) resolveTeams(ctx context.Context, teamIDs ...string) (map[string]struct{}, error) {
	if d.resolver == nil {
		return nil, fmt.Errorf("%w: no team resolver configured", ErrResolution)
	}
	union := make(map[string]struct{})
	for _, id := range teamIDs {
		users, err := d.resolver.Resolve(ctx, id, d.permission)
		if err != nil {
			return nil, err
		}
		for u := range users {
			union[u] = struct{}{}
		}
	}
	return union, nil
}

// deliver writes to each candidate and reclaims failures.
func (d *Dispatcher) deliver(ctx context.Context, ev Event, candidates []*Session) int {
	if len(candidates) == 0 {
		return 0
	}
	scopeLabel := ev.Scope.Kind().String()

	var shared []byte
	if ev.Transform == nil {
		frame, err := models.Encode(ev.Type, ev.Payload)
		if err != nil {
			logging.Error().Err(err).Str("type", ev.Type).Msg("failed to encode event")
			return 0
		}
		shared = frame
	}

	now := d.registry.Now()
	delivered := 0
	var failed []*Session
	for _, s := range candidates {
		frame := shared
		if ev.Transform != nil {
			personal := ev.Transform(s, ev.Payload)
			if personal == nil {
				continue
			}
			var err error
			if frame, err = models.Encode(ev.Type, personal); err != nil {
				logging.Error().Err(err).Str("type", ev.Type).Str("session_id", s.ID).Msg("failed to encode personalized event")
				continue
			}
		}
		if err := s.deliver(frame, now); err != nil {
			metrics.RecordDeliveryFailure(scopeLabel, failureReason(err))
			logging.Debug().Err(err).Str("session_id", s.ID).Str("type", ev.Type).Msg("delivery failed")
			failed = append(failed, s)
			continue
		}
		delivered++
	}

	if len(failed) > 0 {
		// Reclaim even when the producer's context is already done.
		rctx := context.WithoutCancel(ctx)
		for _, s := range failed {
			if _, err := d.registry.Unregister(rctx, s.ID); err != nil {
				logging.Warn().Err(err).Str("session_id", s.ID).Msg("failed to unregister session after write failure")
			}
		}
		logging.Info().
			Str("type", ev.Type).
			Str("scope", ev.Scope.String()).
			Int("delivered", delivered).
			Int("failed", len(failed)).
			Msg("removed sessions after failed delivery")
	}
	return delivered
}
