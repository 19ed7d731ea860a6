// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package realtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/relay/internal/logging"
	"github.com/tomtom215/relay/internal/metrics"
)

const resolverBreakerName = "team-permissions"

// ResolverConfig tunes the guard around the TeamPermissions collaborator.
type ResolverConfig struct {
	// Timeout bounds one collaborator call. Zero means 2s.
	Timeout time.Duration

	// CacheTTL enables the permission cache when positive.
	CacheTTL time.Duration
	// CacheSize caps cache entries. Zero means 1024.
	CacheSize int

	// BreakerFailures is the consecutive failure count that opens the
	// circuit. Zero means 5.
	BreakerFailures uint32
	// BreakerOpenTimeout is how long the circuit stays open before a
	// probe. Zero means 30s.
	BreakerOpenTimeout time.Duration
}

// Resolver turns a team id into the set of user ids holding a permission on
// it. Each Resolve makes at most one collaborator call.
type Resolver struct {
	perms   TeamPermissions
	timeout time.Duration
	cb      *gobreaker.CircuitBreaker[[]string]
	cache   *expirable.LRU[string, map[string]struct{}]
}

// NewResolver wraps perms with a timeout, a circuit breaker and an optional
// TTL cache.
func NewResolver(perms TeamPermissions, cfg ResolverConfig) *Resolver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 1024
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerOpenTimeout <= 0 {
		cfg.BreakerOpenTimeout = 30 * time.Second
	}

	metrics.CircuitBreakerState.WithLabelValues(resolverBreakerName).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(resolverBreakerName).Set(0)

	threshold := cfg.BreakerFailures
	cb := gobreaker.NewCircuitBreaker[[]string](gobreaker.Settings{
		Name:        resolverBreakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			trip := counts.ConsecutiveFailures >= threshold
			if trip {
				logging.Warn().Uint32("consecutive_failures", counts.ConsecutiveFailures).Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return trip
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},
	})

	r := &Resolver{perms: perms, timeout: cfg.Timeout, cb: cb}
	if cfg.CacheTTL > 0 {
		r.cache = expirable.NewLRU[string, map[string]struct{}](cfg.CacheSize, nil, cfg.CacheTTL)
	}
	return r
}

// Resolve returns the users holding permission on teamID. Errors wrap
// ErrResolution.
func (r *Resolver) Resolve(ctx context.Context, teamID, permission string) (map[string]struct{}, error) {
	key := teamID + "\x00" + permission
	if r.cache != nil {
		if users, ok := r.cache.Get(key); ok {
			metrics.RecordTeamCache(true)
			return users, nil
		}
		metrics.RecordTeamCache(false)
	}

	ids, err := r.cb.Execute(func() ([]string, error) {
		return r.call(ctx, teamID, permission)
	})
	if err != nil {
		metrics.ResolutionErrors.Inc()
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(resolverBreakerName, "rejected").Inc()
		} else {
			metrics.CircuitBreakerRequests.WithLabelValues(resolverBreakerName, "failure").Inc()
			metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(resolverBreakerName).Set(float64(r.cb.Counts().ConsecutiveFailures))
		}
		return nil, fmt.Errorf("%w: team %q: %w", ErrResolution, teamID, err)
	}
	metrics.CircuitBreakerRequests.WithLabelValues(resolverBreakerName, "success").Inc()

	users := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		users[id] = struct{}{}
	}
	if r.cache != nil {
		r.cache.Add(key, users)
	}
	return users, nil
}

// call runs the collaborator with a deadline, even if it ignores ctx.
func (r *Resolver) call(ctx context.Context, teamID, permission string) ([]string, error) {
	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type result struct {
		ids []string
		err error
	}
	ch := make(chan result, 1)
	go func() {
		ids, err := r.perms.UserIDsWithTeamPermission(cctx, teamID, permission)
		ch <- result{ids: ids, err: err}
	}()

	select {
	case res := <-ch:
		return res.ids, res.err
	case <-cctx.Done():
		return nil, cctx.Err()
	}
}

// Purge drops every cached permission set.
func (r *Resolver) Purge() {
	if r.cache != nil {
		r.cache.Purge()
	}
}

// State returns the circuit breaker state.
func (r *Resolver) State() gobreaker.State { return r.cb.State() }

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
