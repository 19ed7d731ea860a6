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
)

// LivenessConfig configures the Monitor.
type LivenessConfig struct {
	// Interval between ticks. Zero means 30s.
	Interval time.Duration
	// StaleAfter is how long a session may go without a successful delivery.
	// Zero means three intervals.
	StaleAfter time.Duration
}

// Monitor emits heartbeats and reclaims stale sessions.
//
// A session is ALIVE while its last successful delivery is within
// StaleAfter and STALE afterwards; stale sessions are unregistered and
// their transport closed on the next tick.
type Monitor struct {
	dispatcher *Dispatcher
	interval   time.Duration
	staleAfter time.Duration
}

// NewMonitor creates a liveness monitor over the dispatcher's registry.
func NewMonitor(d *Dispatcher, cfg LivenessConfig) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 3 * cfg.Interval
	}
	return &Monitor{dispatcher: d, interval: cfg.Interval, staleAfter: cfg.StaleAfter}
}

// RunWithContext ticks until ctx is canceled.
func (m *Monitor) RunWithContext(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	logging.Info().
		Dur("interval", m.interval).
		Dur("stale_after", m.staleAfter).
		Msg("liveness monitor started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Tick sweeps stale sessions and then emits one heartbeat. The sweep runs
// first so a session is judged on the deliveries of the previous window,
// not on the heartbeat it is about to receive. It returns the number of
// heartbeats delivered and the sessions reclaimed.
func (m *Monitor) Tick(ctx context.Context) (int, []*Session) {
	registry := m.dispatcher.Registry()
	cutoff := registry.Now().Add(-m.staleAfter)
	stale, err := registry.ReclaimStale(ctx, cutoff)
	if err != nil {
		logging.Warn().Err(err).Msg("stale session sweep failed")
	}
	for _, s := range stale {
		metrics.StaleSessionsReclaimed.Inc()
		logging.Info().
			Str("session_id", s.ID).
			Str("user_id", s.UserID).
			Time("last_push_at", s.LastPushAt()).
			Msg("reclaimed stale session")
	}

	delivered, err := m.dispatcher.Heartbeat(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("heartbeat publish failed")
	}
	return delivered, stale
}
