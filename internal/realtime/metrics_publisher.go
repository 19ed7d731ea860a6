// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package realtime

import (
	"context"
	"time"

	"github.com/tomtom215/relay/internal/logging"
)

// MetricsPublisher periodically broadcasts the metrics snapshot, filtered
// per viewer.
type MetricsPublisher struct {
	dispatcher *Dispatcher
	source     MetricsSource
	interval   time.Duration
}

// NewMetricsPublisher creates a publisher. interval <= 0 means 5s.
func NewMetricsPublisher(d *Dispatcher, source MetricsSource, interval time.Duration) *MetricsPublisher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &MetricsPublisher{dispatcher: d, source: source, interval: interval}
}

// RunWithContext publishes until ctx is canceled.
func (p *MetricsPublisher) RunWithContext(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := p.PublishOnce(ctx); err != nil {
				logging.Warn().Err(err).Msg("metrics broadcast failed")
			}
		}
	}
}

// PublishOnce takes one snapshot and broadcasts it. Nothing is sent while
// no session is connected.
func (p *MetricsPublisher) PublishOnce(ctx context.Context) (int, error) {
	if n, err := p.dispatcher.Registry().Count(ctx); err != nil || n == 0 {
		return 0, err
	}
	snapshot, err := p.source.AllMetricsSnapshot(ctx)
	if err != nil {
		return 0, err
	}
	return p.dispatcher.PublishMetrics(ctx, snapshot)
}
