// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

//go:build !nats

package ingest

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
)

// NATSConfig configures the JetStream backend.
type NATSConfig struct {
	URL           string
	QueueGroup    string
	DurableName   string
	MaxReconnects int
	ReconnectWait time.Duration
	AckWait       time.Duration
	CloseTimeout  time.Duration
}

// NATSAvailable reports whether this binary was built with NATS support.
const NATSAvailable = false

// NewNATSBus returns an error in non-NATS builds.
func NewNATSBus(_ NATSConfig, _ watermill.LoggerAdapter) (*Bus, error) {
	return nil, fmt.Errorf("NATS support not enabled (build with -tags nats)")
}
