// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package realtime

import "errors"

var (
	// ErrRegistryStopped is returned once the registry goroutine has exited.
	ErrRegistryStopped = errors.New("realtime: registry stopped")

	// ErrConnClosed is returned by Conn.Send after the transport closed.
	ErrConnClosed = errors.New("realtime: connection closed")

	// ErrSlowConsumer is returned by Conn.Send when the send buffer is full.
	ErrSlowConsumer = errors.New("realtime: send buffer full")

	// ErrResolution wraps failures of the team permission collaborator.
	ErrResolution = errors.New("realtime: team resolution failed")

	// ErrInvalidScope is returned for events without a constructed scope.
	ErrInvalidScope = errors.New("realtime: invalid scope")
)

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrSlowConsumer):
		return "slow_consumer"
	case errors.Is(err, ErrConnClosed):
		return "closed"
	default:
		return "other"
	}
}
