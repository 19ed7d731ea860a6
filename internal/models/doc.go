// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

// Package models defines the wire contract shared by the Relay server and
// its Go stream client.
//
// Every stream item is one JSON object with at least a "type" field. Most
// items use the envelope form {"type": T, "data": ...}; a few control
// messages (init, heartbeat, sessionInvalidated) are flat objects whose
// fields sit next to "type". Types implementing TopLevel are written flat.
package models
