// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

// Package sequence assigns per-topic sequence numbers to outgoing stream
// items and provides the receiver-side dedup set.
//
// # Server side
//
// A Tracker hands out strictly increasing numbers per topic. Numbers are
// never reused. The only way to restart a topic at 1 is Reset, which is
// called when the topic's log is cleared and is paired with a logsCleared
// event so receivers drop their dedup state for that topic too.
//
// Persistence is optional. With a BadgerStore the tracker leases blocks of
// numbers (LeaseSize at a time) and records the top of each block, so a
// restarted server resumes above anything it may already have emitted.
// MemoryStore keeps counters for the life of the process only.
//
// # Client side
//
// Dedup records accepted sequence numbers per topic. Accept returns false
// for a number already seen, which makes replays after a reconnect
// harmless.
package sequence
