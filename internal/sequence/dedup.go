// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package sequence

import "sync"

type topicSet struct {
	seen  map[uint64]struct{}
	floor uint64 // everything <= floor counts as seen
	max   uint64
}

// Dedup is the receiver-side mirror of the tracker: per topic, the set of
// sequence numbers already applied.
//
// With a positive window the set keeps at most window entries per topic.
// Older entries are folded into a floor, and anything at or below the floor
// is rejected.
type Dedup struct {
	mu     sync.Mutex
	window int
	topics map[string]*topicSet
}

// NewDedup creates a dedup set. window <= 0 keeps every number.
func NewDedup(window int) *Dedup {
	return &Dedup{window: window, topics: make(map[string]*topicSet)}
}

// Accept records seq for topic and reports whether it was new.
func (d *Dedup) Accept(topic string, seq uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	ts, ok := d.topics[topic]
	if !ok {
		ts = &topicSet{seen: make(map[uint64]struct{})}
		d.topics[topic] = ts
	}
	if ts.floor > 0 && seq <= ts.floor {
		return false
	}
	if _, dup := ts.seen[seq]; dup {
		return false
	}
	ts.seen[seq] = struct{}{}
	if seq > ts.max {
		ts.max = seq
	}
	if d.window > 0 && len(ts.seen) > d.window {
		d.compact(ts)
	}
	return true
}

// Reset forgets everything about topic.
func (d *Dedup) Reset(topic string) {
	d.mu.Lock()
	delete(d.topics, topic)
	d.mu.Unlock()
}

// Clear forgets every topic.
func (d *Dedup) Clear() {
	d.mu.Lock()
	clear(d.topics)
	d.mu.Unlock()
}

func (d *Dedup) compact(ts *topicSet) {
	floor := ts.max - uint64(d.window)
	for seq := range ts.seen {
		if seq <= floor {
			delete(ts.seen, seq)
		}
	}
	if floor > ts.floor {
		ts.floor = floor
	}
}
