// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package sequence

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// DefaultLeaseSize is the number of sequence numbers reserved per store write.
const DefaultLeaseSize = 1000

type counter struct {
	last   uint64 // last number handed out
	leased uint64 // highest number recorded in the store
}

// Tracker hands out per-topic sequence numbers. Safe for concurrent use.
//
// Every tracker carries a random epoch. Numbers are only comparable within
// one epoch: a tracker over a MemoryStore starts every topic at 1 again, so
// receivers must drop their dedup state when the epoch they see changes.
type Tracker struct {
	mu        sync.Mutex
	store     Store
	leaseSize uint64
	epoch     string
	counters  map[string]*counter
}

// NewTracker creates a tracker persisting through store. A nil store means
// an in-process MemoryStore. leaseSize <= 0 selects DefaultLeaseSize.
func NewTracker(store Store, leaseSize int) *Tracker {
	if store == nil {
		store = NewMemoryStore()
	}
	if leaseSize <= 0 {
		leaseSize = DefaultLeaseSize
	}
	return &Tracker{
		store:     store,
		leaseSize: uint64(leaseSize),
		epoch:     uuid.NewString(),
		counters:  make(map[string]*counter),
	}
}

// Next returns the next sequence number for topic, starting at 1.
func (t *Tracker) Next(topic string) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, err := t.counterLocked(topic)
	if err != nil {
		return 0, err
	}
	next := c.last + 1
	if next > c.leased {
		mark := c.leased + t.leaseSize
		if err := t.store.Save(topic, mark); err != nil {
			return 0, fmt.Errorf("lease sequence block for %q: %w", topic, err)
		}
		c.leased = mark
	}
	c.last = next
	return next, nil
}

// Epoch identifies this tracker instance.
func (t *Tracker) Epoch() string {
	return t.epoch
}

// Reset restarts topic at 1. Only a cleared log justifies this.
func (t *Tracker) Reset(topic string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.counters, topic)
	if err := t.store.Delete(topic); err != nil {
		return fmt.Errorf("reset sequence for %q: %w", topic, err)
	}
	return nil
}

// Topics returns the number of topics with live counters.
func (t *Tracker) Topics() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.counters)
}

// Close releases the underlying store.
func (t *Tracker) Close() error {
	return t.store.Close()
}

func (t *Tracker) counterLocked(topic string) (*counter, error) {
	if c, ok := t.counters[topic]; ok {
		return c, nil
	}
	// A restarted process resumes above the previous lease so numbers
	// already emitted by the old process are never handed out again.
	mark, err := t.store.Load(topic)
	if err != nil {
		return nil, err
	}
	c := &counter{last: mark, leased: mark}
	t.counters[topic] = c
	return c, nil
}
