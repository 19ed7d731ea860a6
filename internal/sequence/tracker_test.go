// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package sequence

import (
	"errors"
	"sync"
	"testing"
)

func TestTracker_Next_StrictlyIncreasing(t *testing.T) {
	tr := NewTracker(nil, 3)

	var last uint64
	for i := 0; i < 10; i++ {
		n, err := tr.Next("job-1")
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if n <= last {
			t.Fatalf("Next() = %d after %d", n, last)
		}
		last = n
	}
	if last != 10 {
		t.Errorf("last = %d, want 10", last)
	}
	if got, _ := tr.Next("job-2"); got != 1 {
		t.Errorf("independent topic started at %d, want 1", got)
	}
}

func TestTracker_Concurrent(t *testing.T) {
	tr := NewTracker(nil, 7)

	const workers, per = 8, 50
	results := make(chan uint64, workers*per)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < per; i++ {
				n, err := tr.Next("t")
				if err != nil {
					t.Error(err)
					return
				}
				results <- n
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[uint64]bool)
	for n := range results {
		if seen[n] {
			t.Fatalf("sequence %d handed out twice", n)
		}
		seen[n] = true
	}
	if len(seen) != workers*per {
		t.Errorf("got %d numbers, want %d", len(seen), workers*per)
	}
}

func TestTracker_Reset(t *testing.T) {
	tr := NewTracker(nil, 0)
	for i := 0; i < 3; i++ {
		_, _ = tr.Next("job")
	}
	if err := tr.Reset("job"); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if got, _ := tr.Next("job"); got != 1 {
		t.Errorf("Next() after Reset = %d, want 1", got)
	}
}

func TestTracker_ResumesAboveLease(t *testing.T) {
	store := NewMemoryStore()
	first := NewTracker(store, 5)
	for i := 0; i < 3; i++ {
		_, _ = first.Next("job")
	}

	// Simulates a restart sharing the same durable store.
	second := NewTracker(store, 5)
	n, err := second.Next("job")
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if n <= 3 {
		t.Errorf("restarted tracker reused number %d", n)
	}
	if n != 6 {
		t.Errorf("Next() = %d, want 6 (first number above lease)", n)
	}
}

func TestTracker_EpochDiffersAcrossRestart(t *testing.T) {
	first := NewTracker(nil, 0)
	second := NewTracker(nil, 0)

	// Both count from 1, so only the epoch tells their numbers apart.
	for _, tr := range []*Tracker{first, second} {
		if n, _ := tr.Next("job"); n != 1 {
			t.Fatalf("Next() = %d, want 1", n)
		}
	}
	if first.Epoch() == "" {
		t.Fatal("Epoch() is empty")
	}
	if first.Epoch() == second.Epoch() {
		t.Errorf("two trackers share epoch %q", first.Epoch())
	}
}

type failingStore struct{ *MemoryStore }

var errStore = errors.New("disk full")

func (f *failingStore) Save(string, uint64) error { return errStore }

func TestTracker_StoreError(t *testing.T) {
	tr := NewTracker(&failingStore{MemoryStore: NewMemoryStore()}, 2)
	if _, err := tr.Next("job"); !errors.Is(err, errStore) {
		t.Errorf("Next() error = %v, want %v", err, errStore)
	}
	if c := tr.counters["job"]; c == nil || c.last != 0 {
		t.Errorf("failed lease advanced counter to %+v", c)
	}
}

func TestBadgerStore(t *testing.T) {
	store, err := OpenBadgerStore("")
	if err != nil {
		t.Fatalf("OpenBadgerStore() error = %v", err)
	}
	defer store.Close()

	if mark, err := store.Load("missing"); err != nil || mark != 0 {
		t.Errorf("Load(missing) = %d, %v", mark, err)
	}

	tr := NewTracker(store, 10)
	for i := 0; i < 12; i++ {
		if _, err := tr.Next("job-42"); err != nil {
			t.Fatalf("Next() error = %v", err)
		}
	}
	mark, err := store.Load("job-42")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if mark != 20 {
		t.Errorf("high-water mark = %d, want 20", mark)
	}

	if err := tr.Reset("job-42"); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if mark, _ := store.Load("job-42"); mark != 0 {
		t.Errorf("mark after Reset = %d", mark)
	}
	if err := store.Delete("never-existed"); err != nil {
		t.Errorf("Delete(missing) error = %v", err)
	}
}
