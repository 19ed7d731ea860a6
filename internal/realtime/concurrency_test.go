// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/relay/internal/metrics"
	"github.com/tomtom215/relay/internal/models"
)

// Run with -race. Producers, session churn, broken transports and the
// liveness monitor all hit one registry at once.
func TestDispatcher_ConcurrentPublishAndChurn(t *testing.T) {
	const (
		stable    = 8
		producers = 8
		perProd   = 50
		churners  = 4
		churnRuns = 50
		broken    = 4
		topic     = "job-stable"
	)

	ctx := context.Background()
	gauge := metrics.SessionsActive.WithLabelValues("fake")
	before := testutil.ToFloat64(gauge)

	r := startRegistry(t)
	d := newTestDispatcher(r, nil, nil)
	m := NewMonitor(d, LivenessConfig{StaleAfter: time.Hour})

	stableConns := make([]*fakeConn, stable)
	for i := range stableConns {
		s, c := register(t, r, fmt.Sprintf("stable-%d", i), RoleUser)
		if _, err := r.Subscribe(ctx, s.ID, topic); err != nil {
			t.Fatal(err)
		}
		stableConns[i] = c
	}
	brokenConns := make([]*fakeConn, broken)
	for i := range brokenConns {
		s, c := register(t, r, fmt.Sprintf("broken-%d", i), RoleUser)
		c.setFail(errors.New("broken pipe"))
		if _, err := r.Subscribe(ctx, s.ID, topic); err != nil {
			t.Fatal(err)
		}
		brokenConns[i] = c
	}

	var (
		work     sync.WaitGroup
		errMu    sync.Mutex
		failures []error
	)
	report := func(err error) {
		errMu.Lock()
		failures = append(failures, err)
		errMu.Unlock()
	}

	for p := 0; p < producers; p++ {
		work.Add(1)
		go func(p int) {
			defer work.Done()
			for i := 0; i < perProd; i++ {
				n, err := d.PublishLog(ctx, LogEntry{TopicID: topic, Message: fmt.Sprintf("p%d-%d", p, i)})
				if err != nil {
					report(err)
					return
				}
				if n < stable {
					report(fmt.Errorf("publish reached %d sessions, want at least %d", n, stable))
				}
			}
		}(p)
	}

	for c := 0; c < churners; c++ {
		work.Add(1)
		go func(c int) {
			defer work.Done()
			own := fmt.Sprintf("job-churn-%d", c)
			for i := 0; i < churnRuns; i++ {
				s := NewSession(fmt.Sprintf("churn-%d", c), RoleUser, nil, newFakeConn())
				if _, err := r.Register(ctx, s); err != nil {
					report(err)
					return
				}
				if _, err := r.Subscribe(ctx, s.ID, topic, own); err != nil {
					report(err)
				}
				if i%2 == 0 {
					if _, err := r.Unsubscribe(ctx, s.ID, topic); err != nil {
						report(err)
					}
				}
				if _, err := d.SendToUser(ctx, s.UserID, models.MessageTypeUserUpdated, nil); err != nil {
					report(err)
				}
				if _, err := r.Unregister(ctx, s.ID); err != nil {
					report(err)
				}
			}
		}(c)
	}

	stopTicks := make(chan struct{})
	ticks := 0
	var monitor sync.WaitGroup
	monitor.Add(1)
	go func() {
		defer monitor.Done()
		for {
			select {
			case <-stopTicks:
				return
			default:
			}
			if _, stale := m.Tick(ctx); len(stale) != 0 {
				report(fmt.Errorf("monitor reclaimed %d live sessions", len(stale)))
			}
			ticks++
			time.Sleep(100 * time.Microsecond)
		}
	}()

	work.Wait()
	close(stopTicks)
	monitor.Wait()
	for _, err := range failures {
		t.Error(err)
	}

	want := producers * perProd
	for i, c := range stableConns {
		if got := c.count(models.MessageTypeHeartbeat); got != ticks {
			t.Errorf("stable session %d got %d heartbeats, want %d", i, got, ticks)
		}
		seqs := make(map[uint64]bool, want)
		for _, msg := range c.messages(t) {
			if msg.Type != models.MessageTypeLog {
				continue
			}
			var data models.LogData
			if err := json.Unmarshal(msg.Data, &data); err != nil {
				t.Fatal(err)
			}
			if seqs[data.Log.Sequence] {
				t.Errorf("stable session %d got sequence %d twice", i, data.Log.Sequence)
			}
			seqs[data.Log.Sequence] = true
		}
		if len(seqs) != want {
			t.Errorf("stable session %d got %d log lines, want %d", i, len(seqs), want)
		}
		for seq := uint64(1); seq <= uint64(want); seq++ {
			if !seqs[seq] {
				t.Errorf("stable session %d missing sequence %d", i, seq)
				break
			}
		}
	}

	for i, c := range brokenConns {
		if !c.isClosed() {
			t.Errorf("broken session %d still open", i)
		}
	}
	if n, _ := r.Count(ctx); n != stable {
		t.Errorf("Count() = %d, want %d", n, stable)
	}
	if n, _ := r.TopicCount(ctx); n != 1 {
		t.Errorf("TopicCount() = %d, want 1", n)
	}
	if delta := testutil.ToFloat64(gauge) - before; delta != stable {
		t.Errorf("sessions gauge delta = %v, want %d", delta, stable)
	}
	if got := testutil.ToFloat64(metrics.SequenceTopics); got != 1 {
		t.Errorf("sequence topics = %v, want 1", got)
	}
}
