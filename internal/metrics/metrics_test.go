// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordPublish(t *testing.T) {
	before := testutil.ToFloat64(DeliveriesTotal.WithLabelValues("topic"))

	RecordPublish("topic", 3, 2*time.Millisecond)
	RecordPublish("topic", 0, time.Millisecond)

	if got := testutil.ToFloat64(DeliveriesTotal.WithLabelValues("topic")) - before; got != 3 {
		t.Errorf("deliveries delta = %v, want 3", got)
	}
}

func TestRecordDeliveryFailure(t *testing.T) {
	before := testutil.ToFloat64(DeliveryFailures.WithLabelValues("global", "slow_consumer"))
	RecordDeliveryFailure("global", "slow_consumer")
	if got := testutil.ToFloat64(DeliveryFailures.WithLabelValues("global", "slow_consumer")) - before; got != 1 {
		t.Errorf("failures delta = %v, want 1", got)
	}
}

func TestRecordTeamCache(t *testing.T) {
	hits := testutil.ToFloat64(TeamCacheLookups.WithLabelValues("hit"))
	misses := testutil.ToFloat64(TeamCacheLookups.WithLabelValues("miss"))

	RecordTeamCache(true)
	RecordTeamCache(false)
	RecordTeamCache(false)

	if got := testutil.ToFloat64(TeamCacheLookups.WithLabelValues("hit")) - hits; got != 1 {
		t.Errorf("hits delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(TeamCacheLookups.WithLabelValues("miss")) - misses; got != 2 {
		t.Errorf("misses delta = %v, want 2", got)
	}
}

func TestRecordAPIRequest(t *testing.T) {
	tests := []struct {
		method, endpoint, status string
	}{
		{"GET", "/api/v1/stream", "200"},
		{"POST", "/api/v1/stream/subscribe", "400"},
	}
	for _, tt := range tests {
		before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues(tt.method, tt.endpoint, tt.status))
		RecordAPIRequest(tt.method, tt.endpoint, tt.status, 10*time.Millisecond)
		if got := testutil.ToFloat64(APIRequestsTotal.WithLabelValues(tt.method, tt.endpoint, tt.status)) - before; got != 1 {
			t.Errorf("%s %s: delta = %v, want 1", tt.method, tt.endpoint, got)
		}
	}
}

func TestRecordIngest(t *testing.T) {
	before := testutil.ToFloat64(IngestMessages.WithLabelValues("invalid"))
	RecordIngest("invalid")
	if got := testutil.ToFloat64(IngestMessages.WithLabelValues("invalid")) - before; got != 1 {
		t.Errorf("delta = %v, want 1", got)
	}
}
