// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package realtime

import (
	"errors"
	"testing"
)

func TestParseScope(t *testing.T) {
	tests := []struct {
		kind, target string
		want         Scope
		wantErr      bool
	}{
		{"global", "", Global(), false},
		{"", "", Global(), false},
		{"team", "t1", Team("t1"), false},
		{"team", "", Team(""), false},
		{"user", "u1", User("u1"), false},
		{"user", "", Scope{}, true},
		{"admin", "", AdminOnly(), false},
		{"adminOnly", "", AdminOnly(), false},
		{"topic", "job-1", Topic("job-1"), false},
		{"topic", "", Scope{}, true},
		{"everyone", "", Scope{}, true},
	}
	for _, tt := range tests {
		got, err := ParseScope(tt.kind, tt.target)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseScope(%q, %q) error = %v", tt.kind, tt.target, err)
			continue
		}
		if err != nil && !errors.Is(err, ErrInvalidScope) {
			t.Errorf("error %v does not wrap ErrInvalidScope", err)
		}
		if got != tt.want {
			t.Errorf("ParseScope(%q, %q) = %v, want %v", tt.kind, tt.target, got, tt.want)
		}
	}
}

func TestScope_ZeroValueInvalid(t *testing.T) {
	var s Scope
	if s.Valid() {
		t.Error("zero Scope is valid")
	}
	if Topic("x").String() != "topic:x" || Global().String() != "global" {
		t.Error("unexpected String() rendering")
	}
}
