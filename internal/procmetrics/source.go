// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

// Package procmetrics samples the resource usage of running analysis
// processes with gopsutil and assembles the unfiltered metrics snapshot.
package procmetrics

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/tomtom215/relay/internal/logging"
	"github.com/tomtom215/relay/internal/models"
)

type tracked struct {
	teamID string
	pid    int32
	proc   *process.Process // kept so CPU percent is measured between samples
}

// Source tracks analysis processes by pid.
type Source struct {
	mu       sync.Mutex
	sampleMu sync.Mutex // serializes snapshots; sample mutates tracked.proc
	analyses map[string]*tracked
	withHost bool
	now      func() time.Time
}

// NewSource creates an empty source. withHost adds host CPU and memory to
// every snapshot.
func NewSource(withHost bool) *Source {
	return &Source{analyses: make(map[string]*tracked), withHost: withHost, now: time.Now}
}

// Track starts sampling pid for analysisID.
func (s *Source) Track(analysisID, teamID string, pid int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analyses[analysisID] = &tracked{teamID: teamID, pid: pid}
	logging.Debug().Str("analysis_id", analysisID).Int32("pid", pid).Msg("tracking analysis process")
}

// Untrack stops sampling analysisID.
func (s *Source) Untrack(analysisID string) {
	s.mu.Lock()
	delete(s.analyses, analysisID)
	s.mu.Unlock()
}

// Len returns the number of tracked analyses.
func (s *Source) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.analyses)
}

// AllMetricsSnapshot samples every tracked process. A process that cannot
// be read is reported as not running with zero usage.
func (s *Source) AllMetricsSnapshot(ctx context.Context) (*models.MetricsData, error) {
	s.sampleMu.Lock()
	defer s.sampleMu.Unlock()

	s.mu.Lock()
	ids := make([]string, 0, len(s.analyses))
	for id := range s.analyses {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	entries := make([]*tracked, len(ids))
	for i, id := range ids {
		entries[i] = s.analyses[id]
	}
	s.mu.Unlock()

	out := &models.MetricsData{
		Timestamp: s.now().UTC(),
		Processes: make([]models.ProcessMetrics, 0, len(ids)),
	}
	for i, id := range ids {
		out.Processes = append(out.Processes, sample(ctx, id, entries[i]))
	}
	out.Total = models.SumProcesses(out.Processes)

	if s.withHost {
		if sys, err := hostMetrics(ctx); err != nil {
			logging.Debug().Err(err).Msg("host metrics unavailable")
		} else {
			out.System = sys
		}
	}
	return out, nil
}

func sample(ctx context.Context, analysisID string, t *tracked) models.ProcessMetrics {
	pm := models.ProcessMetrics{AnalysisID: analysisID, TeamID: t.teamID, PID: t.pid}

	if t.proc == nil {
		p, err := process.NewProcessWithContext(ctx, t.pid)
		if err != nil {
			return pm
		}
		t.proc = p
	}
	running, err := t.proc.IsRunningWithContext(ctx)
	if err != nil || !running {
		t.proc = nil
		return pm
	}
	pm.Running = true
	if pct, err := t.proc.CPUPercentWithContext(ctx); err == nil {
		pm.CPUPercent = pct
	}
	if info, err := t.proc.MemoryInfoWithContext(ctx); err == nil && info != nil {
		pm.MemoryBytes = info.RSS
	}
	return pm
}

func hostMetrics(ctx context.Context) (*models.SystemMetrics, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, err
	}
	sys := &models.SystemMetrics{MemoryUsedBytes: vm.Used, MemoryTotalBytes: vm.Total}
	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		sys.CPUPercent = pct[0]
	}
	return sys, nil
}
