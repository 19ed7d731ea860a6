// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package models

import "time"

// ProcessMetrics is the resource usage of one running analysis.
type ProcessMetrics struct {
	AnalysisID  string  `json:"analysisId"`
	TeamID      string  `json:"teamId"`
	PID         int32   `json:"pid,omitempty"`
	CPUPercent  float64 `json:"cpuPercent"`
	MemoryBytes uint64  `json:"memoryBytes"`
	Running     bool    `json:"running"`
}

// MetricsTotals aggregates a set of ProcessMetrics.
type MetricsTotals struct {
	Processes   int     `json:"processes"`
	Running     int     `json:"running"`
	CPUPercent  float64 `json:"cpuPercent"`
	MemoryBytes uint64  `json:"memoryBytes"`
}

// SystemMetrics describes the host. Only administrators receive it.
type SystemMetrics struct {
	CPUPercent       float64 `json:"cpuPercent"`
	MemoryUsedBytes  uint64  `json:"memoryUsedBytes"`
	MemoryTotalBytes uint64  `json:"memoryTotalBytes"`
}

// MetricsData is the payload of a metricsUpdate message.
type MetricsData struct {
	Timestamp time.Time        `json:"timestamp"`
	Total     MetricsTotals    `json:"total"`
	Processes []ProcessMetrics `json:"processes"`
	System    *SystemMetrics   `json:"system,omitempty"`
}

// SumProcesses recomputes totals from processes.
func SumProcesses(processes []ProcessMetrics) MetricsTotals {
	var t MetricsTotals
	for _, p := range processes {
		t.Processes++
		if p.Running {
			t.Running++
		}
		t.CPUPercent += p.CPUPercent
		t.MemoryBytes += p.MemoryBytes
	}
	return t
}

// FilterTeams returns a copy containing only processes of the given teams,
// with Total recomputed from that subset and System removed.
func (m *MetricsData) FilterTeams(teams map[string]struct{}) *MetricsData {
	out := &MetricsData{Timestamp: m.Timestamp, Processes: make([]ProcessMetrics, 0, len(m.Processes))}
	for _, p := range m.Processes {
		if _, ok := teams[p.TeamID]; ok {
			out.Processes = append(out.Processes, p)
		}
	}
	out.Total = SumProcesses(out.Processes)
	return out
}
