// Package sysmon reports host resource usage for the dashboard.
package sysmon

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sort"
	"strings"
	"time"
)

const (
	topProcesses  = 4
	maxNameRunes  = 20
	cpuSampleTime = 100 * time.Millisecond
	bytesPerGB    = 1 << 30
)

// Info is a point-in-time snapshot. Fields that could not be read are zero.
type Info struct {
	CPULoad       float64   `json:"cpu_load"`
	RAMUsage      float64   `json:"ram_usage"`
	Processes     []Process `json:"processes"`
	Platform      string    `json:"platform"`
	CPUCount      int       `json:"cpu_count"`
	MemoryTotalGB float64   `json:"memory_total_gb"`
	MemoryUsedGB  float64   `json:"memory_used_gb"`
}

// Process is a formatted process row.
type Process struct {
	Name string `json:"name"`
	CPU  string `json:"cpu"`
	Mem  string `json:"mem"`
}

// MemoryStats is virtual memory usage.
type MemoryStats struct {
	Total       uint64
	Used        uint64
	UsedPercent float64
}

// ProcessStat is a raw process sample.
type ProcessStat struct {
	PID        int32
	Name       string
	CPUPercent float64
	MemPercent float64
}

// Source reads raw host metrics.
type Source interface {
	CPUPercent(ctx context.Context) (float64, error)
	CPUCount(ctx context.Context) (int, error)
	Memory(ctx context.Context) (MemoryStats, error)
	Processes(ctx context.Context) ([]ProcessStat, error)
}

// Monitor builds snapshots from a Source.
type Monitor struct {
	src      Source
	platform string
	logger   *slog.Logger
}

// New creates a monitor backed by gopsutil.
func New(logger *slog.Logger) *Monitor {
	return NewWithSource(gopsutilSource{sample: cpuSampleTime}, platformName(runtime.GOOS), logger)
}

func NewWithSource(src Source, platform string, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{src: src, platform: platform, logger: logger}
}

// Snapshot samples the host. Individual failures are logged and leave the
// corresponding fields at zero.
func (m *Monitor) Snapshot(ctx context.Context) Info {
	info := Info{Platform: m.platform, Processes: []Process{}}

	if pct, err := m.src.CPUPercent(ctx); err != nil {
		m.logger.Warn("read cpu percent", "error", err)
	} else {
		info.CPULoad = round(pct, 1)
	}
	if n, err := m.src.CPUCount(ctx); err != nil {
		m.logger.Warn("read cpu count", "error", err)
	} else {
		info.CPUCount = n
	}
	if mem, err := m.src.Memory(ctx); err != nil {
		m.logger.Warn("read memory", "error", err)
	} else {
		info.RAMUsage = round(mem.UsedPercent, 1)
		info.MemoryTotalGB = round(float64(mem.Total)/bytesPerGB, 2)
		info.MemoryUsedGB = round(float64(mem.Used)/bytesPerGB, 2)
	}
	if procs, err := m.src.Processes(ctx); err != nil {
		m.logger.Warn("read processes", "error", err)
	} else {
		info.Processes = TopProcesses(procs, topProcesses)
	}
	return info
}

// TopProcesses returns the limit busiest processes by CPU, formatted.
func TopProcesses(procs []ProcessStat, limit int) []Process {
	sorted := make([]ProcessStat, len(procs))
	copy(sorted, procs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CPUPercent > sorted[j].CPUPercent })
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	out := make([]Process, 0, len(sorted))
	for _, p := range sorted {
		name := p.Name
		if name == "" {
			name = "Unknown"
		}
		if r := []rune(name); len(r) > maxNameRunes {
			name = string(r[:maxNameRunes])
		}
		out = append(out, Process{
			Name: name,
			CPU:  fmt.Sprintf("%.1f%%", p.CPUPercent),
			Mem:  fmt.Sprintf("%.1f%%", p.MemPercent),
		})
	}
	return out
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func platformName(goos string) string {
	switch goos {
	case "darwin":
		return "Darwin"
	case "":
		return "Unknown"
	default:
		return strings.ToUpper(goos[:1]) + goos[1:]
	}
}
