package sysmon

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	cpu      float64
	cpuErr   error
	count    int
	mem      MemoryStats
	memErr   error
	procs    []ProcessStat
	procsErr error
}

func (f fakeSource) CPUPercent(context.Context) (float64, error)      { return f.cpu, f.cpuErr }
func (f fakeSource) CPUCount(context.Context) (int, error)            { return f.count, nil }
func (f fakeSource) Memory(context.Context) (MemoryStats, error)      { return f.mem, f.memErr }
func (f fakeSource) Processes(context.Context) ([]ProcessStat, error) { return f.procs, f.procsErr }

func TestSnapshot(t *testing.T) {
	src := fakeSource{
		cpu:   37.26,
		count: 8,
		mem:   MemoryStats{Total: 16 << 30, Used: 6 << 29, UsedPercent: 18.75},
		procs: []ProcessStat{
			{Name: "idle", CPUPercent: 0.1, MemPercent: 0.2},
			{Name: "a-very-long-process-name-indeed", CPUPercent: 55.55, MemPercent: 3.14},
			{Name: "", CPUPercent: 12, MemPercent: 1},
			{Name: "chrome", CPUPercent: 20, MemPercent: 10},
			{Name: "code", CPUPercent: 5, MemPercent: 4},
		},
	}
	info := NewWithSource(src, "Linux", nil).Snapshot(context.Background())

	require.Equal(t, 37.3, info.CPULoad)
	require.Equal(t, 18.8, info.RAMUsage)
	require.Equal(t, 8, info.CPUCount)
	require.Equal(t, 16.0, info.MemoryTotalGB)
	require.Equal(t, 3.0, info.MemoryUsedGB)
	require.Equal(t, "Linux", info.Platform)
	require.Equal(t, []Process{
		{Name: "a-very-long-process-", CPU: "55.5%", Mem: "3.1%"},
		{Name: "chrome", CPU: "20.0%", Mem: "10.0%"},
		{Name: "Unknown", CPU: "12.0%", Mem: "1.0%"},
		{Name: "code", CPU: "5.0%", Mem: "4.0%"},
	}, info.Processes)
}

func TestSnapshotDegrades(t *testing.T) {
	src := fakeSource{
		cpuErr:   errors.New("no cpu"),
		memErr:   errors.New("no mem"),
		procsErr: errors.New("denied"),
	}
	info := NewWithSource(src, "Windows", nil).Snapshot(context.Background())

	require.Zero(t, info.CPULoad)
	require.Zero(t, info.RAMUsage)
	require.Zero(t, info.MemoryTotalGB)
	require.NotNil(t, info.Processes)
	require.Empty(t, info.Processes)
}

func TestPlatformName(t *testing.T) {
	require.Equal(t, "Windows", platformName("windows"))
	require.Equal(t, "Darwin", platformName("darwin"))
	require.Equal(t, "Linux", platformName("linux"))
}
