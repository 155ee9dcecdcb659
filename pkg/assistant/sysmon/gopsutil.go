package sysmon

import (
	"context"
	"errors"
	"time"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
	"github.com/shirou/gopsutil/process"
)

type gopsutilSource struct {
	sample time.Duration
}

func (s gopsutilSource) CPUPercent(ctx context.Context) (float64, error) {
	pcts, err := cpu.PercentWithContext(ctx, s.sample, false)
	if err != nil {
		return 0, err
	}
	if len(pcts) == 0 {
		return 0, errors.New("no cpu sample")
	}
	return pcts[0], nil
}

func (gopsutilSource) CPUCount(ctx context.Context) (int, error) {
	return cpu.CountsWithContext(ctx, true)
}

func (gopsutilSource) Memory(ctx context.Context) (MemoryStats, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return MemoryStats{}, err
	}
	return MemoryStats{Total: vm.Total, Used: vm.Used, UsedPercent: vm.UsedPercent}, nil
}

// Processes skips processes that exit or deny access mid-scan.
func (gopsutilSource) Processes(ctx context.Context) ([]ProcessStat, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ProcessStat, 0, len(procs))
	for _, p := range procs {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		cpuPct, _ := p.CPUPercentWithContext(ctx)
		memPct, _ := p.MemoryPercentWithContext(ctx)
		out = append(out, ProcessStat{PID: p.Pid, Name: name, CPUPercent: cpuPct, MemPercent: float64(memPct)})
	}
	return out, nil
}
