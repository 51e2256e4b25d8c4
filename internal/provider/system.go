package provider

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"codeberg.org/mutker/sysmon/internal/telemetry"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

// System is the set of OS queries the providers depend on.
type System interface {
	CPUCounts(ctx context.Context, logical bool) (int, error)
	CPUInfo(ctx context.Context) ([]cpu.InfoStat, error)
	CPUPercent(ctx context.Context, interval time.Duration, percpu bool) ([]float64, error)
	VirtualMemory(ctx context.Context) (*mem.VirtualMemoryStat, error)
	SwapMemory(ctx context.Context) (*mem.SwapMemoryStat, error)
	SensorsTemperatures(ctx context.Context) ([]host.TemperatureStat, error)
	SensorChips(ctx context.Context) ([]string, error)
	Partitions(ctx context.Context, all bool) ([]disk.PartitionStat, error)
	DiskUsage(ctx context.Context, path string) (*disk.UsageStat, error)
	DiskIOCounters(ctx context.Context) (map[string]disk.IOCountersStat, error)
	NetIOCounters(ctx context.Context, pernic bool) ([]net.IOCountersStat, error)
	Processes(ctx context.Context) ([]telemetry.ProcessInfo, error)
	LoadAvg(ctx context.Context) (*load.AvgStat, error)
	Uptime(ctx context.Context) (uint64, error)
}

// HwmonDir is where the kernel lists hardware monitoring chips.
var HwmonDir = "/sys/class/hwmon"

type gopsutilSystem struct{}

// NewSystem returns the System backed by gopsutil.
func NewSystem() System {
	return gopsutilSystem{}
}

func (gopsutilSystem) CPUCounts(ctx context.Context, logical bool) (int, error) {
	return cpu.CountsWithContext(ctx, logical)
}

func (gopsutilSystem) CPUInfo(ctx context.Context) ([]cpu.InfoStat, error) {
	return cpu.InfoWithContext(ctx)
}

func (gopsutilSystem) CPUPercent(ctx context.Context, interval time.Duration, percpu bool) ([]float64, error) {
	return cpu.PercentWithContext(ctx, interval, percpu)
}

func (gopsutilSystem) VirtualMemory(ctx context.Context) (*mem.VirtualMemoryStat, error) {
	return mem.VirtualMemoryWithContext(ctx)
}

func (gopsutilSystem) SwapMemory(ctx context.Context) (*mem.SwapMemoryStat, error) {
	return mem.SwapMemoryWithContext(ctx)
}

func (gopsutilSystem) SensorsTemperatures(ctx context.Context) ([]host.TemperatureStat, error) {
	return host.SensorsTemperaturesWithContext(ctx)
}

// SensorChips returns the hwmon chip names, the same names gopsutil uses
// as the prefix of each TemperatureStat.SensorKey.
func (gopsutilSystem) SensorChips(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(HwmonDir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !strings.HasPrefix(entry.Name(), "hwmon") {
			continue
		}
		dir := filepath.Join(HwmonDir, entry.Name())
		raw, err := os.ReadFile(filepath.Join(dir, "name"))
		if err != nil {
			raw, err = os.ReadFile(filepath.Join(dir, "device", "name"))
		}
		if err != nil {
			continue
		}
		if name := strings.ToLower(strings.TrimSpace(string(raw))); name != "" {
			names = append(names, name)
		}
	}

	return names, nil
}

func (gopsutilSystem) Partitions(ctx context.Context, all bool) ([]disk.PartitionStat, error) {
	return disk.PartitionsWithContext(ctx, all)
}

func (gopsutilSystem) DiskUsage(ctx context.Context, path string) (*disk.UsageStat, error) {
	return disk.UsageWithContext(ctx, path)
}

func (gopsutilSystem) DiskIOCounters(ctx context.Context) (map[string]disk.IOCountersStat, error) {
	return disk.IOCountersWithContext(ctx)
}

func (gopsutilSystem) NetIOCounters(ctx context.Context, pernic bool) ([]net.IOCountersStat, error) {
	return net.IOCountersWithContext(ctx, pernic)
}

// Processes skips processes that exit or deny access mid-scan.
func (gopsutilSystem) Processes(ctx context.Context) ([]telemetry.ProcessInfo, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]telemetry.ProcessInfo, 0, len(procs))
	for _, p := range procs {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		memPercent, err := p.MemoryPercentWithContext(ctx)
		if err != nil {
			continue
		}
		cpuPercent, err := p.CPUPercentWithContext(ctx)
		if err != nil {
			continue
		}

		out = append(out, telemetry.ProcessInfo{
			PID:           p.Pid,
			Name:          name,
			MemoryPercent: float64(memPercent),
			CPUPercent:    cpuPercent,
		})
	}

	return out, nil
}

func (gopsutilSystem) LoadAvg(ctx context.Context) (*load.AvgStat, error) {
	return load.AvgWithContext(ctx)
}

func (gopsutilSystem) Uptime(ctx context.Context) (uint64, error) {
	return host.UptimeWithContext(ctx)
}
