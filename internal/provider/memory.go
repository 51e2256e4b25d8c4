package provider

import (
	"context"

	"codeberg.org/mutker/sysmon/internal/telemetry"
)

// Memory reports RAM and swap in GB.
type Memory struct {
	sys System
}

func NewMemory(sys System) *Memory {
	return &Memory{sys: sys}
}

func (*Memory) Name() string { return "memory" }

func (m *Memory) Collect(ctx context.Context) (telemetry.Sample, error) {
	vm, err := m.sys.VirtualMemory(ctx)
	if err != nil {
		return nil, queryFailed("virtual memory", err)
	}

	swap, err := m.sys.SwapMemory(ctx)
	if err != nil {
		return nil, queryFailed("swap memory", err)
	}

	return &telemetry.MemorySample{
		TotalMemory:     float64(vm.Total) / bytesPerGB,
		AvailableMemory: float64(vm.Available) / bytesPerGB,
		UsedMemory:      float64(vm.Used) / bytesPerGB,
		MemoryPercent:   vm.UsedPercent,
		SwapTotal:       float64(swap.Total) / bytesPerGB,
		SwapUsed:        float64(swap.Used) / bytesPerGB,
		SwapFree:        float64(swap.Free) / bytesPerGB,
		SwapPercent:     swap.UsedPercent,
	}, nil
}
