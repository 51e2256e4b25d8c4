package provider

import (
	"context"
	"time"

	"codeberg.org/mutker/sysmon/internal/errors"
	"codeberg.org/mutker/sysmon/internal/telemetry"
)

// CPU reports core count, clock speed and utilisation. Collect blocks for
// the measurement window, which is independent of the reporting interval
// and never longer than it.
type CPU struct {
	sys    System
	window time.Duration
}

func NewCPU(sys System, window time.Duration) *CPU {
	return &CPU{sys: sys, window: window}
}

func (*CPU) Name() string { return "cpu" }

// Window returns how long Collect blocks.
func (c *CPU) Window() time.Duration { return c.window }

func (c *CPU) Collect(ctx context.Context) (telemetry.Sample, error) {
	cores, err := c.sys.CPUCounts(ctx, true)
	if err != nil {
		return nil, queryFailed("cpu count", err)
	}

	info, err := c.sys.CPUInfo(ctx)
	if err != nil {
		return nil, queryFailed("cpu info", err)
	}
	if len(info) == 0 {
		return nil, errors.New().WithMessage(ErrNoData, "no cpu info reported")
	}

	percent, err := c.sys.CPUPercent(ctx, c.window, false)
	if err != nil {
		return nil, queryFailed("cpu percent", err)
	}
	if len(percent) == 0 {
		return nil, errors.New().WithMessage(ErrNoData, "no cpu usage reported")
	}

	return &telemetry.CPUSample{
		TotalCores:     cores,
		ProcessorSpeed: info[0].Mhz,
		TotalCPUUsage:  percent[0],
	}, nil
}
