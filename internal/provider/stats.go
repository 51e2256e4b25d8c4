package provider

import (
	"context"
	"time"

	"codeberg.org/mutker/sysmon/internal/telemetry"
)

// Process lists running processes.
type Process struct {
	sys System
}

func NewProcess(sys System) *Process {
	return &Process{sys: sys}
}

func (*Process) Name() string { return "process" }

func (p *Process) Collect(ctx context.Context) (telemetry.Sample, error) {
	procs, err := p.sys.Processes(ctx)
	if err != nil {
		return nil, queryFailed("processes", err)
	}

	return &telemetry.ProcessSample{Processes: procs}, nil
}

// Load reports the 1, 5 and 15 minute load averages.
type Load struct {
	sys System
}

func NewLoad(sys System) *Load {
	return &Load{sys: sys}
}

func (*Load) Name() string { return "load" }

func (l *Load) Collect(ctx context.Context) (telemetry.Sample, error) {
	avg, err := l.sys.LoadAvg(ctx)
	if err != nil {
		return nil, queryFailed("load average", err)
	}

	return &telemetry.LoadSample{Load1: avg.Load1, Load5: avg.Load5, Load15: avg.Load15}, nil
}

// Uptime reports time since boot.
type Uptime struct {
	sys System
}

func NewUptime(sys System) *Uptime {
	return &Uptime{sys: sys}
}

func (*Uptime) Name() string { return "uptime" }

func (u *Uptime) Collect(ctx context.Context) (telemetry.Sample, error) {
	secs, err := u.sys.Uptime(ctx)
	if err != nil {
		return nil, queryFailed("uptime", err)
	}

	return &telemetry.UptimeSample{Uptime: time.Duration(secs) * time.Second}, nil
}
