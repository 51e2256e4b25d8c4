package provider

import (
	"context"

	"codeberg.org/mutker/sysmon/internal/errors"
	"codeberg.org/mutker/sysmon/internal/telemetry"
)

// Disk reports usage per mounted partition and aggregate IO counters.
type Disk struct {
	sys System
}

func NewDisk(sys System) *Disk {
	return &Disk{sys: sys}
}

func (*Disk) Name() string { return "disk" }

// Collect skips partitions whose usage cannot be read. IO counters are
// optional within the sample.
func (d *Disk) Collect(ctx context.Context) (telemetry.Sample, error) {
	parts, err := d.sys.Partitions(ctx, false)
	if err != nil {
		return nil, queryFailed("partitions", err)
	}

	sample := &telemetry.DiskSample{Partitions: telemetry.NewOrdered[telemetry.DiskUsage]()}
	for _, p := range parts {
		usage, err := d.sys.DiskUsage(ctx, p.Mountpoint)
		if err != nil {
			continue
		}
		sample.Partitions.Set(p.Mountpoint, telemetry.DiskUsage{
			Device:          p.Device,
			TotalSpace:      float64(usage.Total) / bytesPerGB,
			UsedSpace:       float64(usage.Used) / bytesPerGB,
			FreeSpace:       float64(usage.Free) / bytesPerGB,
			UsagePercentage: usage.UsedPercent,
		})
	}

	if counters, err := d.sys.DiskIOCounters(ctx); err == nil && len(counters) > 0 {
		io := &telemetry.DiskIO{}
		for _, c := range counters {
			io.ReadCount += c.ReadCount
			io.WriteCount += c.WriteCount
			io.ReadBytes += c.ReadBytes
			io.WriteBytes += c.WriteBytes
			io.ReadTime += c.ReadTime
			io.WriteTime += c.WriteTime
		}
		sample.IO = io
	}

	if sample.Partitions.Len() == 0 && sample.IO == nil {
		return nil, errors.New().WithMessage(ErrNoData, "no readable partitions")
	}

	return sample, nil
}
