package telemetry

import "strings"

// Metric is one flattened numeric value keyed "<family>/<subkey>".
type Metric struct {
	Key   string
	Value float64
}

// Flatten turns every present sub-sample into namespaced numeric metrics.
// Keys of runtime-named entries (chips, devices, mountpoints) join the
// entry name and the field with a dot: "gpu_info/gpu0_A100.temperature".
func Flatten(s *Snapshot) []Metric {
	var out []Metric
	add := func(f Family, key string, v float64) {
		out = append(out, Metric{Key: string(f) + "/" + key, Value: v})
	}

	if c := s.CPU; c != nil {
		add(FamilyCPU, "total_cores", float64(c.TotalCores))
		add(FamilyCPU, "processor_speed", c.ProcessorSpeed)
		add(FamilyCPU, "total_cpu_usage", c.TotalCPUUsage)
	}

	if m := s.Memory; m != nil {
		add(FamilyMemory, "total_memory", m.TotalMemory)
		add(FamilyMemory, "available_memory", m.AvailableMemory)
		add(FamilyMemory, "used_memory", m.UsedMemory)
		add(FamilyMemory, "memory_percent", m.MemoryPercent)
		add(FamilyMemory, "swap_total", m.SwapTotal)
		add(FamilyMemory, "swap_used", m.SwapUsed)
		add(FamilyMemory, "swap_free", m.SwapFree)
		add(FamilyMemory, "swap_percent", m.SwapPercent)
	}

	if t := s.Temperature; t != nil {
		t.Chips.Each(func(chip string, readings []SensorReading) {
			for _, r := range readings {
				add(FamilyTemperature, chip+"."+sanitize(r.Label), r.Current)
			}
		})
	}

	if g := s.GPU; g != nil {
		g.Devices.Each(func(id string, d GPUDevice) {
			if d.Err != nil {
				return
			}
			add(FamilyGPU, id+".temperature", d.Temperature)
			add(FamilyGPU, id+".gpu_utilization", float64(d.GPUUtilization))
			if d.FanSpeed != nil {
				add(FamilyGPU, id+".fan_speed", float64(*d.FanSpeed))
			}
			if mem := d.Memory; mem != nil {
				add(FamilyGPU, id+".memory_total", float64(mem.Total))
				add(FamilyGPU, id+".memory_used", float64(mem.Used))
				add(FamilyGPU, id+".memory_free", float64(mem.Free))
			}
			add(FamilyGPU, id+".processes", float64(len(d.Processes)))
		})
	}

	if d := s.Disk; d != nil {
		d.Partitions.Each(func(mountpoint string, u DiskUsage) {
			mount := MountKey(mountpoint)
			add(FamilyDisk, mount+".total_space", u.TotalSpace)
			add(FamilyDisk, mount+".used_space", u.UsedSpace)
			add(FamilyDisk, mount+".free_space", u.FreeSpace)
			add(FamilyDisk, mount+".usage_percentage", u.UsagePercentage)
		})
		if io := d.IO; io != nil {
			add(FamilyDisk, "read_count", float64(io.ReadCount))
			add(FamilyDisk, "write_count", float64(io.WriteCount))
			add(FamilyDisk, "read_bytes", float64(io.ReadBytes))
			add(FamilyDisk, "write_bytes", float64(io.WriteBytes))
			add(FamilyDisk, "read_time", float64(io.ReadTime))
			add(FamilyDisk, "write_time", float64(io.WriteTime))
		}
	}

	if n := s.Network; n != nil {
		add(FamilyNetwork, "bytes_sent", float64(n.BytesSent))
		add(FamilyNetwork, "bytes_recv", float64(n.BytesRecv))
		add(FamilyNetwork, "packets_sent", float64(n.PacketsSent))
		add(FamilyNetwork, "packets_recv", float64(n.PacketsRecv))
		add(FamilyNetwork, "errin", float64(n.Errin))
		add(FamilyNetwork, "errout", float64(n.Errout))
		add(FamilyNetwork, "dropin", float64(n.Dropin))
		add(FamilyNetwork, "dropout", float64(n.Dropout))
	}

	if p := s.Process; p != nil {
		add(FamilyProcess, "count", float64(len(p.Processes)))
	}

	if l := s.Load; l != nil {
		add(FamilyLoad, "load_average_1", l.Load1)
		add(FamilyLoad, "load_average_5", l.Load5)
		add(FamilyLoad, "load_average_15", l.Load15)
	}

	if u := s.Uptime; u != nil {
		add(FamilyUptime, "uptime_seconds", u.Uptime.Seconds())
	}

	return out
}

func sanitize(label string) string {
	return strings.ReplaceAll(strings.TrimSpace(label), " ", "_")
}

// MountKey turns a mountpoint into a key segment: "/" is "root" and
// "/var/lib" is "var_lib".
func MountKey(mountpoint string) string {
	trimmed := strings.Trim(mountpoint, "/")
	if trimmed == "" {
		return "root"
	}
	return sanitize(strings.ReplaceAll(trimmed, "/", "_"))
}
