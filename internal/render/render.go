// Package render formats snapshots as the human-readable text shared by the
// console and file sinks.
package render

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"codeberg.org/mutker/sysmon/internal/telemetry"
	"github.com/dustin/go-humanize"
)

const (
	// Separator terminates a host info block and every file record.
	Separator = "---------------"

	// TimeLayout is used for record timestamp lines.
	TimeLayout = "2006-01-02 15:04:05.000000"

	topProcesses = 5
)

// Options selects the optional parts of a record.
type Options struct {
	// Timestamp prefixes the record with its capture time.
	Timestamp bool
	// Separator terminates the record with a separator line.
	Separator bool
}

// Float formats v the way the console has always shown floats: shortest
// representation, always with a decimal point.
func Float(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".NI") {
		s += ".0"
	}
	return s
}

// HostInfo renders the one-off identity block printed at startup.
func HostInfo(h *telemetry.HostIdentity) string {
	var b strings.Builder
	for _, f := range h.Fields() {
		fmt.Fprintf(&b, "sys_info['%s']: %s\n", f.Key, f.Value)
	}
	b.WriteString(Separator + "\n")
	return b.String()
}

// Snapshot renders every present family of s. Absent families produce no
// output.
func Snapshot(s *telemetry.Snapshot, opts Options) string {
	var b strings.Builder

	if opts.Timestamp {
		b.WriteString(s.Timestamp.Format(TimeLayout) + "\n")
	}

	for _, f := range s.Present() {
		switch f {
		case telemetry.FamilyCPU:
			cpu(&b, s.CPU)
		case telemetry.FamilyTemperature:
			temperature(&b, s.Temperature)
		case telemetry.FamilyGPU:
			gpu(&b, s.GPU)
		case telemetry.FamilyMemory:
			memory(&b, s.Memory)
		case telemetry.FamilyDisk:
			disk(&b, s.Disk)
		case telemetry.FamilyNetwork:
			network(&b, s.Network)
		case telemetry.FamilyLoad:
			load(&b, s.Load)
		case telemetry.FamilyUptime:
			fmt.Fprintf(&b, "UPTIME  -  %s\n", s.Uptime)
		case telemetry.FamilyProcess:
			processes(&b, s.Process)
		}
	}

	if opts.Separator {
		b.WriteString(Separator + "\n")
	}

	return b.String()
}

// line writes "HEADER  -  k: v;  k: v;" terminated by a newline.
func line(b *strings.Builder, header string, fields ...string) {
	b.WriteString(header + "  -")
	for i := 0; i+1 < len(fields); i += 2 {
		fmt.Fprintf(b, "  %s: %s;", fields[i], fields[i+1])
	}
	b.WriteString("\n")
}

func cpu(b *strings.Builder, c *telemetry.CPUSample) {
	line(b, "CPU",
		"total_cores", strconv.Itoa(c.TotalCores),
		"processor_speed", Float(c.ProcessorSpeed),
		"total_cpu_usage", Float(c.TotalCPUUsage),
	)
}

func temperature(b *strings.Builder, t *telemetry.TemperatureSample) {
	b.WriteString("TEMPS  -\n")
	t.Chips.Each(func(chip string, readings []telemetry.SensorReading) {
		for _, r := range readings {
			fmt.Fprintf(b, "   %s.%s: %s;", chip, r.Label, Float(r.Current))
		}
		b.WriteString("\n")
	})
}

func gpu(b *strings.Builder, g *telemetry.GPUSample) {
	var memLines []string

	g.Devices.Each(func(id string, d telemetry.GPUDevice) {
		if d.Err != nil {
			fmt.Fprintf(b, "%s: (unavailable)    ", id)
			return
		}
		fmt.Fprintf(b, "%s: (temp: %.1f°C, util: %d%%)    ", id, d.Temperature, d.GPUUtilization)

		if m := d.Memory; m != nil {
			memLines = append(memLines, fmt.Sprintf("   %s.memory: used %s / total %s (free %s);",
				id, humanize.IBytes(m.Used), humanize.IBytes(m.Total), humanize.IBytes(m.Free)))
		}
	})
	b.WriteString("\n")

	for _, l := range memLines {
		b.WriteString(l + "\n")
	}
}

func memory(b *strings.Builder, m *telemetry.MemorySample) {
	line(b, "MEMORY",
		"total_memory", Float(m.TotalMemory),
		"available_memory", Float(m.AvailableMemory),
		"used_memory", Float(m.UsedMemory),
		"memory_percent", Float(m.MemoryPercent),
		"swap_total", Float(m.SwapTotal),
		"swap_used", Float(m.SwapUsed),
		"swap_free", Float(m.SwapFree),
		"swap_percent", Float(m.SwapPercent),
	)
}

func disk(b *strings.Builder, d *telemetry.DiskSample) {
	b.WriteString("DISK  -\n")
	d.Partitions.Each(func(mount string, u telemetry.DiskUsage) {
		fmt.Fprintf(b, "   %s: total_space: %s;  used_space: %s;  free_space: %s;  usage_percentage: %s;\n",
			mount, Float(u.TotalSpace), Float(u.UsedSpace), Float(u.FreeSpace), Float(u.UsagePercentage))
	})
	if io := d.IO; io != nil {
		fmt.Fprintf(b, "   io: read_count: %d;  write_count: %d;  read_bytes: %d;  write_bytes: %d;  read_time: %d;  write_time: %d;\n",
			io.ReadCount, io.WriteCount, io.ReadBytes, io.WriteBytes, io.ReadTime, io.WriteTime)
	}
}

func network(b *strings.Builder, n *telemetry.NetworkSample) {
	u := func(v uint64) string { return strconv.FormatUint(v, 10) }
	line(b, "NETWORK",
		"bytes_sent", u(n.BytesSent),
		"bytes_recv", u(n.BytesRecv),
		"packets_sent", u(n.PacketsSent),
		"packets_recv", u(n.PacketsRecv),
		"errin", u(n.Errin),
		"errout", u(n.Errout),
		"dropin", u(n.Dropin),
		"dropout", u(n.Dropout),
	)
}

func load(b *strings.Builder, l *telemetry.LoadSample) {
	line(b, "LOAD",
		"load_average_1", Float(l.Load1),
		"load_average_5", Float(l.Load5),
		"load_average_15", Float(l.Load15),
	)
}

// processes lists the count and the busiest few by CPU.
func processes(b *strings.Builder, p *telemetry.ProcessSample) {
	line(b, "PROCESSES", "count", strconv.Itoa(len(p.Processes)))

	top := append([]telemetry.ProcessInfo(nil), p.Processes...)
	sort.SliceStable(top, func(i, j int) bool { return top[i].CPUPercent > top[j].CPUPercent })
	if len(top) > topProcesses {
		top = top[:topProcesses]
	}

	for _, proc := range top {
		fmt.Fprintf(b, "   %d %s: cpu_percent: %s;  memory_percent: %s;\n",
			proc.PID, proc.Name, Float(proc.CPUPercent), Float(proc.MemoryPercent))
	}
}
