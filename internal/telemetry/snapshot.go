package telemetry

import (
	"fmt"
	"time"
)

// NewSnapshot returns an empty snapshot stamped at ts.
func NewSnapshot(host *HostIdentity, ts time.Time) *Snapshot {
	return &Snapshot{Timestamp: ts, Host: host}
}

// Set stores s in the matching sub-sample slot. A nil sample leaves the
// slot absent.
func (s *Snapshot) Set(sample Sample) error {
	switch v := sample.(type) {
	case nil:
		return nil
	case *CPUSample:
		s.CPU = v
	case *MemorySample:
		s.Memory = v
	case *TemperatureSample:
		s.Temperature = v
	case *GPUSample:
		s.GPU = v
	case *DiskSample:
		s.Disk = v
	case *NetworkSample:
		s.Network = v
	case *ProcessSample:
		s.Process = v
	case *LoadSample:
		s.Load = v
	case *UptimeSample:
		s.Uptime = v
	default:
		return fmt.Errorf("unknown sample type %T", sample)
	}

	return nil
}

// Present lists the families that carry data, in rendering order.
func (s *Snapshot) Present() []Family {
	var out []Family
	if s.CPU != nil {
		out = append(out, FamilyCPU)
	}
	if s.Temperature != nil {
		out = append(out, FamilyTemperature)
	}
	if s.GPU != nil {
		out = append(out, FamilyGPU)
	}
	if s.Memory != nil {
		out = append(out, FamilyMemory)
	}
	if s.Disk != nil {
		out = append(out, FamilyDisk)
	}
	if s.Network != nil {
		out = append(out, FamilyNetwork)
	}
	if s.Load != nil {
		out = append(out, FamilyLoad)
	}
	if s.Uptime != nil {
		out = append(out, FamilyUptime)
	}
	if s.Process != nil {
		out = append(out, FamilyProcess)
	}

	return out
}

// Field is one ordered key/value pair of a host identity.
type Field struct {
	Key   string
	Value string
}

// Fields returns the identity as ordered pairs. The first two addresses of
// each interface are reported as <iface>_ipv4 and <iface>_ipv6.
func (h *HostIdentity) Fields() []Field {
	fields := []Field{
		{"nodename", h.Nodename},
		{"sysname", h.OSFamily},
		{"kernel_version", h.KernelVersion},
		{"arch", h.Arch},
	}

	h.Interfaces.Each(func(name string, addrs []string) {
		if len(addrs) > 0 {
			fields = append(fields, Field{name + "_ipv4", addrs[0]})
		}
		if len(addrs) > 1 {
			fields = append(fields, Field{name + "_ipv6", addrs[1]})
		}
	})

	return fields
}

// String renders the uptime the way the console shows it.
func (u *UptimeSample) String() string {
	total := int64(u.Uptime / time.Second)
	days := total / 86400
	hours := (total / 3600) % 24
	minutes := (total / 60) % 60
	seconds := total % 60

	return fmt.Sprintf("%d days, %d hours, %d minutes, %d seconds", days, hours, minutes, seconds)
}
