package telemetry

import (
	"time"
)

// Family names a metric family. The names double as the namespace used
// for flattened remote keys, e.g. "cpu_info/total_cores".
type Family string

const (
	FamilyCPU         Family = "cpu_info"
	FamilyMemory      Family = "memory_info"
	FamilyTemperature Family = "temperature_info"
	FamilyGPU         Family = "gpu_info"
	FamilyDisk        Family = "disk_info"
	FamilyNetwork     Family = "network_info"
	FamilyProcess     Family = "process_info"
	FamilyLoad        Family = "load_average"
	FamilyUptime      Family = "uptime_info"
)

// Sample is implemented by every sub-sample type.
type Sample interface {
	Family() Family
}

// HostIdentity is captured once at startup and shared read-only by every
// snapshot of the run.
type HostIdentity struct {
	Nodename      string
	OSFamily      string
	KernelVersion string
	Arch          string
	// Interfaces maps interface name to its addresses in reported order.
	Interfaces *Ordered[[]string]
}

// Snapshot is one point-in-time aggregate. A nil sub-sample means the
// provider failed or is not enabled; it is never replaced by zero values.
type Snapshot struct {
	Timestamp time.Time
	Host      *HostIdentity

	CPU         *CPUSample
	Memory      *MemorySample
	Temperature *TemperatureSample
	GPU         *GPUSample
	Disk        *DiskSample
	Network     *NetworkSample
	Process     *ProcessSample
	Load        *LoadSample
	Uptime      *UptimeSample
}

type CPUSample struct {
	TotalCores     int
	ProcessorSpeed float64 // MHz
	TotalCPUUsage  float64 // percent over the measurement window
}

type MemorySample struct {
	TotalMemory     float64 // GB
	AvailableMemory float64
	UsedMemory      float64
	MemoryPercent   float64
	SwapTotal       float64
	SwapUsed        float64
	SwapFree        float64
	SwapPercent     float64
}

// SensorReading is one labelled reading of a sensor chip.
type SensorReading struct {
	Label   string
	Current float64
}

// TemperatureSample maps sensor chip name to its readings.
type TemperatureSample struct {
	Chips *Ordered[[]SensorReading]
}

// GPUProcess is a compute process running on a device.
type GPUProcess struct {
	PID        uint32
	UsedMemory uint64
}

// GPUMemory is device memory in bytes.
type GPUMemory struct {
	Total uint64
	Used  uint64
	Free  uint64
}

// GPUDevice holds the readings of one accelerator. Err is set when the
// device could be enumerated but its core readings could not be taken.
// FanSpeed and Memory are nil when the device does not expose them.
type GPUDevice struct {
	Index          int
	Name           string
	Temperature    float64 // °C
	GPUUtilization int     // percent
	FanSpeed       *int    // percent
	Memory         *GPUMemory
	Processes      []GPUProcess
	Err            error
}

// GPUSample maps device id ("gpu0_Name") to device readings.
type GPUSample struct {
	Devices *Ordered[GPUDevice]
}

type DiskUsage struct {
	Device          string
	TotalSpace      float64 // GB
	UsedSpace       float64
	FreeSpace       float64
	UsagePercentage float64
}

type DiskIO struct {
	ReadCount  uint64
	WriteCount uint64
	ReadBytes  uint64
	WriteBytes uint64
	ReadTime   uint64 // ms
	WriteTime  uint64
}

// DiskSample maps mountpoint to usage. IO is nil when counters are unavailable.
type DiskSample struct {
	Partitions *Ordered[DiskUsage]
	IO         *DiskIO
}

type NetworkSample struct {
	BytesSent   uint64
	BytesRecv   uint64
	PacketsSent uint64
	PacketsRecv uint64
	Errin       uint64
	Errout      uint64
	Dropin      uint64
	Dropout     uint64
}

type ProcessInfo struct {
	PID           int32
	Name          string
	MemoryPercent float64
	CPUPercent    float64
}

type ProcessSample struct {
	Processes []ProcessInfo
}

type LoadSample struct {
	Load1  float64
	Load5  float64
	Load15 float64
}

type UptimeSample struct {
	Uptime time.Duration
}

func (*CPUSample) Family() Family         { return FamilyCPU }
func (*MemorySample) Family() Family      { return FamilyMemory }
func (*TemperatureSample) Family() Family { return FamilyTemperature }
func (*GPUSample) Family() Family         { return FamilyGPU }
func (*DiskSample) Family() Family        { return FamilyDisk }
func (*NetworkSample) Family() Family     { return FamilyNetwork }
func (*ProcessSample) Family() Family     { return FamilyProcess }
func (*LoadSample) Family() Family        { return FamilyLoad }
func (*UptimeSample) Family() Family      { return FamilyUptime }
