package gpu

import (
	"fmt"
	"strings"
	"sync"

	"codeberg.org/mutker/sysmon/internal/errors"
	"codeberg.org/mutker/sysmon/internal/logger"
	"codeberg.org/mutker/sysmon/internal/telemetry"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

// Sampler enumerates every NVML device and reads it once per call.
type Sampler struct {
	lib    Library
	logger logger.Logger

	mu          sync.Mutex
	initialized bool
	initErr     error
}

// NewSampler returns a Sampler over lib. NVML is initialised on first use.
func NewSampler(lib Library, log logger.Logger) *Sampler {
	return &Sampler{lib: lib, logger: log}
}

// Initialize loads NVML. A failure is remembered and returned on every
// later call so an absent driver is not retried each cycle.
func (s *Sampler) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.initLocked()
}

func (s *Sampler) initLocked() error {
	if s.initialized || s.initErr != nil {
		return s.initErr
	}

	if ret := s.lib.Init(); !IsNVMLSuccess(ret) {
		s.initErr = errors.New().Wrap(ErrInitFailed, newNVMLError(ret))
		return s.initErr
	}

	s.initialized = true
	s.logger.Debug().Msg("NVML initialized")

	return nil
}

// Shutdown releases NVML if it was initialised.
func (s *Sampler) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return nil
	}

	if ret := s.lib.Shutdown(); !IsNVMLSuccess(ret) {
		return errors.New().Wrap(ErrShutdownFailed, newNVMLError(ret))
	}

	s.initialized = false

	return nil
}

// Sample reads every present device. Enumeration failures fail the whole
// sample; a failure on one device only marks that device's entry.
func (s *Sampler) Sample() (*telemetry.GPUSample, error) {
	errFactory := errors.New()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.initLocked(); err != nil {
		return nil, err
	}

	count, ret := s.lib.DeviceGetCount()
	if !IsNVMLSuccess(ret) {
		return nil, errFactory.Wrap(ErrDeviceCountFailed, newNVMLError(ret))
	}

	sample := &telemetry.GPUSample{Devices: telemetry.NewOrdered[telemetry.GPUDevice]()}

	for i := 0; i < count; i++ {
		device, ret := s.lib.DeviceGetHandleByIndex(i)
		if !IsNVMLSuccess(ret) {
			d := telemetry.GPUDevice{Index: i, Err: errFactory.Wrap(ErrDeviceNotFound, newNVMLError(ret))}
			sample.Devices.Set(DeviceID(i, ""), d)
			s.logger.Debug().Int("index", i).Msgf("Failed to get device handle: %s", nvml.ErrorString(ret))
			continue
		}

		d := s.readDevice(i, device)
		sample.Devices.Set(DeviceID(i, d.Name), d)
	}

	return sample, nil
}

func (s *Sampler) readDevice(index int, device Device) telemetry.GPUDevice {
	errFactory := errors.New()
	d := telemetry.GPUDevice{Index: index}

	name, ret := device.GetName()
	if !IsNVMLSuccess(ret) {
		d.Err = errFactory.Wrap(ErrDeviceInfoFailed, newNVMLError(ret))
		return d
	}
	d.Name = name

	temp, ret := device.GetTemperature(nvml.TEMPERATURE_GPU)
	if !IsNVMLSuccess(ret) {
		d.Err = errFactory.Wrap(ErrTemperatureReadFailed, newNVMLError(ret))
		return d
	}
	d.Temperature = float64(temp)

	util, ret := device.GetUtilizationRates()
	if !IsNVMLSuccess(ret) {
		d.Err = errFactory.Wrap(ErrUtilizationFailed, newNVMLError(ret))
		return d
	}
	d.GPUUtilization = int(util.Gpu)

	if speed, ret := device.GetFanSpeed(); IsNVMLSuccess(ret) {
		fan := int(speed)
		d.FanSpeed = &fan
	} else if !isNotSupported(ret) {
		s.logger.Debug().Int("index", index).Msgf("Failed to get fan speed: %s", nvml.ErrorString(ret))
	}

	if mem, ret := device.GetMemoryInfo(); IsNVMLSuccess(ret) {
		d.Memory = &telemetry.GPUMemory{Total: mem.Total, Used: mem.Used, Free: mem.Free}
	} else {
		s.logger.Debug().Int("index", index).Msgf("Failed to get memory info: %s", nvml.ErrorString(ret))
	}

	if procs, ret := device.GetComputeRunningProcesses(); IsNVMLSuccess(ret) {
		d.Processes = make([]telemetry.GPUProcess, 0, len(procs))
		for _, p := range procs {
			d.Processes = append(d.Processes, telemetry.GPUProcess{PID: p.Pid, UsedMemory: p.UsedGpuMemory})
		}
	}

	return d
}

// DeviceID names a device "gpu<index>_<name>" with spaces replaced by
// underscores, or "gpu<index>" when the name is unknown.
func DeviceID(index int, name string) string {
	if name == "" {
		return fmt.Sprintf("gpu%d", index)
	}
	return fmt.Sprintf("gpu%d_%s", index, strings.ReplaceAll(name, " ", "_"))
}
