package gpu

import (
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

// nvmlLibrary is the Library backed by the NVIDIA driver.
type nvmlLibrary struct{}

// NewNVMLLibrary returns the driver-backed Library.
func NewNVMLLibrary() Library {
	return nvmlLibrary{}
}

func (nvmlLibrary) Init() nvml.Return {
	return nvml.Init()
}

func (nvmlLibrary) Shutdown() nvml.Return {
	return nvml.Shutdown()
}

func (nvmlLibrary) DeviceGetCount() (int, nvml.Return) {
	return nvml.DeviceGetCount()
}

func (nvmlLibrary) DeviceGetHandleByIndex(index int) (Device, nvml.Return) {
	device, ret := nvml.DeviceGetHandleByIndex(index)
	if ret != nvml.SUCCESS {
		return nil, ret
	}
	return device, ret
}
