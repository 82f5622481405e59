//go:build linux && cgo
// +build linux,cgo

package telemetry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

// NVMLProber reads NVIDIA GPUs through libnvidia-ml. A host without the
// library or without NVIDIA devices simply has no GPUs for this prober.
type NVMLProber struct {
	mutex       sync.Mutex
	initialized bool
	failed      bool
}

// NewNVMLProber returns a prober that loads NVML on first use.
func NewNVMLProber() *NVMLProber {
	return &NVMLProber{}
}

func nvidiaProbers() []GPUProber {
	return []GPUProber{NewNVMLProber()}
}

func nvmlError(query string, ret nvml.Return) error {
	return &QueryError{Query: query, Err: errors.New(nvml.ErrorString(ret))}
}

func (p *NVMLProber) ready() bool {
	if p.initialized {
		return true
	}
	if p.failed {
		return false
	}
	if ret := nvml.Init(); ret != nvml.SUCCESS {
		p.failed = true
		return false
	}
	p.initialized = true
	return true
}

func (p *NVMLProber) devices() ([]nvml.Device, error) {
	if !p.ready() {
		return nil, nil
	}
	count, ret := nvml.DeviceGetCount()
	if ret != nvml.SUCCESS {
		return nil, nvmlError("nvml device count", ret)
	}

	devices := make([]nvml.Device, 0, count)
	for index := 0; index < count; index++ {
		device, ret := nvml.DeviceGetHandleByIndex(index)
		if ret != nvml.SUCCESS {
			continue
		}
		devices = append(devices, device)
	}
	return devices, nil
}

func nvmlPCISlot(device nvml.Device) string {
	pci, ret := device.GetPciInfo()
	if ret != nvml.SUCCESS {
		return ""
	}
	return fmt.Sprintf("%04x:%02x:%02x.0", pci.Domain, pci.Bus, pci.Device)
}

func (p *NVMLProber) Enumerate() ([]GPU, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	devices, err := p.devices()
	if err != nil {
		return nil, err
	}

	var gpus []GPU
	for _, device := range devices {
		gpu := GPU{Vendor: "NVIDIA", Driver: "nvidia", PCISlot: nvmlPCISlot(device)}
		if name, ret := device.GetName(); ret == nvml.SUCCESS {
			gpu.Name = name
		}
		if uuid, ret := device.GetUUID(); ret == nvml.SUCCESS {
			gpu.UUID = uuid
		}
		if cores, ret := device.GetNumGpuCores(); ret == nvml.SUCCESS {
			gpu.Cores = cores
			gpu.Threads = cores
		}
		if memory, ret := device.GetMemoryInfo(); ret == nvml.SUCCESS {
			gpu.MemoryTotal = memory.Total
		}
		if pci, ret := device.GetPciInfo(); ret == nvml.SUCCESS {
			// upper 16 bits are the device ID, lower 16 the vendor
			gpu.PCIDeviceID = fmt.Sprintf("0x%04x", pci.PciDeviceId>>16)
		}
		gpus = append(gpus, gpu)
	}
	return gpus, nil
}

func (p *NVMLProber) Usage() ([]GPUUsage, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	devices, err := p.devices()
	if err != nil {
		return nil, err
	}

	var usages []GPUUsage
	for _, device := range devices {
		utilization, ret := device.GetUtilizationRates()
		if ret != nvml.SUCCESS {
			continue
		}
		usage := GPUUsage{PCISlot: nvmlPCISlot(device), Utilization: float32(utilization.Gpu)}
		if uuid, ret := device.GetUUID(); ret == nvml.SUCCESS {
			usage.UUID = uuid
		}
		usages = append(usages, usage)
	}
	return usages, nil
}

func (p *NVMLProber) Close() {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.initialized {
		nvml.Shutdown()
		p.initialized = false
	}
}
