package telemetry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/jonboulle/clockwork"
	"golang.org/x/exp/maps"
)

// GPU is a single graphics device. Cores and Threads count shader lanes
// (CUDA cores on NVIDIA) and are zero when the driver does not report them.
type GPU struct {
	Index       int    `json:"index"`
	Vendor      string `json:"vendor"`
	Name        string `json:"name"`
	Driver      string `json:"driver"`
	PCIDeviceID string `json:"pciDeviceId"`
	PCISlot     string `json:"pciSlot"`
	UUID        string `json:"uuid"`
	Cores       int    `json:"cores"`
	Threads     int    `json:"threads"`
	MemoryTotal uint64 `json:"memoryTotal"`
}

// GPUUsage is the current utilization of one GPU in percent.
type GPUUsage struct {
	PCISlot     string  `json:"pciSlot"`
	UUID        string  `json:"uuid"`
	Utilization float32 `json:"utilization"`
}

// GPUProber enumerates the GPUs managed by one driver family. A prober that
// finds no devices returns nil, not an error.
type GPUProber interface {
	Enumerate() ([]GPU, error)
	Usage() ([]GPUUsage, error)
	Close()
}

// deviceKey identifies a device across probers. Devices without a PCI slot
// or UUID get a unique key and are never merged.
func deviceKey(pciSlot, uuid string, anonymous *int) string {
	switch {
	case pciSlot != "":
		return pciSlot
	case uuid != "":
		return uuid
	default:
		*anonymous++
		return fmt.Sprintf("#%d", *anonymous)
	}
}

// mergeGPU fills the empty fields of primary from secondary.
func mergeGPU(primary, secondary GPU) GPU {
	if primary.Vendor == "" {
		primary.Vendor = secondary.Vendor
	}
	if primary.Name == "" {
		primary.Name = secondary.Name
	}
	if primary.Driver == "" {
		primary.Driver = secondary.Driver
	}
	if primary.PCIDeviceID == "" {
		primary.PCIDeviceID = secondary.PCIDeviceID
	}
	if primary.UUID == "" {
		primary.UUID = secondary.UUID
	}
	if primary.Cores == 0 {
		primary.Cores = secondary.Cores
	}
	if primary.Threads == 0 {
		primary.Threads = secondary.Threads
	}
	if primary.MemoryTotal == 0 {
		primary.MemoryTotal = secondary.MemoryTotal
	}
	return primary
}

// GPUInventory combines GPU probers. When two probers report the same PCI
// slot, the one registered first wins and the other only fills gaps.
type GPUInventory struct {
	mutex   sync.Mutex
	probers []GPUProber
	clock   clockwork.Clock
}

// NewGPUInventory returns an inventory over probers, in priority order.
func NewGPUInventory(clock clockwork.Clock, probers ...GPUProber) *GPUInventory {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &GPUInventory{probers: probers, clock: clock}
}

// GPUs returns every GPU found, sorted by PCI slot and numbered from 0.
// It fails only when no prober succeeded.
func (i *GPUInventory) GPUs() ([]GPU, error) {
	i.mutex.Lock()
	defer i.mutex.Unlock()

	merged := make(map[string]GPU)
	anonymous := 0
	var firstErr error
	succeeded := len(i.probers) == 0
	for _, prober := range i.probers {
		gpus, err := prober.Enumerate()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		succeeded = true
		for _, gpu := range gpus {
			key := deviceKey(gpu.PCISlot, gpu.UUID, &anonymous)
			if existing, ok := merged[key]; ok {
				merged[key] = mergeGPU(existing, gpu)
				continue
			}
			merged[key] = gpu
		}
	}
	if !succeeded {
		return nil, &QueryError{Query: "gpu enumeration", Err: firstErr}
	}

	gpus := maps.Values(merged)
	sort.Slice(gpus, func(a, b int) bool {
		if gpus[a].PCISlot != gpus[b].PCISlot {
			return gpus[a].PCISlot < gpus[b].PCISlot
		}
		return gpus[a].UUID < gpus[b].UUID
	})
	for n := range gpus {
		gpus[n].Index = n
	}
	return gpus, nil
}

// Count returns the number of GPUs.
func (i *GPUInventory) Count() (int, error) {
	gpus, err := i.GPUs()
	return len(gpus), err
}

// CoreCount returns the total shader cores across all GPUs.
func (i *GPUInventory) CoreCount() (int, error) {
	gpus, err := i.GPUs()
	total := 0
	for _, gpu := range gpus {
		total += gpu.Cores
	}
	return total, err
}

// ThreadCount returns the total hardware threads across all GPUs.
func (i *GPUInventory) ThreadCount() (int, error) {
	gpus, err := i.GPUs()
	total := 0
	for _, gpu := range gpus {
		total += gpu.Threads
	}
	return total, err
}

// Usage returns the utilization of every GPU that reports one.
func (i *GPUInventory) Usage() ([]GPUUsage, error) {
	i.mutex.Lock()
	defer i.mutex.Unlock()

	seen := make(map[string]struct{})
	anonymous := 0
	var usages []GPUUsage
	var firstErr error
	for _, prober := range i.probers {
		reported, err := prober.Usage()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		for _, usage := range reported {
			key := deviceKey(usage.PCISlot, usage.UUID, &anonymous)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			usage.Utilization = clampPercent(usage.Utilization)
			usages = append(usages, usage)
		}
	}
	if len(usages) == 0 && firstErr != nil {
		return nil, &QueryError{Query: "gpu usage", Err: firstErr}
	}
	return usages, nil
}

// Sample implements Sampler with the mean utilization across GPUs.
func (i *GPUInventory) Sample() (Reading, error) {
	usages, err := i.Usage()
	if err != nil {
		return Reading{}, err
	}
	if len(usages) == 0 {
		return Reading{}, ErrNoGPU
	}
	var total float32
	for _, usage := range usages {
		total += usage.Utilization
	}
	return Reading{Value: total / float32(len(usages)), Time: i.clock.Now()}, nil
}

// Close releases driver resources held by the probers.
func (i *GPUInventory) Close() {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	for _, prober := range i.probers {
		prober.Close()
	}
}

func pciVendorName(vendorID string) string {
	switch vendorID {
	case "1002":
		return "AMD"
	case "10de":
		return "NVIDIA"
	case "8086":
		return "Intel"
	default:
		if vendorID != "" {
			return "0x" + vendorID
		}
		return ""
	}
}
