//go:build linux
// +build linux

package telemetry

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DRMProber enumerates GPUs from /sys/class/drm. It sees every card with a
// kernel driver; utilization comes from gpu_busy_percent, which amdgpu
// exposes and most other drivers do not.
type DRMProber struct {
	sysRoot string
}

// NewDRMProber returns a DRMProber over the real /sys.
func NewDRMProber() *DRMProber {
	return &DRMProber{sysRoot: "/sys"}
}

// NewDRMProberFrom returns a DRMProber over a synthetic sysfs root.
func NewDRMProberFrom(sysRoot string) *DRMProber {
	return &DRMProber{sysRoot: sysRoot}
}

// DefaultGPUProbers returns NVML (when built with cgo) followed by DRM.
func DefaultGPUProbers() []GPUProber {
	return append(nvidiaProbers(), NewDRMProber())
}

func (p *DRMProber) cardDevices() ([]string, error) {
	drmBase := filepath.Join(p.sysRoot, "class/drm")
	entries, err := os.ReadDir(drmBase)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var devices []string
	for _, entry := range entries {
		// card0, card1, ... but not card0-DP-1 or renderD128
		if !isNumberedEntry(entry.Name(), "card") {
			continue
		}
		devices = append(devices, filepath.Join(drmBase, entry.Name(), "device"))
	}
	return devices, nil
}

func (p *DRMProber) Enumerate() ([]GPU, error) {
	devices, err := p.cardDevices()
	if err != nil {
		return nil, err
	}

	var gpus []GPU
	for _, devicePath := range devices {
		vendor, deviceID, pciSlot := parsePCIUevent(devicePath)
		gpus = append(gpus, GPU{
			Vendor:      vendor,
			Name:        readSysfsString(filepath.Join(devicePath, "product_name")),
			Driver:      readDriverName(devicePath),
			PCIDeviceID: deviceID,
			PCISlot:     pciSlot,
			UUID:        readSysfsString(filepath.Join(devicePath, "unique_id")),
			MemoryTotal: readSysfsUint(filepath.Join(devicePath, "mem_info_vram_total")),
		})
	}
	return gpus, nil
}

func (p *DRMProber) Usage() ([]GPUUsage, error) {
	devices, err := p.cardDevices()
	if err != nil {
		return nil, err
	}

	var usages []GPUUsage
	for _, devicePath := range devices {
		busy := readSysfsString(filepath.Join(devicePath, "gpu_busy_percent"))
		if busy == "" {
			continue
		}
		percent, err := strconv.ParseFloat(busy, 32)
		if err != nil {
			continue
		}
		_, _, pciSlot := parsePCIUevent(devicePath)
		usages = append(usages, GPUUsage{
			PCISlot:     pciSlot,
			UUID:        readSysfsString(filepath.Join(devicePath, "unique_id")),
			Utilization: float32(percent),
		})
	}
	return usages, nil
}

func (p *DRMProber) Close() {}

// readDriverName returns the basename of the device's driver symlink.
func readDriverName(devicePath string) string {
	link, err := os.Readlink(filepath.Join(devicePath, "driver"))
	if err != nil {
		return ""
	}
	return filepath.Base(link)
}

// parsePCIUevent extracts the vendor name, device ID and PCI slot from the
// device's uevent file, which holds lines like:
//
//	PCI_ID=1002:744A
//	PCI_SLOT_NAME=0000:c3:00.0
func parsePCIUevent(devicePath string) (vendor, deviceID, pciSlot string) {
	data, err := os.ReadFile(filepath.Join(devicePath, "uevent"))
	if err != nil {
		return "", "", ""
	}

	var rawVendorID, rawDeviceID string
	for _, line := range strings.Split(string(data), "\n") {
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch key {
		case "PCI_ID":
			if vendorID, device, ok := strings.Cut(value, ":"); ok {
				rawVendorID = strings.ToLower(vendorID)
				rawDeviceID = strings.ToLower(device)
			}
		case "PCI_SLOT_NAME":
			pciSlot = strings.ToLower(value)
		}
	}

	vendor = pciVendorName(rawVendorID)
	if rawDeviceID != "" {
		deviceID = "0x" + rawDeviceID
	}
	return vendor, deviceID, pciSlot
}
