//go:build windows
// +build windows

package telemetry

import (
	"runtime"
	"unsafe"
)

// CPUUsageRaw reads system-wide idle, kernel and user time. Kernel time
// includes idle time. Counters are in 100ns units.
func (p *Prober) CPUUsageRaw() (CPUUsageRaw, error) {
	var idleTime uint64
	var kernelTime uint64
	var userTime uint64

	ret, _, err := getSystemTimes.Call(uintptr(unsafe.Pointer(&idleTime)), uintptr(unsafe.Pointer(&kernelTime)), uintptr(unsafe.Pointer(&userTime)))
	if ret == 0 {
		return CPUUsageRaw{}, err
	}

	system := uint64(0)
	if kernelTime > idleTime {
		system = kernelTime - idleTime
	}
	return CPUUsageRaw{
		Total:    kernelTime + userTime,
		Idle:     idleTime,
		System:   system,
		User:     userTime,
		CPUCount: runtime.NumCPU(),
	}, nil
}
