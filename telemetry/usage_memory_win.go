//go:build windows
// +build windows

package telemetry

import (
	"unsafe"
)

type memoryWindowsRaw struct {
	Length               uint32
	MemoryLoad           uint32
	TotalPhys            uint64
	AvailPhys            uint64
	TotalPageFile        uint64
	AvailPageFile        uint64
	TotalVirtual         uint64
	AvailVirtual         uint64
	AvailExtendedVirtual uint64
}

// MemoryUsage calls GlobalMemoryStatusEx. Swap is reported as the page file.
func (p *Prober) MemoryUsage() (MemoryUsage, error) {
	var memory memoryWindowsRaw
	memory.Length = uint32(unsafe.Sizeof(memory))
	ret, _, err := globalMemoryStatusEx.Call(uintptr(unsafe.Pointer(&memory)))
	if ret == 0 {
		return MemoryUsage{}, err
	}

	return MemoryUsage{
		Total:     memory.TotalPhys,
		Used:      memory.TotalPhys - memory.AvailPhys,
		SwapTotal: memory.TotalPageFile,
		SwapUsed:  memory.TotalPageFile - memory.AvailPageFile,
	}, nil
}
