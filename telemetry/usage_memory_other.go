//go:build !linux && !windows
// +build !linux,!windows

package telemetry

import "github.com/shirou/gopsutil/v4/mem"

func (p *Prober) MemoryUsage() (MemoryUsage, error) {
	virtual, err := mem.VirtualMemory()
	if err != nil {
		return MemoryUsage{}, err
	}
	usage := MemoryUsage{Total: virtual.Total, Used: virtual.Used}

	if swap, err := mem.SwapMemory(); err == nil {
		usage.SwapTotal = swap.Total
		usage.SwapUsed = swap.Used
	}
	return usage, nil
}
