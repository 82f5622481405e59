//go:build !linux && !windows
// +build !linux,!windows

package telemetry

import (
	"errors"

	"github.com/shirou/gopsutil/v4/cpu"
)

const fallbackClockTicks = 100

// CPUUsageRaw converts gopsutil's aggregate CPU times (seconds) into ticks.
func (p *Prober) CPUUsageRaw() (CPUUsageRaw, error) {
	times, err := cpu.Times(false)
	if err != nil {
		return CPUUsageRaw{}, err
	}
	if len(times) == 0 {
		return CPUUsageRaw{}, errors.New("no cpu times reported")
	}

	ticks, err := GetClockTicks()
	if err != nil {
		ticks = fallbackClockTicks
	}
	toTicks := func(seconds float64) uint64 {
		return uint64(seconds * float64(ticks))
	}

	stat := times[0]
	raw := CPUUsageRaw{
		User:      toTicks(stat.User),
		Nice:      toTicks(stat.Nice),
		System:    toTicks(stat.System),
		Idle:      toTicks(stat.Idle),
		Iowait:    toTicks(stat.Iowait),
		Irq:       toTicks(stat.Irq),
		Softirq:   toTicks(stat.Softirq),
		Steal:     toTicks(stat.Steal),
		Guest:     toTicks(stat.Guest),
		GuestNice: toTicks(stat.GuestNice),
	}
	raw.Total = raw.User + raw.Nice + raw.System + raw.Idle + raw.Iowait + raw.Irq + raw.Softirq + raw.Steal
	raw.CPUCount, _ = cpu.Counts(true)
	return raw, nil
}
