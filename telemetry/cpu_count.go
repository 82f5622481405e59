package telemetry

import (
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v4/cpu"
)

// CPUTopology describes the host's CPU parallelism. Fields that could not be
// determined are zero.
type CPUTopology struct {
	Model          string `json:"model"`
	Sockets        int    `json:"sockets"`
	Cores          int    `json:"cores"`
	Threads        int    `json:"threads"`
	ThreadsPerCore int    `json:"threadsPerCore"`
	Configured     int    `json:"configured"`
	ClockTicks     int64  `json:"clockTicks"`
}

// CPUCount returns the number of physical CPU cores.
func (p *Prober) CPUCount() (int, error) {
	var topology CPUTopology
	p.probeTopologySystem(&topology)
	if topology.Cores > 0 {
		return topology.Cores, nil
	}

	count, err := cpu.Counts(false)
	if err != nil {
		return 0, &QueryError{Query: "physical core count", Err: err}
	}
	if count <= 0 {
		return 0, fmt.Errorf("physical core count %d: %w", count, ErrInvalidCount)
	}
	return count, nil
}

// CPUThreadCount returns the number of logical processors (hardware threads).
func (p *Prober) CPUThreadCount() (int, error) {
	count, err := cpu.Counts(true)
	if err == nil && count > 0 {
		return count, nil
	}
	if fallback := runtime.NumCPU(); fallback > 0 {
		return fallback, nil
	}
	if err != nil {
		return 0, &QueryError{Query: "logical processor count", Err: err}
	}
	return 0, fmt.Errorf("logical processor count %d: %w", count, ErrInvalidCount)
}

// CPUTopology probes everything it can about the CPU. It never fails:
// a headless VM without sysfs topology still reports thread counts.
func (p *Prober) CPUTopology() CPUTopology {
	var topology CPUTopology
	p.probeTopologySystem(&topology)

	if topology.Cores == 0 {
		if count, err := cpu.Counts(false); err == nil && count > 0 {
			topology.Cores = count
		}
	}
	topology.Threads, _ = p.CPUThreadCount()
	topology.Configured, _ = GetCPUConfiguredCount()
	topology.ClockTicks, _ = GetClockTicks()

	if topology.Model == "" {
		if info, err := cpu.Info(); err == nil && len(info) > 0 {
			topology.Model = info[0].ModelName
		}
	}
	if topology.ThreadsPerCore == 0 && topology.Cores > 0 && topology.Threads >= topology.Cores {
		topology.ThreadsPerCore = topology.Threads / topology.Cores
	}
	if topology.Sockets == 0 && topology.Cores > 0 {
		topology.Sockets = 1
	}
	return topology
}

// GetCPUConfiguredCount returns the number of processors configured in the
// operating system, which includes offline ones.
func GetCPUConfiguredCount() (int, error) {
	count, err := configuredCPUsSystem()
	return validCount("configured processor count", count, err)
}

// GetClockTicks returns the number of clock ticks per second used by the
// kernel for CPU time accounting. Raw CPU counters are in these units.
func GetClockTicks() (int64, error) {
	ticks, err := clockTicksSystem()
	return validCount("clock ticks", ticks, err)
}

// validCount passes err through and rejects non-positive counts.
func validCount[T int | int64](query string, count T, err error) (T, error) {
	if err != nil {
		return 0, err
	}
	if count <= 0 {
		return 0, fmt.Errorf("%s %d: %w", query, count, ErrInvalidCount)
	}
	return count, nil
}
