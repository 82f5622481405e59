package telemetry

import (
	"sync"

	"github.com/jonboulle/clockwork"
)

// CPUUsage is CPU utilization in percent over some interval.
type CPUUsage struct {
	User   float32 `json:"user"`
	System float32 `json:"system"`
	Total  float32 `json:"total"`
}

// CPUUsageRaw holds cumulative CPU time counters in clock ticks
// (see GetClockTicks). Total excludes guest time, which the kernel already
// accounts in User and Nice.
type CPUUsageRaw struct {
	User, Nice, System, Idle, Iowait, Irq, Softirq, Steal, Guest, GuestNice, Total uint64
	CPUCount, StatCount                                                              int
}

// Busy returns the non-idle part of Total.
func (r CPUUsageRaw) Busy() uint64 {
	idle := r.Idle + r.Iowait
	if idle > r.Total {
		return 0
	}
	return r.Total - idle
}

// CPUPercent computes utilization between two raw snapshots. It returns a
// zero CPUUsage when no time passed or the counters went backwards.
func CPUPercent(previous, current CPUUsageRaw) CPUUsage {
	if current.Total <= previous.Total {
		return CPUUsage{}
	}
	total := float32(current.Total - previous.Total)
	delta := func(now, before uint64) float32 {
		if now < before {
			return 0
		}
		return float32(now - before)
	}

	user := delta(current.User+current.Nice, previous.User+previous.Nice)
	system := delta(current.System+current.Irq+current.Softirq, previous.System+previous.Irq+previous.Softirq)
	busy := delta(current.Busy(), previous.Busy())
	return CPUUsage{
		User:   clampPercent(user / total * 100),
		System: clampPercent(system / total * 100),
		Total:  clampPercent(busy / total * 100),
	}
}

// CPUSampler turns cumulative counters into readings. Each Sample reports
// usage since the previous one; the first reports the average since boot.
type CPUSampler struct {
	mutex  sync.Mutex
	source func() (CPUUsageRaw, error)
	clock  clockwork.Clock
	last   CPUUsageRaw
	usage  CPUUsage
}

// NewCPUSampler returns a sampler reading counters through prober.
func NewCPUSampler(prober *Prober, clock clockwork.Clock) *CPUSampler {
	return newCPUSamplerFrom(prober.CPUUsageRaw, clock)
}

func newCPUSamplerFrom(source func() (CPUUsageRaw, error), clock clockwork.Clock) *CPUSampler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &CPUSampler{source: source, clock: clock}
}

// Sample implements Sampler with the total utilization.
func (s *CPUSampler) Sample() (Reading, error) {
	usage, err := s.SampleUsage()
	if err != nil {
		return Reading{}, err
	}
	return Reading{Value: usage.Total, Time: s.clock.Now()}, nil
}

// SampleUsage is Sample with the user/system split. The source is read
// under the lock so concurrent callers never move the baseline backwards.
func (s *CPUSampler) SampleUsage() (CPUUsage, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	current, err := s.source()
	if err != nil {
		return CPUUsage{}, &QueryError{Query: "cpu times", Err: err}
	}
	if current.Total > s.last.Total {
		s.usage = CPUPercent(s.last, current)
	}
	s.last = current
	return s.usage, nil
}

// fork returns a sampler on the same source that starts from the current
// baseline. Samples taken through the fork leave s untouched.
func (s *CPUSampler) fork() *CPUSampler {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return &CPUSampler{source: s.source, clock: s.clock, last: s.last, usage: s.usage}
}
