package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	TargetCPU = "cpu"
	TargetGPU = "gpu"
)

// Collector bundles everything needed to answer telemetry queries for one
// host. It is safe for concurrent use.
type Collector struct {
	prober        *Prober
	cpuSource     func() (CPUUsageRaw, error)
	cpu           *CPUSampler
	gpuProbers    []GPUProber
	gpus          *GPUInventory
	clock         clockwork.Clock
	trackInterval time.Duration
}

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithProber replaces the default /proc and /sys prober.
func WithProber(prober *Prober) CollectorOption {
	return func(c *Collector) { c.prober = prober }
}

// WithCPUSource replaces the prober as the source of raw CPU counters.
func WithCPUSource(source func() (CPUUsageRaw, error)) CollectorOption {
	return func(c *Collector) { c.cpuSource = source }
}

// WithGPUProbers replaces DefaultGPUProbers. No probers disables GPU probing.
func WithGPUProbers(probers ...GPUProber) CollectorOption {
	return func(c *Collector) { c.gpuProbers = probers }
}

// WithClock sets the clock used for readings and tracks.
func WithClock(clock clockwork.Clock) CollectorOption {
	return func(c *Collector) { c.clock = clock }
}

// WithTrackInterval sets the interval between readings of a track.
func WithTrackInterval(interval time.Duration) CollectorOption {
	return func(c *Collector) { c.trackInterval = interval }
}

// NewCollector returns a collector for the local host.
func NewCollector(options ...CollectorOption) *Collector {
	collector := &Collector{
		prober:        NewProber(),
		clock:         clockwork.NewRealClock(),
		trackInterval: DefaultTrackInterval,
	}
	collector.gpuProbers = DefaultGPUProbers()
	for _, option := range options {
		option(collector)
	}

	source := collector.cpuSource
	if source == nil {
		source = collector.prober.CPUUsageRaw
	}
	collector.cpu = newCPUSamplerFrom(source, collector.clock)
	collector.gpus = NewGPUInventory(collector.clock, collector.gpuProbers...)
	return collector
}

func (c *Collector) Prober() *Prober { return c.prober }

func (c *Collector) CPUCount() (int, error) { return c.prober.CPUCount() }

func (c *Collector) CPUThreadCount() (int, error) { return c.prober.CPUThreadCount() }

func (c *Collector) CPUTopology() CPUTopology { return c.prober.CPUTopology() }

func (c *Collector) SystemInfo() (SystemInfo, error) { return c.prober.SystemInfo() }

func (c *Collector) Memory() (MemoryUsage, error) { return c.prober.MemoryUsage() }

// CPUReading returns total CPU usage since the previous CPU query.
func (c *Collector) CPUReading() (Reading, error) { return c.cpu.Sample() }

// CPUUsage returns CPU usage since the previous CPU query, split by mode.
func (c *Collector) CPUUsage() (CPUUsage, error) { return c.cpu.SampleUsage() }

func (c *Collector) GPUs() ([]GPU, error) { return c.gpus.GPUs() }

func (c *Collector) GPUCount() (int, error) { return c.gpus.Count() }

func (c *Collector) GPUCoreCount() (int, error) { return c.gpus.CoreCount() }

func (c *Collector) GPUThreadCount() (int, error) { return c.gpus.ThreadCount() }

func (c *Collector) GPUUsage() ([]GPUUsage, error) { return c.gpus.Usage() }

// GPUReading returns mean utilization across GPUs, or ErrNoGPU.
func (c *Collector) GPUReading() (Reading, error) { return c.gpus.Sample() }

// Sampler returns a sampler for target ("cpu" or "gpu"), or ErrUnknownTarget.
// The CPU sampler is forked from the collector's baseline, so readings taken
// through it do not affect CPUReading or CPUUsage.
func (c *Collector) Sampler(target string) (Sampler, error) {
	switch target {
	case TargetCPU:
		return c.cpu.fork(), nil
	case TargetGPU:
		return c.gpus, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTarget, target)
	}
}

// Track collects readings of target ("cpu" or "gpu") for period.
func (c *Collector) Track(ctx context.Context, target string, period time.Duration) (UsageTrack, error) {
	sampler, err := c.Sampler(target)
	if err != nil {
		return UsageTrack{}, err
	}
	return Track(ctx, sampler, TrackOptions{
		Target:   target,
		Period:   period,
		Interval: c.trackInterval,
		Clock:    c.clock,
	})
}

func (c *Collector) TrackCPU(ctx context.Context, period time.Duration) (UsageTrack, error) {
	return c.Track(ctx, TargetCPU, period)
}

func (c *Collector) TrackGPU(ctx context.Context, period time.Duration) (UsageTrack, error) {
	return c.Track(ctx, TargetGPU, period)
}

// Processes lists running processes, sorted by pid.
func (c *Collector) Processes(ctx context.Context) ([]Process, error) {
	return GetProcesses(ctx)
}

// Close releases GPU driver resources.
func (c *Collector) Close() {
	c.gpus.Close()
}

var (
	defaultCollector     *Collector
	defaultCollectorOnce sync.Once
)

// Default returns the collector used by the package-level functions.
func Default() *Collector {
	defaultCollectorOnce.Do(func() {
		defaultCollector = NewCollector()
	})
	return defaultCollector
}

// GetCPUCount returns the number of physical CPU cores.
func GetCPUCount() (int, error) { return Default().CPUCount() }

// GetCPUThreadCount returns the number of logical processors.
func GetCPUThreadCount() (int, error) { return Default().CPUThreadCount() }

// GetGPUCount returns the number of GPUs found by the default probers.
func GetGPUCount() (int, error) { return Default().GPUCount() }

// GetGPUCoreCount returns the total shader cores across all GPUs.
func GetGPUCoreCount() (int, error) { return Default().GPUCoreCount() }

// GetGPUThreadCount returns the total GPU hardware threads.
func GetGPUThreadCount() (int, error) { return Default().GPUThreadCount() }

// GetCPUUsage returns total CPU usage since the previous call. The first
// call reports the average since boot.
func GetCPUUsage() (Reading, error) { return Default().CPUReading() }

// GetGPUUsage returns mean GPU utilization.
func GetGPUUsage() (Reading, error) { return Default().GPUReading() }

// TrackCPUUsage collects CPU readings for period.
func TrackCPUUsage(ctx context.Context, period time.Duration) (UsageTrack, error) {
	return Default().TrackCPU(ctx, period)
}

// TrackGPUUsage collects GPU readings for period.
func TrackGPUUsage(ctx context.Context, period time.Duration) (UsageTrack, error) {
	return Default().TrackGPU(ctx, period)
}

// GetSystemInfo describes the local machine.
func GetSystemInfo() (SystemInfo, error) { return Default().SystemInfo() }

// GetMemoryUsage returns physical and swap memory usage.
func GetMemoryUsage() (MemoryUsage, error) { return Default().Memory() }
