package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	raw := []CPUUsageRaw{
		{User: 25, Idle: 75, Total: 100},
		{User: 75, System: 25, Idle: 100, Total: 200},
	}
	calls := 0
	gpu := &fakeGPUProber{
		gpus:   []GPU{{Vendor: "AMD", PCISlot: "0000:03:00.0", Cores: 6144, Threads: 6144}},
		usages: []GPUUsage{{PCISlot: "0000:03:00.0", Utilization: 33}},
	}
	collector := NewCollector(
		WithCPUSource(func() (CPUUsageRaw, error) {
			snapshot := raw[calls%len(raw)]
			calls++
			return snapshot, nil
		}),
		WithGPUProbers(gpu),
		WithClock(clockwork.NewFakeClockAt(time.Unix(1700000000, 0))),
	)

	reading, err := collector.CPUReading()
	require.NoError(t, err)
	assert.InDelta(t, 25, reading.Value, 0.001)

	usage, err := collector.CPUUsage()
	require.NoError(t, err)
	assert.InDelta(t, 50, usage.User, 0.001)
	assert.InDelta(t, 25, usage.System, 0.001)
	assert.InDelta(t, 75, usage.Total, 0.001)

	count, err := collector.GPUCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	cores, err := collector.GPUCoreCount()
	require.NoError(t, err)
	assert.Equal(t, 6144, cores)

	gpuReading, err := collector.GPUReading()
	require.NoError(t, err)
	assert.Equal(t, float32(33), gpuReading.Value)

	collector.Close()
	assert.True(t, gpu.closed)
}

func TestCollectorTrackTargets(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	collector := NewCollector(
		WithCPUSource(func() (CPUUsageRaw, error) { return CPUUsageRaw{Idle: 50, Total: 100}, nil }),
		WithGPUProbers(),
		WithClock(clockwork.NewFakeClockAt(time.Unix(1700000000, 0))),
	)

	track, err := collector.TrackCPU(ctx, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, TargetCPU, track.Target)
	assert.Equal(t, 1, track.Count)

	track, err = collector.TrackGPU(ctx, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, track.Failures)

	_, err = collector.Track(ctx, "disk", time.Second)
	assert.ErrorIs(t, err, ErrUnknownTarget)
}

func TestCollectorTrackKeepsBaseline(t *testing.T) {
	raw := []CPUUsageRaw{
		{User: 50, Idle: 50, Total: 100},
		{User: 150, Idle: 50, Total: 200},
		{User: 160, Idle: 140, Total: 300},
	}
	calls := 0
	collector := NewCollector(
		WithCPUSource(func() (CPUUsageRaw, error) {
			snapshot := raw[calls]
			calls++
			return snapshot, nil
		}),
		WithGPUProbers(),
		WithClock(clockwork.NewFakeClockAt(time.Unix(1700000000, 0))),
	)

	reading, err := collector.CPUReading()
	require.NoError(t, err)
	assert.InDelta(t, 50, reading.Value, 0.001)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	track, err := collector.TrackCPU(ctx, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, track.Readings, 1)
	assert.InDelta(t, 100, track.Readings[0].Value, 0.001)

	// usage since the last direct query, not since the track's sample
	usage, err := collector.CPUUsage()
	require.NoError(t, err)
	assert.InDelta(t, 55, usage.Total, 0.001)
}

func TestCollectorSampler(t *testing.T) {
	collector := NewCollector(
		WithCPUSource(func() (CPUUsageRaw, error) { return CPUUsageRaw{Idle: 50, Total: 100}, nil }),
		WithGPUProbers(),
	)

	sampler, err := collector.Sampler(TargetCPU)
	require.NoError(t, err)
	reading, err := sampler.Sample()
	require.NoError(t, err)
	assert.InDelta(t, 50, reading.Value, 0.001)

	sampler, err = collector.Sampler(TargetGPU)
	require.NoError(t, err)
	_, err = sampler.Sample()
	assert.ErrorIs(t, err, ErrNoGPU)

	sampler, err = collector.Sampler("disk")
	assert.ErrorIs(t, err, ErrUnknownTarget)
	assert.Nil(t, sampler)
}

func TestDefaultCollector(t *testing.T) {
	assert.Same(t, Default(), Default())

	threads, err := GetCPUThreadCount()
	require.NoError(t, err)
	assert.Positive(t, threads)

	_, err = GetCPUUsage()
	assert.NoError(t, err)

	info, err := GetSystemInfo()
	assert.NotEmpty(t, info.OS)
	assert.NotEmpty(t, info.Arch)
	if err == nil {
		assert.NotEmpty(t, info.Hostname)
	}
}
