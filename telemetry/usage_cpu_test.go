package telemetry

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCPUPercent(t *testing.T) {
	tests := []struct {
		name     string
		previous CPUUsageRaw
		current  CPUUsageRaw
		expected CPUUsage
	}{
		{
			name:     "split by mode",
			previous: CPUUsageRaw{User: 100, System: 50, Idle: 800, Iowait: 50, Total: 1000},
			current:  CPUUsageRaw{User: 200, System: 100, Idle: 1100, Iowait: 100, Total: 1500},
			expected: CPUUsage{User: 20, System: 10, Total: 30},
		},
		{
			name:     "nice counts as user, irq as system",
			previous: CPUUsageRaw{},
			current:  CPUUsageRaw{User: 10, Nice: 10, System: 5, Irq: 3, Softirq: 2, Idle: 70, Total: 100},
			expected: CPUUsage{User: 20, System: 10, Total: 30},
		},
		{
			name:     "no time passed",
			previous: CPUUsageRaw{User: 10, Total: 100},
			current:  CPUUsageRaw{User: 10, Total: 100},
			expected: CPUUsage{},
		},
		{
			name:     "counters went backwards",
			previous: CPUUsageRaw{User: 10, Total: 100},
			current:  CPUUsageRaw{User: 5, Total: 50},
			expected: CPUUsage{},
		},
		{
			name:     "fully idle",
			previous: CPUUsageRaw{Idle: 100, Total: 100},
			current:  CPUUsageRaw{Idle: 200, Total: 200},
			expected: CPUUsage{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			usage := CPUPercent(tt.previous, tt.current)
			assert.InDelta(t, tt.expected.User, usage.User, 0.001)
			assert.InDelta(t, tt.expected.System, usage.System, 0.001)
			assert.InDelta(t, tt.expected.Total, usage.Total, 0.001)
		})
	}
}

func TestBusyNeverUnderflows(t *testing.T) {
	assert.Equal(t, uint64(0), CPUUsageRaw{Idle: 20, Iowait: 5, Total: 10}.Busy())
	assert.Equal(t, uint64(75), CPUUsageRaw{Idle: 20, Iowait: 5, Total: 100}.Busy())
}

func TestCPUSampler(t *testing.T) {
	snapshots := []CPUUsageRaw{
		{User: 50, Idle: 50, Total: 100},
		{User: 50, Idle: 50, Total: 100},
		{User: 150, Idle: 50, Total: 200},
	}
	calls := 0
	clock := clockwork.NewFakeClockAt(time.Unix(1700000000, 0))
	sampler := newCPUSamplerFrom(func() (CPUUsageRaw, error) {
		snapshot := snapshots[calls]
		calls++
		return snapshot, nil
	}, clock)

	// first reading is the average since boot
	reading, err := sampler.Sample()
	require.NoError(t, err)
	assert.InDelta(t, 50, reading.Value, 0.001)
	assert.Equal(t, clock.Now(), reading.Time)

	// unchanged counters repeat the previous usage
	reading, err = sampler.Sample()
	require.NoError(t, err)
	assert.InDelta(t, 50, reading.Value, 0.001)

	usage, err := sampler.SampleUsage()
	require.NoError(t, err)
	assert.InDelta(t, 100, usage.Total, 0.001)
	assert.InDelta(t, 100, usage.User, 0.001)
}

func TestCPUSamplerError(t *testing.T) {
	sourceErr := errors.New("stat unavailable")
	sampler := newCPUSamplerFrom(func() (CPUUsageRaw, error) {
		return CPUUsageRaw{}, sourceErr
	}, nil)

	_, err := sampler.Sample()
	require.Error(t, err)
	assert.ErrorIs(t, err, sourceErr)

	var queryErr *QueryError
	require.ErrorAs(t, err, &queryErr)
	assert.Equal(t, "cpu times", queryErr.Query)
}

func TestCPUSamplerConcurrent(t *testing.T) {
	var calls atomic.Int32
	entered := make(chan struct{})
	release := make(chan struct{})
	sampler := newCPUSamplerFrom(func() (CPUUsageRaw, error) {
		n := uint64(calls.Add(1) - 1)
		snapshot := CPUUsageRaw{User: 400 + 50*n, Idle: 400 + 50*n, Total: 800 + 100*n}
		if n == 1 {
			close(entered)
			<-release
		}
		return snapshot, nil
	}, nil)

	_, err := sampler.SampleUsage()
	require.NoError(t, err)

	usages := make([]CPUUsage, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		usages[0], errs[0] = sampler.SampleUsage()
	}()
	<-entered
	go func() {
		defer wg.Done()
		usages[1], errs[1] = sampler.SampleUsage()
	}()
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := range usages {
		require.NoError(t, errs[i])
		assert.InDelta(t, 50, usages[i].Total, 0.001)
	}
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, uint64(1000), sampler.last.Total)
}

func TestCPUSamplerCountersReset(t *testing.T) {
	snapshots := []CPUUsageRaw{
		{User: 50, Idle: 50, Total: 100},
		{User: 5, Idle: 5, Total: 10},
		{User: 15, Idle: 15, Total: 30},
	}
	calls := 0
	sampler := newCPUSamplerFrom(func() (CPUUsageRaw, error) {
		snapshot := snapshots[calls]
		calls++
		return snapshot, nil
	}, nil)

	_, err := sampler.SampleUsage()
	require.NoError(t, err)
	usage, err := sampler.SampleUsage()
	require.NoError(t, err)
	assert.InDelta(t, 50, usage.Total, 0.001)

	// the baseline follows the reset so the next delta is sane
	usage, err = sampler.SampleUsage()
	require.NoError(t, err)
	assert.InDelta(t, 50, usage.Total, 0.001)
	assert.Equal(t, uint64(30), sampler.last.Total)
}

func TestCPUSamplerFork(t *testing.T) {
	snapshots := []CPUUsageRaw{
		{User: 50, Idle: 50, Total: 100},
		{User: 150, Idle: 50, Total: 200},
	}
	calls := 0
	sampler := newCPUSamplerFrom(func() (CPUUsageRaw, error) {
		snapshot := snapshots[calls]
		calls++
		return snapshot, nil
	}, nil)

	_, err := sampler.SampleUsage()
	require.NoError(t, err)

	forked := sampler.fork()
	usage, err := forked.SampleUsage()
	require.NoError(t, err)
	assert.InDelta(t, 100, usage.Total, 0.001)
	assert.Equal(t, uint64(200), forked.last.Total)
	assert.Equal(t, uint64(100), sampler.last.Total)
	assert.InDelta(t, 50, sampler.usage.Total, 0.001)
}
