package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedSampler returns values in order and signals every call on sampled.
type scriptedSampler struct {
	clock   clockwork.Clock
	values  []float32
	errs    []error
	calls   int
	sampled chan struct{}
}

func newScriptedSampler(clock clockwork.Clock, values ...float32) *scriptedSampler {
	return &scriptedSampler{clock: clock, values: values, sampled: make(chan struct{}, 64)}
}

func (s *scriptedSampler) Sample() (Reading, error) {
	defer func() {
		s.calls++
		s.sampled <- struct{}{}
	}()
	if s.calls < len(s.errs) && s.errs[s.calls] != nil {
		return Reading{}, s.errs[s.calls]
	}
	value := s.values[s.calls%len(s.values)]
	return Reading{Value: value, Time: s.clock.Now()}, nil
}

type trackResult struct {
	track UsageTrack
	err   error
}

func TestTrack(t *testing.T) {
	start := time.Unix(1700000000, 0)
	clock := clockwork.NewFakeClockAt(start)
	sampler := newScriptedSampler(clock, 10, 20, 30, 40)

	done := make(chan trackResult, 1)
	go func() {
		track, err := Track(context.Background(), sampler, TrackOptions{
			Target:   "cpu",
			Period:   350 * time.Millisecond,
			Interval: 100 * time.Millisecond,
			Clock:    clock,
		})
		done <- trackResult{track, err}
	}()

	clock.BlockUntil(2)
	<-sampler.sampled
	for i := 0; i < 3; i++ {
		clock.Advance(100 * time.Millisecond)
		<-sampler.sampled
	}
	clock.Advance(50 * time.Millisecond)

	result := <-done
	require.NoError(t, result.err)
	track := result.track
	assert.Equal(t, "cpu", track.Target)
	assert.Equal(t, start, track.Start)
	assert.Equal(t, start.Add(350*time.Millisecond), track.End)
	assert.Equal(t, 4, track.Count)
	assert.Zero(t, track.Failures)
	assert.InDelta(t, 25, track.Average, 0.001)
	assert.Equal(t, float32(10), track.Min)
	assert.Equal(t, float32(40), track.Max)
	assert.Equal(t, start, track.Readings[0].Time)
	assert.Equal(t, start.Add(300*time.Millisecond), track.Readings[3].Time)
}

func TestTrackCountsFailures(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Unix(1700000000, 0))
	sampler := newScriptedSampler(clock, 50)
	sampler.errs = []error{nil, errors.New("transient")}

	done := make(chan trackResult, 1)
	go func() {
		track, err := Track(context.Background(), sampler, TrackOptions{
			Period:   250 * time.Millisecond,
			Interval: 100 * time.Millisecond,
			Clock:    clock,
		})
		done <- trackResult{track, err}
	}()

	clock.BlockUntil(2)
	<-sampler.sampled
	for i := 0; i < 2; i++ {
		clock.Advance(100 * time.Millisecond)
		<-sampler.sampled
	}
	clock.Advance(50 * time.Millisecond)

	result := <-done
	require.NoError(t, result.err)
	assert.Equal(t, 2, result.track.Count)
	assert.Equal(t, 1, result.track.Failures)
	assert.InDelta(t, 50, result.track.Average, 0.001)
}

func TestTrackAllSamplesFail(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Unix(1700000000, 0))
	sampleErr := errors.New("no counters")
	sampler := SamplerFunc(func() (Reading, error) { return Reading{}, sampleErr })

	done := make(chan trackResult, 1)
	go func() {
		track, err := Track(context.Background(), sampler, TrackOptions{
			Period: 100 * time.Millisecond,
			Clock:  clock,
		})
		done <- trackResult{track, err}
	}()

	clock.BlockUntil(2)
	clock.Advance(100 * time.Millisecond)

	result := <-done
	assert.ErrorIs(t, result.err, sampleErr)
	assert.Zero(t, result.track.Count)
	assert.GreaterOrEqual(t, result.track.Failures, 1)
}

func TestTrackCancelled(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Unix(1700000000, 0))
	sampler := newScriptedSampler(clock, 75)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	track, err := Track(ctx, sampler, TrackOptions{Period: time.Hour, Clock: clock})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, track.Count)
	assert.Equal(t, float32(75), track.Average)
}

func TestTrackInvalidPeriod(t *testing.T) {
	for _, period := range []time.Duration{0, -time.Second} {
		_, err := Track(context.Background(), newScriptedSampler(clockwork.NewRealClock(), 1), TrackOptions{Period: period})
		assert.ErrorIs(t, err, ErrInvalidPeriod)
	}
}

func TestTrackRealClock(t *testing.T) {
	sampler := newScriptedSampler(clockwork.NewRealClock(), 5)
	track, err := Track(context.Background(), sampler, TrackOptions{
		Period:   50 * time.Millisecond,
		Interval: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, track.Count, 1)
	assert.False(t, track.End.Before(track.Start))
}

func TestStream(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Unix(1700000000, 0))
	sampler := newScriptedSampler(clock, 10, 20)
	sampler.errs = []error{errors.New("skipped")}
	ctx, cancel := context.WithCancel(context.Background())

	readings := Stream(ctx, sampler, 100*time.Millisecond, clock)
	clock.BlockUntil(1)

	clock.Advance(100 * time.Millisecond)
	<-sampler.sampled
	clock.Advance(100 * time.Millisecond)
	<-sampler.sampled

	reading := <-readings
	assert.Equal(t, float32(20), reading.Value)
	assert.Equal(t, clock.Now(), reading.Time)

	cancel()
	for range readings {
	}
}
