package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/samber/lo"
)

// DefaultTrackInterval is the sampling interval used when none is given.
const DefaultTrackInterval = 100 * time.Millisecond

// TrackOptions configures Track.
type TrackOptions struct {
	// Target labels the track, e.g. "cpu" or "gpu".
	Target string
	// Period is how long to collect readings. Must be positive.
	Period time.Duration
	// Interval is the time between readings. Defaults to
	// DefaultTrackInterval and is capped at Period.
	Interval time.Duration
	Clock    clockwork.Clock
}

// UsageTrack summarizes the readings collected over a period. Count is the
// number of readings; Failures counts samples that returned an error.
type UsageTrack struct {
	Target   string    `json:"target"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Readings []Reading `json:"readings"`
	Count    int       `json:"count"`
	Failures int       `json:"failures"`
	Average  float32   `json:"average"`
	Min      float32   `json:"min"`
	Max      float32   `json:"max"`
}

func (t *UsageTrack) summarize() {
	t.Count = len(t.Readings)
	if t.Count == 0 {
		return
	}
	values := lo.Map(t.Readings, func(reading Reading, _ int) float32 { return reading.Value })
	t.Average = lo.Sum(values) / float32(t.Count)
	t.Min = lo.Min(values)
	t.Max = lo.Max(values)
}

// Track samples once immediately and then once per interval until the period
// elapses or ctx is done. A cancelled track returns what was collected along
// with ctx.Err(). If every sample failed the last sample error is returned.
func Track(ctx context.Context, sampler Sampler, options TrackOptions) (UsageTrack, error) {
	if options.Period <= 0 {
		return UsageTrack{}, fmt.Errorf("%w: %v", ErrInvalidPeriod, options.Period)
	}
	interval := options.Interval
	if interval <= 0 {
		interval = DefaultTrackInterval
	}
	if interval > options.Period {
		interval = options.Period
	}
	clock := options.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	track := UsageTrack{Target: options.Target, Start: clock.Now()}
	var lastErr error
	sample := func() {
		reading, err := sampler.Sample()
		if err != nil {
			track.Failures++
			lastErr = err
			return
		}
		track.Readings = append(track.Readings, reading)
	}

	deadline := clock.NewTimer(options.Period)
	defer deadline.Stop()
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()

	sample()
	var err error
loop:
	for {
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break loop
		case <-deadline.Chan():
			break loop
		case <-ticker.Chan():
			sample()
		}
	}

	track.End = clock.Now()
	track.summarize()
	if err == nil && track.Count == 0 && lastErr != nil {
		err = lastErr
	}
	return track, err
}

// Stream samples every interval until ctx is done and sends each successful
// reading on the returned channel, which is closed on exit. A slow consumer
// makes the stream skip ticks rather than queue readings.
func Stream(ctx context.Context, sampler Sampler, interval time.Duration, clock clockwork.Clock) <-chan Reading {
	if interval <= 0 {
		interval = DefaultTrackInterval
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	readings := make(chan Reading, 1)
	ticker := clock.NewTicker(interval)

	go func() {
		defer close(readings)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				reading, err := sampler.Sample()
				if err != nil {
					continue
				}
				select {
				case readings <- reading:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return readings
}
