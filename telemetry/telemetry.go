// Package telemetry reports host CPU and GPU parallelism and usage.
//
// Counts (physical cores, hardware threads, configured processors, clock
// ticks) come from the operating system: sysconf on unix, sysfs topology on
// Linux, kernel32 on Windows and gopsutil everywhere else. Usage is reported
// as timestamped [Reading] values computed from deltas of cumulative CPU time
// counters or from the GPU driver's utilization sensor. [Track] collects
// readings for a fixed period, which is what the daemon uses to answer track
// requests.
package telemetry

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnsupportedPlatform = errors.New("telemetry: unsupported platform")
	ErrInvalidCount        = errors.New("telemetry: invalid count")
	ErrInvalidPeriod       = errors.New("telemetry: tracking period must be positive")
	ErrNoGPU               = errors.New("telemetry: no GPU reported usage")
	ErrProcessNotFound     = errors.New("telemetry: process not found")
	ErrNoParent            = errors.New("telemetry: process has no parent")
	ErrUnknownTarget       = errors.New("telemetry: unknown track target")
)

// QueryError wraps a failed host query with the name of the query.
type QueryError struct {
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("telemetry: %s: %s", e.Query, e.Err.Error())
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// Reading is a single usage sample in percent (0-100).
type Reading struct {
	Value float32   `json:"value"`
	Time  time.Time `json:"time"`
}

// Sampler produces usage readings. Each call to Sample reports usage since
// the previous call.
type Sampler interface {
	Sample() (Reading, error)
}

// SamplerFunc adapts a function to the Sampler interface.
type SamplerFunc func() (Reading, error)

func (f SamplerFunc) Sample() (Reading, error) {
	return f()
}

func clampPercent(value float32) float32 {
	if value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return value
}
