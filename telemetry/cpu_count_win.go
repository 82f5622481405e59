//go:build windows
// +build windows

package telemetry

import "runtime"

// GetSystemTimes reports FILETIME values, which count 100ns intervals.
const windowsTicksPerSecond = 10_000_000

func configuredCPUsSystem() (int, error) {
	return runtime.NumCPU(), nil
}

func clockTicksSystem() (int64, error) {
	return windowsTicksPerSecond, nil
}
