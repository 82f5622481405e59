//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd && !windows
// +build !linux,!darwin,!freebsd,!netbsd,!openbsd,!windows

package telemetry

import (
	"fmt"
	"runtime"
)

func configuredCPUsSystem() (int, error) {
	return runtime.NumCPU(), nil
}

func clockTicksSystem() (int64, error) {
	return 0, fmt.Errorf("clock ticks on %s: %w", runtime.GOOS, ErrUnsupportedPlatform)
}
