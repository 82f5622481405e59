//go:build !linux
// +build !linux

package telemetry

// DefaultGPUProbers returns no probers on platforms without DRM sysfs or NVML.
func DefaultGPUProbers() []GPUProber {
	return nil
}
