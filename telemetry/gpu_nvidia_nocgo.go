//go:build linux && !cgo
// +build linux,!cgo

package telemetry

// NVML is loaded through cgo; without it only the DRM prober is available.
func nvidiaProbers() []GPUProber {
	return nil
}
