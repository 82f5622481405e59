package telemetry

import (
	"runtime"

	"github.com/shirou/gopsutil/v4/host"
)

// SystemInfo describes the machine: architecture, operating system and chip.
type SystemInfo struct {
	Arch            string `json:"arch"`
	OS              string `json:"os"`
	Platform        string `json:"platform"`
	PlatformVersion string `json:"platformVersion"`
	Kernel          string `json:"kernel"`
	Chip            string `json:"chip"`
	Hostname        string `json:"hostname"`
	Cores           int    `json:"cores"`
	Threads         int    `json:"threads"`
}

// SystemInfo gathers what it can. Architecture and OS always come from the
// Go runtime; on failure the remaining fields are left empty and the first
// error is returned alongside the partial result.
func (p *Prober) SystemInfo() (SystemInfo, error) {
	info := SystemInfo{
		Arch: runtime.GOARCH,
		OS:   runtime.GOOS,
	}

	topology := p.CPUTopology()
	info.Chip = topology.Model
	info.Cores = topology.Cores
	info.Threads = topology.Threads

	hostInfo, err := host.Info()
	if err != nil {
		return info, &QueryError{Query: "host info", Err: err}
	}
	info.Platform = hostInfo.Platform
	info.PlatformVersion = hostInfo.PlatformVersion
	info.Kernel = hostInfo.KernelVersion
	info.Hostname = hostInfo.Hostname
	return info, nil
}
