//go:build !linux
// +build !linux

package telemetry

import "github.com/shirou/gopsutil/v4/cpu"

func (p *Prober) probeTopologySystem(topology *CPUTopology) {
	info, err := cpu.Info()
	if err != nil || len(info) == 0 {
		return
	}
	topology.Model = info[0].ModelName

	packages := make(map[string]struct{})
	for _, stat := range info {
		if stat.PhysicalID != "" {
			packages[stat.PhysicalID] = struct{}{}
		}
	}
	topology.Sockets = len(packages)
}
