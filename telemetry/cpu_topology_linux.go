//go:build linux
// +build linux

package telemetry

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

func (p *Prober) probeTopologySystem(topology *CPUTopology) {
	topology.Model = readCPUModel(filepath.Join(p.procRoot, "cpuinfo"))

	cpuBase := filepath.Join(p.sysRoot, "devices/system/cpu")
	entries, err := os.ReadDir(cpuBase)
	if err != nil {
		return
	}

	type coreKey struct {
		packageID string
		coreID    string
	}
	packages := make(map[string]struct{})
	cores := make(map[coreKey]struct{})
	for _, entry := range entries {
		if !isNumberedEntry(entry.Name(), "cpu") {
			continue
		}
		topologyDir := filepath.Join(cpuBase, entry.Name(), "topology")
		packageID := readSysfsString(filepath.Join(topologyDir, "physical_package_id"))
		coreID := readSysfsString(filepath.Join(topologyDir, "core_id"))
		if packageID != "" {
			packages[packageID] = struct{}{}
		}
		if packageID != "" && coreID != "" {
			cores[coreKey{packageID, coreID}] = struct{}{}
		}
	}

	topology.Sockets = len(packages)
	topology.Cores = len(cores)
	topology.ThreadsPerCore = countCPUList(readSysfsString(filepath.Join(cpuBase, "cpu0/topology/thread_siblings_list")))
}

// readCPUModel returns the first "model name" value from /proc/cpuinfo.
func readCPUModel(path string) string {
	file, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "model name") {
			continue
		}
		if _, value, ok := strings.Cut(line, ":"); ok {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

// countCPUList counts the CPUs in a kernel cpu list such as "0,96" or
// "0-1,8-9". Returns 0 for an empty or malformed list.
func countCPUList(list string) int {
	if list == "" {
		return 0
	}
	count := 0
	for _, part := range strings.Split(list, ",") {
		low, high, isRange := strings.Cut(part, "-")
		if !isRange {
			if _, err := strconv.Atoi(part); err != nil {
				return 0
			}
			count++
			continue
		}
		first, err := strconv.Atoi(low)
		if err != nil {
			return 0
		}
		last, err := strconv.Atoi(high)
		if err != nil || last < first {
			return 0
		}
		count += last - first + 1
	}
	return count
}
