//go:build linux
// +build linux

package telemetry

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTopology creates one cpuN directory per entry of coreIDs, all in
// the given package.
func writeTopology(t *testing.T, sysRoot, packageID string, coreIDs []string, siblings string) {
	t.Helper()
	cpuBase := filepath.Join(sysRoot, "devices/system/cpu")
	for n, coreID := range coreIDs {
		topologyDir := filepath.Join(cpuBase, fmt.Sprintf("cpu%d", n), "topology")
		writeFile(t, filepath.Join(topologyDir, "physical_package_id"), packageID+"\n")
		writeFile(t, filepath.Join(topologyDir, "core_id"), coreID+"\n")
		writeFile(t, filepath.Join(topologyDir, "thread_siblings_list"), siblings+"\n")
	}
	require.NoError(t, os.MkdirAll(filepath.Join(cpuBase, "cpufreq"), 0o755))
	writeFile(t, filepath.Join(cpuBase, "online"), "0-3\n")
}

func TestTopologyLinux(t *testing.T) {
	procRoot, sysRoot := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(procRoot, "cpuinfo"), `processor	: 0
vendor_id	: GenuineIntel
model name	: Intel(R) Core(TM) i7-8550U CPU @ 1.80GHz

processor	: 1
model name	: Intel(R) Core(TM) i7-8550U CPU @ 1.80GHz
`)
	writeTopology(t, sysRoot, "0", []string{"0", "0", "1", "1"}, "0-1")

	prober := NewProberFrom(procRoot, sysRoot)
	var topology CPUTopology
	prober.probeTopologySystem(&topology)
	assert.Equal(t, "Intel(R) Core(TM) i7-8550U CPU @ 1.80GHz", topology.Model)
	assert.Equal(t, 1, topology.Sockets)
	assert.Equal(t, 2, topology.Cores)
	assert.Equal(t, 2, topology.ThreadsPerCore)

	cores, err := prober.CPUCount()
	require.NoError(t, err)
	assert.Equal(t, 2, cores)
}

func TestTopologyLinuxDuplicateCoreIDsAcrossSockets(t *testing.T) {
	sysRoot := t.TempDir()
	cpuBase := filepath.Join(sysRoot, "devices/system/cpu")
	for n, ids := range [][2]string{{"0", "0"}, {"0", "1"}, {"1", "0"}, {"1", "1"}} {
		topologyDir := filepath.Join(cpuBase, fmt.Sprintf("cpu%d", n), "topology")
		writeFile(t, filepath.Join(topologyDir, "physical_package_id"), ids[0])
		writeFile(t, filepath.Join(topologyDir, "core_id"), ids[1])
	}
	writeFile(t, filepath.Join(cpuBase, "cpu0/topology/thread_siblings_list"), "0")

	var topology CPUTopology
	NewProberFrom(t.TempDir(), sysRoot).probeTopologySystem(&topology)
	assert.Equal(t, 2, topology.Sockets)
	assert.Equal(t, 4, topology.Cores)
	assert.Equal(t, 1, topology.ThreadsPerCore)
	assert.Empty(t, topology.Model)
}

func TestTopologyLinuxMissingSysfs(t *testing.T) {
	var topology CPUTopology
	NewProberFrom(t.TempDir(), t.TempDir()).probeTopologySystem(&topology)
	assert.Equal(t, CPUTopology{}, topology)
}

func TestCountCPUList(t *testing.T) {
	tests := []struct {
		list     string
		expected int
	}{
		{"", 0},
		{"0", 1},
		{"0,96", 2},
		{"0-1", 2},
		{"0-1,8-9", 4},
		{"0-3,7", 5},
		{"3-1", 0},
		{"a-b", 0},
		{"0,x", 0},
	}

	for _, tt := range tests {
		t.Run(tt.list, func(t *testing.T) {
			assert.Equal(t, tt.expected, countCPUList(tt.list))
		})
	}
}

func TestIsNumberedEntry(t *testing.T) {
	assert.True(t, isNumberedEntry("cpu0", "cpu"))
	assert.True(t, isNumberedEntry("card12", "card"))
	assert.False(t, isNumberedEntry("cpu", "cpu"))
	assert.False(t, isNumberedEntry("cpufreq", "cpu"))
	assert.False(t, isNumberedEntry("card0-DP-1", "card"))
	assert.False(t, isNumberedEntry("renderD128", "card"))
}
