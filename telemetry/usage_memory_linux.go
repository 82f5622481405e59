//go:build linux
// +build linux

package telemetry

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type memoryLinuxRaw struct {
	Total, Free, Available, Buffers, Cached, SwapTotal, SwapFree uint64
	MemAvailableEnabled                                          bool
}

// MemoryUsage reads /proc/meminfo. Used prefers MemAvailable (kernels 3.14+)
// and falls back to free + buffers + cached.
func (p *Prober) MemoryUsage() (MemoryUsage, error) {
	file, err := os.Open(filepath.Join(p.procRoot, "meminfo"))
	if err != nil {
		return MemoryUsage{}, err
	}
	defer file.Close()

	var memory memoryLinuxRaw
	memStats := []struct {
		Name string
		Ptr  *uint64
	}{
		{"MemTotal", &memory.Total},
		{"MemFree", &memory.Free},
		{"MemAvailable", &memory.Available},
		{"Buffers", &memory.Buffers},
		{"Cached", &memory.Cached},
		{"SwapTotal", &memory.SwapTotal},
		{"SwapFree", &memory.SwapFree},
	}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		name, rest, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		for _, stat := range memStats {
			if stat.Name != name {
				continue
			}
			value := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(rest), "kB"))
			if v, err := strconv.ParseUint(value, 10, 64); err == nil {
				*stat.Ptr = v * 1024
			}
		}
		if name == "MemAvailable" {
			memory.MemAvailableEnabled = true
		}
	}
	if err := scanner.Err(); err != nil {
		return MemoryUsage{}, err
	}
	if memory.Total == 0 {
		return MemoryUsage{}, errors.New("meminfo has no MemTotal")
	}

	usage := MemoryUsage{Total: memory.Total, SwapTotal: memory.SwapTotal}
	if memory.SwapTotal >= memory.SwapFree {
		usage.SwapUsed = memory.SwapTotal - memory.SwapFree
	}
	free := memory.Free + memory.Buffers + memory.Cached
	if memory.MemAvailableEnabled {
		free = memory.Available
	}
	if memory.Total >= free {
		usage.Used = memory.Total - free
	}
	return usage, nil
}
