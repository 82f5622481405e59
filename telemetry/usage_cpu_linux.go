//go:build linux
// +build linux

package telemetry

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type cpuStatLinux struct {
	Name string
	Ptr  *uint64
}

// CPUUsageRaw reads the aggregate cpu line of /proc/stat.
func (p *Prober) CPUUsageRaw() (CPUUsageRaw, error) {
	file, err := os.Open(filepath.Join(p.procRoot, "stat"))
	if err != nil {
		return CPUUsageRaw{}, err
	}
	defer file.Close()

	var cpu CPUUsageRaw
	scanner := bufio.NewScanner(file)
	cpuStats := []cpuStatLinux{
		{"user", &cpu.User},
		{"nice", &cpu.Nice},
		{"system", &cpu.System},
		{"idle", &cpu.Idle},
		{"iowait", &cpu.Iowait},
		{"irq", &cpu.Irq},
		{"softirq", &cpu.Softirq},
		{"steal", &cpu.Steal},
		{"guest", &cpu.Guest},
		{"guest_nice", &cpu.GuestNice},
	}
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return CPUUsageRaw{}, err
		}
		return CPUUsageRaw{}, errors.New("empty stat file")
	}

	fields := strings.Fields(scanner.Text())
	if len(fields) < 5 || fields[0] != "cpu" {
		return CPUUsageRaw{}, fmt.Errorf("unexpected stat line %q", scanner.Text())
	}
	fields = fields[1:]
	if len(fields) > len(cpuStats) {
		fields = fields[:len(cpuStats)]
	}
	cpu.StatCount = len(fields)
	for i, field := range fields {
		value, err := strconv.ParseUint(field, 10, 64)
		if err != nil {
			return CPUUsageRaw{}, fmt.Errorf("parse %s: %w", cpuStats[i].Name, err)
		}
		*cpuStats[i].Ptr = value
		cpu.Total += value
	}
	// included in cpustat[CPUTIME_USER]
	cpu.Total -= cpu.Guest
	// included in cpustat[CPUTIME_NICE]
	cpu.Total -= cpu.GuestNice

	for scanner.Scan() {
		line := scanner.Text()
		if len(line) > 3 && strings.HasPrefix(line, "cpu") && line[3] >= '0' && line[3] <= '9' {
			cpu.CPUCount++
		}
	}
	if err := scanner.Err(); err != nil {
		return CPUUsageRaw{}, err
	}

	return cpu, nil
}
