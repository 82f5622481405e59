package telemetry

import (
	"os"
	"strconv"
	"strings"
)

// Prober reads host information from the proc and sys filesystems. The
// roots default to "/proc" and "/sys"; tests point them at synthetic trees.
// On platforms without those filesystems the roots are unused.
type Prober struct {
	procRoot string
	sysRoot  string
}

// NewProber returns a Prober reading the real /proc and /sys.
func NewProber() *Prober {
	return &Prober{procRoot: "/proc", sysRoot: "/sys"}
}

// NewProberFrom returns a Prober reading from the given roots.
func NewProberFrom(procRoot, sysRoot string) *Prober {
	return &Prober{procRoot: procRoot, sysRoot: sysRoot}
}

// readSysfsString reads a single-line sysfs file. Returns "" on any error.
func readSysfsString(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// readSysfsUint reads an unsigned integer from a sysfs file. Returns 0 on error.
func readSysfsUint(path string) uint64 {
	value := readSysfsString(path)
	if value == "" {
		return 0
	}
	result, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0
	}
	return result
}

// isNumberedEntry reports whether name is prefix followed by only digits,
// e.g. "cpu12" or "card0" but not "cpufreq" or "card0-DP-1".
func isNumberedEntry(name, prefix string) bool {
	if !strings.HasPrefix(name, prefix) {
		return false
	}
	suffix := name[len(prefix):]
	if len(suffix) == 0 {
		return false
	}
	for _, character := range suffix {
		if character < '0' || character > '9' {
			return false
		}
	}
	return true
}
