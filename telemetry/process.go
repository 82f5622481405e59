package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shirou/gopsutil/v4/process"
	"golang.org/x/exp/maps"
)

// Process is a running process. Status is one of gopsutil's status names
// ("running", "sleep", "stop", "idle", "zombie", "wait", "lock").
type Process struct {
	Pid    int32  `json:"pid"`
	Ppid   int32  `json:"ppid"`
	Name   string `json:"name"`
	Status string `json:"status"`
	Memory uint64 `json:"memory"`
	Swap   uint64 `json:"swap"`
}

// ProcessGroup aggregates processes sharing an executable name.
type ProcessGroup struct {
	Name      string `json:"name"`
	Instances int    `json:"instances"`
	Memory    uint64 `json:"memory"`
	Swap      uint64 `json:"swap"`
}

func describeProcess(ctx context.Context, handle *process.Process) (Process, error) {
	name, err := handle.NameWithContext(ctx)
	if err != nil {
		return Process{}, err
	}
	described := Process{Pid: handle.Pid, Name: name}
	described.Ppid, _ = handle.PpidWithContext(ctx)
	if status, err := handle.StatusWithContext(ctx); err == nil && len(status) > 0 {
		described.Status = status[0]
	}
	if memory, err := handle.MemoryInfoWithContext(ctx); err == nil && memory != nil {
		described.Memory = memory.RSS
		described.Swap = memory.Swap
	}
	return described, nil
}

// GetProcesses lists every process visible to the caller, sorted by pid.
// Processes that exit while being read are left out.
func GetProcesses(ctx context.Context) ([]Process, error) {
	handles, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, &QueryError{Query: "process list", Err: err}
	}

	processes := make([]Process, 0, len(handles))
	for _, handle := range handles {
		described, err := describeProcess(ctx, handle)
		if err != nil {
			continue
		}
		processes = append(processes, described)
	}
	sort.Slice(processes, func(i, j int) bool {
		return processes[i].Pid < processes[j].Pid
	})
	return processes, nil
}

// GetProcess returns the process with the given pid, or ErrProcessNotFound.
func GetProcess(ctx context.Context, pid int32) (Process, error) {
	exists, err := process.PidExistsWithContext(ctx, pid)
	if err != nil {
		return Process{}, &QueryError{Query: fmt.Sprintf("process %d", pid), Err: err}
	}
	if !exists {
		return Process{}, fmt.Errorf("pid %d: %w", pid, ErrProcessNotFound)
	}

	handle, err := process.NewProcessWithContext(ctx, pid)
	if errors.Is(err, process.ErrorProcessNotRunning) {
		return Process{}, fmt.Errorf("pid %d: %w", pid, ErrProcessNotFound)
	}
	if err != nil {
		return Process{}, &QueryError{Query: fmt.Sprintf("process %d", pid), Err: err}
	}
	described, err := describeProcess(ctx, handle)
	if err != nil {
		return Process{}, &QueryError{Query: fmt.Sprintf("process %d", pid), Err: err}
	}
	return described, nil
}

// GetParentProcess returns the parent of pid. Processes without a parent
// (pid 1, kernel threads) yield ErrNoParent.
func GetParentProcess(ctx context.Context, pid int32) (Process, error) {
	return parentProcess(ctx, pid, GetProcess)
}

func parentProcess(ctx context.Context, pid int32, lookup func(context.Context, int32) (Process, error)) (Process, error) {
	child, err := lookup(ctx, pid)
	if err != nil {
		return Process{}, err
	}
	if child.Ppid <= 0 {
		return Process{}, fmt.Errorf("pid %d: %w", pid, ErrNoParent)
	}
	return lookup(ctx, child.Ppid)
}

// GroupProcesses sums memory per executable name, largest first.
func GroupProcesses(processes []Process) []ProcessGroup {
	groups := make(map[string]ProcessGroup)
	for _, proc := range processes {
		group, ok := groups[proc.Name]
		if !ok {
			group = ProcessGroup{Name: proc.Name}
		}
		group.Instances++
		group.Memory += proc.Memory
		group.Swap += proc.Swap
		groups[proc.Name] = group
	}

	result := maps.Values(groups)
	sort.Slice(result, func(i, j int) bool {
		if result[i].Memory != result[j].Memory {
			return result[i].Memory > result[j].Memory
		}
		return result[i].Name < result[j].Name
	})
	return result
}
