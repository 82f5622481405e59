package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/LamkasDev/sleepy-telemetry/telemetry"
	"github.com/dustin/go-humanize"
	"github.com/jwalton/gchalk"
)

func reportLine(w io.Writer, label string, format string, v ...any) {
	fmt.Fprintf(w, "%s %s\n", gchalk.Bold(fmt.Sprintf("%-22s", label+":")), fmt.Sprintf(format, v...))
}

func reportCount(count int, err error) string {
	if err != nil {
		return gchalk.Red("unknown") + " (" + err.Error() + ")"
	}
	return fmt.Sprintf("%d", count)
}

// PrintReport writes a one-shot summary of the host followed by a CPU
// usage track of trackPeriod.
func PrintReport(ctx context.Context, w io.Writer, collector *telemetry.Collector, trackPeriod time.Duration) error {
	reportLine(w, "Number of CPUs", "%s", reportCount(collector.CPUCount()))
	reportLine(w, "Number of CPU threads", "%s", reportCount(collector.CPUThreadCount()))
	reportLine(w, "Configured CPUs", "%s", reportCount(telemetry.GetCPUConfiguredCount()))
	ticks, err := telemetry.GetClockTicks()
	reportLine(w, "Clock ticks", "%s", reportCount(int(ticks), err))

	topology := collector.CPUTopology()
	if topology.Model != "" {
		reportLine(w, "CPU model", "%s", topology.Model)
	}
	reportLine(w, "CPU sockets", "%d (%d threads per core)", topology.Sockets, topology.ThreadsPerCore)

	gpus, err := collector.GPUs()
	reportLine(w, "Number of GPUs", "%s", reportCount(len(gpus), err))
	reportLine(w, "Number of GPU cores", "%s", reportCount(collector.GPUCoreCount()))
	reportLine(w, "Number of GPU threads", "%s", reportCount(collector.GPUThreadCount()))
	for _, gpu := range gpus {
		memory := "unknown memory"
		if gpu.MemoryTotal > 0 {
			memory = humanize.IBytes(gpu.MemoryTotal)
		}
		reportLine(w, fmt.Sprintf("GPU %d", gpu.Index), "%s %s [%s] %s", gpu.Vendor, gpu.Name, gpu.PCISlot, memory)
	}

	memory, err := collector.Memory()
	if err != nil {
		reportLine(w, "Memory", "%s (%s)", gchalk.Red("unknown"), err.Error())
	} else {
		reportLine(w, "Memory", "%s / %s (%.1f%%)", humanize.IBytes(memory.Used), humanize.IBytes(memory.Total), memory.UsedPercent())
		reportLine(w, "Swap", "%s / %s", humanize.IBytes(memory.SwapUsed), humanize.IBytes(memory.SwapTotal))
	}

	track, err := collector.TrackCPU(ctx, trackPeriod)
	if err != nil {
		return fmt.Errorf("track cpu usage: %w", err)
	}
	PrintTrack(w, track)
	return nil
}

// PrintTrack writes the summary of a usage track.
func PrintTrack(w io.Writer, track telemetry.UsageTrack) {
	label := fmt.Sprintf("%s usage (%v)", track.Target, track.End.Sub(track.Start).Round(time.Millisecond))
	reportLine(w, label, "%s avg, %.1f%% min, %.1f%% max over %d readings", colorPercent(track.Average), track.Min, track.Max, track.Count)
	if track.Failures > 0 {
		reportLine(w, "Failed readings", "%d", track.Failures)
	}
}

// WatchUsage prints a reading of sampler every interval until ctx is done.
func WatchUsage(ctx context.Context, w io.Writer, target string, sampler telemetry.Sampler, interval time.Duration) {
	for reading := range telemetry.Stream(ctx, sampler, interval, nil) {
		fmt.Fprintf(w, "[%s] %s %s\n", reading.Time.Format("15:04:05.000"), target, colorPercent(reading.Value))
	}
}

// RunWatch is WatchUsage for a collector target. Unknown targets fail with
// telemetry.ErrUnknownTarget before anything is printed.
func RunWatch(ctx context.Context, w io.Writer, collector *telemetry.Collector, target string, interval time.Duration) error {
	sampler, err := collector.Sampler(target)
	if err != nil {
		return err
	}
	WatchUsage(ctx, w, target, sampler, interval)
	return nil
}

func colorPercent(value float32) string {
	text := fmt.Sprintf("%5.1f%%", value)
	switch {
	case value >= 90:
		return gchalk.Red(text)
	case value >= 60:
		return gchalk.Yellow(text)
	default:
		return gchalk.Green(text)
	}
}
