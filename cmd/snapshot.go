package main

import (
	"sync"
	"time"

	"github.com/LamkasDev/sleepy-telemetry/telemetry"
)

type HandlerSnapshot struct {
	Timestamp time.Time
	CPUUsage  telemetry.CPUUsage
	GPUs      []telemetry.GPU
}

// InitSnapshot primes the CPU baseline so the first stats reply covers the
// time since login rather than since boot.
func InitSnapshot(handler *Handler) {
	handler.LastSnapshot.Timestamp = time.Now()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		usage, err := handler.Collector.CPUUsage()
		if err != nil {
			SleepyWarnLn("Failed to read CPU usage! (%s)", err.Error())
			return
		}
		handler.LastSnapshot.CPUUsage = usage
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		gpus, err := handler.Collector.GPUs()
		if err != nil {
			SleepyWarnLn("Failed to enumerate GPUs! (%s)", err.Error())
			return
		}
		handler.LastSnapshot.GPUs = gpus
	}()
	wg.Wait()

	elapsed := time.Since(handler.LastSnapshot.Timestamp)
	SleepyLogLn("Built initial snapshot! (took %v ms, %d GPUs)", elapsed.Milliseconds(), len(handler.LastSnapshot.GPUs))
}
