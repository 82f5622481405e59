package telemetry

// MemoryUsage is physical and swap memory in bytes.
type MemoryUsage struct {
	Total     uint64 `json:"total"`
	Used      uint64 `json:"used"`
	SwapTotal uint64 `json:"swapTotal"`
	SwapUsed  uint64 `json:"swapUsed"`
}

// UsedPercent returns Used as a percentage of Total, 0 when Total is unknown.
func (m MemoryUsage) UsedPercent() float32 {
	if m.Total == 0 {
		return 0
	}
	return clampPercent(float32(m.Used) / float32(m.Total) * 100)
}

// SwapUsedPercent returns SwapUsed as a percentage of SwapTotal.
func (m MemoryUsage) SwapUsedPercent() float32 {
	if m.SwapTotal == 0 {
		return 0
	}
	return clampPercent(float32(m.SwapUsed) / float32(m.SwapTotal) * 100)
}
