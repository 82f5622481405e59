package main

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"

	"github.com/LamkasDev/sleepy-telemetry/telemetry"
)

func GetMD5Hash(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])
}

// GetGPUID returns a stable identifier for gpu, scoped to the session so two
// hosts with identical hardware do not collide.
func GetGPUID(sessionID string, gpu telemetry.GPU) string {
	switch {
	case gpu.UUID != "":
		return GetMD5Hash(sessionID + gpu.UUID)
	case gpu.PCISlot != "":
		return GetMD5Hash(sessionID + gpu.PCISlot)
	default:
		return GetMD5Hash(sessionID + strconv.Itoa(gpu.Index) + gpu.Name)
	}
}
