package server

import "time"

// nowMs returns the current wall-clock time in milliseconds, the unit
// every wire timestamp and TTL field uses (§4.1).
func nowMs() uint64 {
	return uint64(time.Now().UnixMilli())
}

func durationFromMs(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
