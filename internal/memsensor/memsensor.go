// Package memsensor reads host memory pressure for the eviction loop (§4.5).
//
// It replaces the original daemon's /proc/meminfo parser with
// gopsutil/v3/mem, the same library the teacher uses to size connection
// pools from container memory limits (cgroup.go).
package memsensor

import (
	"context"

	"github.com/shirou/gopsutil/v3/mem"
)

// Reading is a single memory sample.
type Reading struct {
	TotalBytes     uint64
	AvailableBytes uint64
}

// PressureBp returns (1 - available/total) in basis points, clamped to
// [0, 10000]. A zero total (sensor failure) reports zero pressure — the
// eviction loop fails open rather than evicting on bad data.
func (r Reading) PressureBp() uint16 {
	if r.TotalBytes == 0 {
		return 0
	}
	if r.AvailableBytes >= r.TotalBytes {
		return 0
	}
	used := r.TotalBytes - r.AvailableBytes
	bp := used * 10000 / r.TotalBytes
	if bp > 10000 {
		bp = 10000
	}
	return uint16(bp)
}

// Pressure returns the same quantity as PressureBp, as a float fraction.
func (r Reading) Pressure() float64 {
	if r.TotalBytes == 0 || r.AvailableBytes >= r.TotalBytes {
		return 0
	}
	p := float64(r.TotalBytes-r.AvailableBytes) / float64(r.TotalBytes)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// Sensor reads host memory state. It is an interface so the eviction loop
// can be tested against a fake without real /proc access.
type Sensor interface {
	Read(ctx context.Context) (Reading, error)
}

// HostSensor reads real host memory via gopsutil.
type HostSensor struct{}

// Read implements Sensor.
func (HostSensor) Read(ctx context.Context) (Reading, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Reading{}, err
	}
	return Reading{TotalBytes: vm.Total, AvailableBytes: vm.Available}, nil
}
