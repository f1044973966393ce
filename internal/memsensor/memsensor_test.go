package memsensor_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/adred-codev/localcached/internal/memsensor"
)

func TestPressureBp(t *testing.T) {
	tests := []struct {
		name      string
		total     uint64
		available uint64
		want      uint16
	}{
		{"half used", 1000, 500, 5000},
		{"fully available", 1000, 1000, 0},
		{"fully used", 1000, 0, 10000},
		{"85 percent used", 10000, 1500, 8500},
		{"zero total fails open", 0, 0, 0},
		{"available exceeds total", 1000, 2000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := memsensor.Reading{TotalBytes: tt.total, AvailableBytes: tt.available}
			require.Equal(t, tt.want, r.PressureBp())
		})
	}
}

func TestPressureFractionMatchesBp(t *testing.T) {
	r := memsensor.Reading{TotalBytes: 8 << 30, AvailableBytes: 2 << 30}
	require.InDelta(t, 0.75, r.Pressure(), 1e-9)
	require.Equal(t, uint16(7500), r.PressureBp())
}

func TestPressureZeroTotal(t *testing.T) {
	require.Zero(t, memsensor.Reading{}.Pressure())
}
