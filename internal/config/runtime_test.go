package config_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/adred-codev/localcached/internal/config"
)

func TestRuntimeConfigInitialValue(t *testing.T) {
	rc := config.NewRuntimeConfig(8500)
	require.Equal(t, uint16(8500), rc.PressureHotBp())
}

func TestRuntimeConfigClampsInitialToAbsoluteCeiling(t *testing.T) {
	rc := config.NewRuntimeConfig(50000)
	require.Equal(t, uint16(10000), rc.PressureHotBp())
}

func TestRuntimeConfigSetReturnsOld(t *testing.T) {
	rc := config.NewRuntimeConfig(8500)
	old := rc.SetPressureHotBp(9000)
	require.Equal(t, uint16(8500), old)
	require.Equal(t, uint16(9000), rc.PressureHotBp())
}

func TestRuntimeConfigSetterOnlyClampsToAbsoluteCeiling(t *testing.T) {
	// SetPressureHotBp itself doesn't enforce the lower 8500bp business
	// ceiling — callers (the SET_CONFIG handler) are responsible for that.
	rc := config.NewRuntimeConfig(8500)
	rc.SetPressureHotBp(9500)
	require.Equal(t, uint16(9500), rc.PressureHotBp())
}

func TestRuntimeConfigSetClampsAboveAbsoluteCeiling(t *testing.T) {
	rc := config.NewRuntimeConfig(8500)
	rc.SetPressureHotBp(12000)
	require.Equal(t, uint16(10000), rc.PressureHotBp())
}

func TestMaxPressureHotBpConstant(t *testing.T) {
	require.Equal(t, uint16(8500), config.MaxPressureHotBp)
}
