package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func ptrFloat(v float64) *float64 { return &v }
func ptrInt(v int) *int           { return &v }

func TestValidateLayoutDuplicateChannelV2(t *testing.T) {
	sensors := []*Sensor{
		{ID: 1, Channel: 0},
		{ID: 2, Channel: 0},
	}
	err := ValidateLayout(sensors, 8, true)
	require.ErrorIs(t, err, ErrDuplicateChannel)
}

func TestValidateLayoutDuplicateChannelAllowedOnV3(t *testing.T) {
	sensors := []*Sensor{
		{ID: 1, Channel: 0},
		{ID: 2, Channel: 0},
	}
	err := ValidateLayout(sensors, 8, false)
	require.NoError(t, err)
}

func TestValidateLayoutIgnoresDeletedAndUnassigned(t *testing.T) {
	sensors := []*Sensor{
		{ID: 1, Channel: 0, Deleted: true},
		{ID: 2, Channel: 0},
		{ID: 3, Channel: UnassignedChannel},
	}
	require.NoError(t, ValidateLayout(sensors, 1, true))
}

func TestValidateLayoutTooManySensors(t *testing.T) {
	sensors := []*Sensor{{ID: 1, Channel: 0}, {ID: 2, Channel: 1}}
	require.ErrorIs(t, ValidateLayout(sensors, 1, false), ErrTooManySensors)
}

func TestValidateCalibration(t *testing.T) {
	sensors := []*Sensor{
		{ID: 1, Channel: 0, ReferenceValue: ptrFloat(1.5)},
		{ID: 2, Channel: UnassignedChannel},
	}
	require.NoError(t, ValidateCalibration(sensors))

	sensors = append(sensors, &Sensor{ID: 3, Channel: 1})
	require.ErrorIs(t, ValidateCalibration(sensors), ErrUncalibrated)
}

func TestSensorWindowSizeInstantWhenNoPeriod(t *testing.T) {
	s := &Sensor{}
	require.Equal(t, 1, s.WindowSize(10))
	require.Equal(t, 100, s.EffectiveThreshold())
}

func TestSensorWindowSizeRoundsUp(t *testing.T) {
	s := &Sensor{MonitorPeriod: ptrInt(2), MonitorThreshold: ptrInt(80)}
	require.Equal(t, 3, s.WindowSize(1.5))
	require.Equal(t, 80, s.EffectiveThreshold())
}
