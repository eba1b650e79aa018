package hardware

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilesmith9879/new-car/errors"
)

func TestSim_MotorRegisters(t *testing.T) {
	sim := NewSim()

	require.NoError(t, sim.SetMotorDuty(WheelFrontLeft, PolarityForward, 2048))
	pol, duty := sim.MotorState(WheelFrontLeft)
	assert.Equal(t, PolarityForward, pol)
	assert.Equal(t, 2048, duty)
	assert.False(t, sim.AllStopped())

	for _, w := range Wheels {
		require.NoError(t, sim.SetMotorDuty(w, PolarityIdle, 0))
	}
	assert.True(t, sim.AllStopped())
}

func TestSim_DutyValidation(t *testing.T) {
	sim := NewSim()
	err := sim.SetMotorDuty(WheelFrontLeft, PolarityForward, MaxDuty+1)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidArgument(err))

	err = sim.SetMotorDuty(WheelFrontLeft, PolarityForward, -1)
	assert.Error(t, err)
}

func TestSim_ServoPulseValidation(t *testing.T) {
	sim := NewSim()
	require.NoError(t, sim.SetServoPulse(ServoPan, 1500))
	assert.Equal(t, 1500, sim.ServoPulse(ServoPan))

	err := sim.SetServoPulse(ServoTilt, 900)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidArgument(err))
	assert.Equal(t, 0, sim.ServoPulse(ServoTilt))
}

func TestSim_CaptureFrame(t *testing.T) {
	sim := NewSim()

	a, err := sim.CaptureFrame()
	require.NoError(t, err)
	b, err := sim.CaptureFrame()
	require.NoError(t, err)

	// JPEG envelope markers
	assert.Equal(t, []byte{0xFF, 0xD8}, a[:2])
	assert.Equal(t, []byte{0xFF, 0xD9}, a[len(a)-2:])
	// Sequence number makes frames distinct
	assert.NotEqual(t, a, b)
}

func TestSim_CaptureFault(t *testing.T) {
	sim := NewSim()
	sim.FailCapture(true)
	_, err := sim.CaptureFrame()
	require.Error(t, err)
	assert.True(t, errors.IsHardwareFailure(err))
}

func TestSim_BatteryDischarge(t *testing.T) {
	sim := NewSim()

	first, err := sim.ReadTelemetry()
	require.NoError(t, err)
	assert.InDelta(t, 100, first.Level, 0.1)
	assert.Greater(t, first.Current, 0.0)
	assert.InDelta(t, simVoltageMax, first.Voltage, 0.1)

	second, err := sim.ReadTelemetry()
	require.NoError(t, err)
	assert.LessOrEqual(t, second.Level, first.Level)
	assert.Greater(t, second.Voltage, simVoltageMin)
}

func TestWheel_Sides(t *testing.T) {
	assert.True(t, WheelFrontLeft.IsLeft())
	assert.True(t, WheelRearLeft.IsLeft())
	assert.False(t, WheelFrontRight.IsLeft())
	assert.False(t, WheelRearRight.IsLeft())
}
