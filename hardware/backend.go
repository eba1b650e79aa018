// Package hardware defines the capability interface between the control
// service and the physical car (PCA9685 motor/servo outputs, camera, battery
// sensor), with a simulated implementation for development and a GStreamer
// camera for real capture. The backend is selected once at construction;
// call sites never branch on hardware availability.
package hardware

import "time"

// Wheel identifies one of the four drive motors.
type Wheel int

const (
	// WheelFrontLeft is the front-left drive motor
	WheelFrontLeft Wheel = iota
	// WheelFrontRight is the front-right drive motor
	WheelFrontRight
	// WheelRearLeft is the rear-left drive motor
	WheelRearLeft
	// WheelRearRight is the rear-right drive motor
	WheelRearRight
)

// Wheels lists all drive motors in a stable order.
var Wheels = []Wheel{WheelFrontLeft, WheelFrontRight, WheelRearLeft, WheelRearRight}

// String returns the string representation of a wheel.
func (w Wheel) String() string {
	switch w {
	case WheelFrontLeft:
		return "front_left"
	case WheelFrontRight:
		return "front_right"
	case WheelRearLeft:
		return "rear_left"
	case WheelRearRight:
		return "rear_right"
	default:
		return "unknown"
	}
}

// IsLeft reports whether the wheel is on the left side of the chassis.
// Differential steering reverses one side relative to the other.
func (w Wheel) IsLeft() bool {
	return w == WheelFrontLeft || w == WheelRearLeft
}

// Polarity is the drive direction applied to a motor's H-bridge inputs.
type Polarity int

const (
	// PolarityIdle releases the motor (both bridge inputs low)
	PolarityIdle Polarity = iota
	// PolarityForward drives the motor forward
	PolarityForward
	// PolarityReverse drives the motor in reverse
	PolarityReverse
)

// String returns the string representation of a polarity.
func (p Polarity) String() string {
	switch p {
	case PolarityIdle:
		return "idle"
	case PolarityForward:
		return "forward"
	case PolarityReverse:
		return "reverse"
	default:
		return "unknown"
	}
}

// MaxDuty is the full-scale PWM duty value of the PCA9685 driver.
const MaxDuty = 4095

// Servo pulse range in microseconds for a standard 50 Hz hobby servo.
const (
	ServoMinPulseUS = 1000
	ServoMaxPulseUS = 2000
)

// ServoChannel identifies a PCA9685 servo output.
type ServoChannel int

const (
	// ServoPan is the gimbal pan servo channel
	ServoPan ServoChannel = 4
	// ServoTilt is the gimbal tilt servo channel
	ServoTilt ServoChannel = 5
)

// BatteryTelemetry is a single reading from the battery sensor.
type BatteryTelemetry struct {
	Level    float64   `json:"level"`   // charge percentage, 0-100
	Voltage  float64   `json:"voltage"` // volts
	Current  float64   `json:"current"` // amps; negative while charging
	Power    float64   `json:"power"`   // watts
	Charging bool      `json:"charging"`
	ReadAt   time.Time `json:"read_at"`
}

// MotorDriver drives the four wheel motors.
type MotorDriver interface {
	// SetMotorDuty applies polarity and a duty value in [0, MaxDuty] to one wheel.
	SetMotorDuty(wheel Wheel, polarity Polarity, duty int) error
}

// ServoDriver positions the gimbal servos.
type ServoDriver interface {
	// SetServoPulse applies a pulse width in microseconds to a servo channel.
	SetServoPulse(channel ServoChannel, pulseUS int) error
}

// Camera captures encoded video frames.
type Camera interface {
	// CaptureFrame returns the latest encoded frame (typically JPEG).
	CaptureFrame() ([]byte, error)
}

// BatterySensor reads battery telemetry.
type BatterySensor interface {
	ReadTelemetry() (BatteryTelemetry, error)
}

// Backend is the full capability surface the control service depends on.
type Backend interface {
	MotorDriver
	ServoDriver
	Camera
	BatterySensor
}
