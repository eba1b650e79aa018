package hardware

import (
	"encoding/binary"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/smilesmith9879/new-car/errors"
)

// Battery model constants for the simulated pack (matches the 3S pack on the
// real car: 12.6 V full, 9.0 V cutoff, ~10 Ah).
const (
	simVoltageMax = 12.6
	simVoltageMin = 9.0

	// Discharge of roughly 10% per hour under base load.
	simDischargePerSec = 0.0028

	simBaseCurrentA = 0.5
)

// Sim is an in-memory hardware backend. Motor duties and servo pulses land
// in registers that tests can inspect; frames and battery readings are
// synthesized.
type Sim struct {
	mu sync.Mutex

	motorDuty     map[Wheel]int
	motorPolarity map[Wheel]Polarity
	servoPulse    map[ServoChannel]int

	frameSeq uint64

	battery  BatteryTelemetry
	lastRead time.Time

	failCapture bool

	rng *rand.Rand
}

// NewSim creates a simulated backend with a full battery and all actuators idle.
func NewSim() *Sim {
	now := time.Now()
	return &Sim{
		motorDuty:     make(map[Wheel]int),
		motorPolarity: make(map[Wheel]Polarity),
		servoPulse:    make(map[ServoChannel]int),
		battery: BatteryTelemetry{
			Level:   100,
			Voltage: simVoltageMax,
			ReadAt:  now,
		},
		lastRead: now,
		rng:      rand.New(rand.NewSource(now.UnixNano())),
	}
}

// SetMotorDuty records the requested polarity and duty for a wheel.
func (s *Sim) SetMotorDuty(wheel Wheel, polarity Polarity, duty int) error {
	if duty < 0 || duty > MaxDuty {
		return errors.WrapInvalidArgument(
			fmt.Errorf("duty %d outside [0,%d]", duty, MaxDuty),
			"hardware-sim", "SetMotorDuty", "duty validation")
	}
	s.mu.Lock()
	s.motorDuty[wheel] = duty
	s.motorPolarity[wheel] = polarity
	s.mu.Unlock()
	return nil
}

// SetServoPulse records the requested pulse width for a servo channel.
func (s *Sim) SetServoPulse(channel ServoChannel, pulseUS int) error {
	if pulseUS < ServoMinPulseUS || pulseUS > ServoMaxPulseUS {
		return errors.WrapInvalidArgument(
			fmt.Errorf("pulse %dus outside [%d,%d]", pulseUS, ServoMinPulseUS, ServoMaxPulseUS),
			"hardware-sim", "SetServoPulse", "pulse validation")
	}
	s.mu.Lock()
	s.servoPulse[channel] = pulseUS
	s.mu.Unlock()
	return nil
}

// CaptureFrame synthesizes an encoded frame. The payload carries a JPEG
// SOI/EOI envelope with a sequence number and timestamp so consumers see
// distinct, well-formed-looking frames.
func (s *Sim) CaptureFrame() ([]byte, error) {
	s.mu.Lock()
	fail := s.failCapture
	s.frameSeq++
	seq := s.frameSeq
	s.mu.Unlock()

	if fail {
		return nil, errors.WrapHardwareFailure(
			fmt.Errorf("simulated capture fault"),
			"hardware-sim", "CaptureFrame", "frame capture")
	}

	frame := make([]byte, 0, 32)
	frame = append(frame, 0xFF, 0xD8) // JPEG SOI
	frame = binary.BigEndian.AppendUint64(frame, seq)
	frame = binary.BigEndian.AppendUint64(frame, uint64(time.Now().UnixNano()))
	frame = append(frame, 0xFF, 0xD9) // JPEG EOI
	return frame, nil
}

// ReadTelemetry advances the discharge model by the elapsed wall time and
// returns the new reading.
func (s *Sim) ReadTelemetry() (BatteryTelemetry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(s.lastRead).Seconds()
	s.lastRead = now

	s.battery.Current = simBaseCurrentA * (0.8 + 0.4*s.rng.Float64())
	if !s.battery.Charging {
		s.battery.Level -= simDischargePerSec * elapsed
		if s.battery.Level < 0 {
			s.battery.Level = 0
		}
	}
	s.battery.Voltage = simVoltageMin + (simVoltageMax-simVoltageMin)*s.battery.Level/100
	s.battery.Power = s.battery.Voltage * s.battery.Current
	s.battery.ReadAt = now

	return s.battery, nil
}

// FailCapture makes CaptureFrame return an error while set; used by tests
// to exercise the streaming and broadcast loops' continue-on-error
// contract.
func (s *Sim) FailCapture(fail bool) {
	s.mu.Lock()
	s.failCapture = fail
	s.mu.Unlock()
}

// MotorState returns the recorded polarity and duty for a wheel.
func (s *Sim) MotorState(wheel Wheel) (Polarity, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.motorPolarity[wheel], s.motorDuty[wheel]
}

// ServoPulse returns the recorded pulse width for a servo channel, or 0 if
// the channel was never driven.
func (s *Sim) ServoPulse(channel ServoChannel) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.servoPulse[channel]
}

// AllStopped reports whether every wheel is at zero duty.
func (s *Sim) AllStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range Wheels {
		if s.motorDuty[w] != 0 {
			return false
		}
	}
	return true
}

var _ Backend = (*Sim)(nil)
