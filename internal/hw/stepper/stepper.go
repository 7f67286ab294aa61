package stepper

import (
	"fmt"
	"time"

	"github.com/cjeanneret/focuser/internal/debug"
	"github.com/cjeanneret/focuser/internal/hw/gpio"
)

// Pin labels as reported in logs and client responses.
const (
	LabelDir    = "DIR"
	LabelStep   = "STEP"
	LabelEnable = "ENBL"
)

// Config holds the hardware configuration for a STEP/DIR driver (A4988 style).
type Config struct {
	StepPin   int
	DirPin    int
	EnablePin int // Active LOW (LOW=enabled, HIGH=disabled).
}

// Stepper emits pulse trains on the STEP line. The ENABLE line is held
// high (driver disabled) except while a pulse train is running.
type Stepper struct {
	dir    *gpio.Pin
	step   *gpio.Pin
	enable *gpio.Pin

	position int64 // pulses, +1 per pulse with DIR high, -1 with DIR low
}

// NewStepper configures the three pins as outputs: STEP and DIR low,
// ENABLE high so the motor is unpowered at idle.
func NewStepper(g gpio.Driver, cfg Config) (*Stepper, error) {
	dir, err := gpio.NewOutputPin(g, cfg.DirPin, LabelDir, gpio.Low)
	if err != nil {
		return nil, err
	}
	step, err := gpio.NewOutputPin(g, cfg.StepPin, LabelStep, gpio.Low)
	if err != nil {
		return nil, err
	}
	enable, err := gpio.NewOutputPin(g, cfg.EnablePin, LabelEnable, gpio.High)
	if err != nil {
		return nil, err
	}
	return &Stepper{dir: dir, step: step, enable: enable}, nil
}

// Execute runs one move synchronously: enable the driver, set DIR, emit
// pulses STEP cycles of 2*delay each, then disable the driver again.
// There is no way to interrupt a running move. ENABLE is restored even
// when a write fails part way through.
func (s *Stepper) Execute(dirLevel gpio.Level, pulses int, delay time.Duration) (err error) {
	if err := s.Enable(); err != nil {
		return err
	}
	defer func() {
		if derr := s.Disable(); derr != nil && err == nil {
			err = derr
		}
	}()

	if err := s.dir.Write(dirLevel); err != nil {
		return err
	}

	debug.Printf("Stepper: %d pulses, DIR=%d, %v per half-cycle", pulses, dirLevel.Int(), delay)

	delta := int64(-1)
	if dirLevel == gpio.High {
		delta = 1
	}
	for i := 0; i < pulses; i++ {
		if err := s.stepPulse(delay); err != nil {
			return fmt.Errorf("pulse %d/%d: %w", i+1, pulses, err)
		}
		s.position += delta
	}
	return nil
}

func (s *Stepper) stepPulse(delay time.Duration) error {
	if err := s.step.Set(); err != nil {
		return err
	}
	time.Sleep(delay)
	if err := s.step.Clear(); err != nil {
		return err
	}
	time.Sleep(delay)
	return nil
}

// Enable turns on the motor driver (ENABLE=LOW). Motor holds position.
func (s *Stepper) Enable() error {
	return s.enable.Clear()
}

// Disable turns off the motor driver (ENABLE=HIGH). Motor freewheels.
func (s *Stepper) Disable() error {
	return s.enable.Set()
}

// Position returns the pulse counter. It is diagnostic only: nothing
// limits travel against it.
func (s *Stepper) Position() int64 {
	return s.position
}

// Pins returns the DIR, STEP and ENABLE pins in that order, which is also
// the index order used by the TOG command.
func (s *Stepper) Pins() []*gpio.Pin {
	return []*gpio.Pin{s.dir, s.step, s.enable}
}
