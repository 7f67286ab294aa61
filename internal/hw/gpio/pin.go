package gpio

import "fmt"

// Pin is one output line together with its last written level and a
// short label used in logs and client responses.
type Pin struct {
	ID    int
	Label string

	drv   Driver
	state Level
}

// NewOutputPin configures id as an output and drives it to initial.
func NewOutputPin(drv Driver, id int, label string, initial Level) (*Pin, error) {
	if err := drv.SetupPin(id, Output); err != nil {
		return nil, fmt.Errorf("setup %s pin %d: %w", label, id, err)
	}
	p := &Pin{ID: id, Label: label, drv: drv}
	if err := p.Write(initial); err != nil {
		return nil, err
	}
	return p, nil
}

// Write drives the pin and updates the cached level.
func (p *Pin) Write(level Level) error {
	if err := p.drv.WritePin(p.ID, level); err != nil {
		return fmt.Errorf("write %s pin %d: %w", p.Label, p.ID, err)
	}
	p.state = level
	return nil
}

// Set drives the pin high.
func (p *Pin) Set() error { return p.Write(High) }

// Clear drives the pin low.
func (p *Pin) Clear() error { return p.Write(Low) }

// Toggle inverts the cached level and writes it.
func (p *Pin) Toggle() error {
	return p.Write(!p.state)
}

// State returns the last level written.
func (p *Pin) State() Level {
	return p.state
}

// Sample reads the hardware level. The cached level is left untouched.
func (p *Pin) Sample() (Level, error) {
	return p.drv.ReadPin(p.ID)
}

func (p *Pin) String() string {
	return fmt.Sprintf("%s #%d = %d", p.Label, p.ID, p.state.Int())
}
