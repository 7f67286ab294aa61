package gpio

import (
	"fmt"

	"github.com/cjeanneret/focuser/internal/debug"
	"github.com/warthog618/go-gpiocdev"
	"go.uber.org/multierr"
)

// DefaultChip is the character device used when none is configured.
const DefaultChip = "gpiochip0"

// CdevDriver drives pins through the Linux GPIO character device.
// Pin numbers are line offsets on the configured chip.
type CdevDriver struct {
	chip  string
	lines map[int]*gpiocdev.Line
}

// NewCdevDriver opens no lines up front; each pin is requested on SetupPin.
// The chip is probed once so a missing device fails at startup.
func NewCdevDriver(chip string) (*CdevDriver, error) {
	if chip == "" {
		chip = DefaultChip
	}
	debug.Info("Initializing GPIO character device driver (%s)", chip)

	c, err := gpiocdev.NewChip(chip, gpiocdev.WithConsumer("focuser"))
	if err != nil {
		return nil, fmt.Errorf("failed to open GPIO chip %s: %w", chip, err)
	}
	debug.Verbose("GPIO chip %s has %d lines", chip, c.Lines())
	if err := c.Close(); err != nil {
		return nil, fmt.Errorf("close GPIO chip %s: %w", chip, err)
	}

	return &CdevDriver{
		chip:  chip,
		lines: make(map[int]*gpiocdev.Line),
	}, nil
}

func (d *CdevDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)

	var opt gpiocdev.LineReqOption
	switch mode {
	case Input:
		opt = gpiocdev.AsInput
	case Output:
		opt = gpiocdev.AsOutput(0)
	default:
		return fmt.Errorf("unknown pin mode: %d", mode)
	}

	if l, ok := d.lines[pin]; ok {
		delete(d.lines, pin)
		if err := l.Close(); err != nil {
			return fmt.Errorf("release line %d: %w", pin, err)
		}
	}

	l, err := gpiocdev.RequestLine(d.chip, pin, opt, gpiocdev.WithConsumer("focuser"))
	if err != nil {
		return fmt.Errorf("request line %d on %s: %w", pin, d.chip, err)
	}
	d.lines[pin] = l
	return nil
}

func (d *CdevDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)

	l, ok := d.lines[pin]
	if !ok {
		return fmt.Errorf("pin %d written before setup", pin)
	}
	return l.SetValue(level.Int())
}

func (d *CdevDriver) ReadPin(pin int) (Level, error) {
	l, ok := d.lines[pin]
	if !ok {
		return Low, fmt.Errorf("pin %d read before setup", pin)
	}
	v, err := l.Value()
	if err != nil {
		return Low, fmt.Errorf("read line %d: %w", pin, err)
	}
	debug.GPIO("ReadPin", pin, v)
	return v != 0, nil
}

// Close releases every requested line; the kernel returns them to their
// default state.
func (d *CdevDriver) Close() error {
	debug.Trace("GPIO Close (cdev driver)")

	var err error
	for pin, l := range d.lines {
		err = multierr.Append(err, l.Close())
		delete(d.lines, pin)
	}
	return err
}
