package gpio

import (
	"fmt"
	"sync"

	"github.com/cjeanneret/focuser/internal/debug"
)

// Level represents the logical state of a GPIO pin.
type Level bool

const (
	Low  Level = false
	High Level = true
)

// Int returns the level as 0 or 1, the way it is reported to clients.
func (l Level) Int() int {
	if l {
		return 1
	}
	return 0
}

func (l Level) String() string {
	if l {
		return "1"
	}
	return "0"
}

// PinMode indicates whether a GPIO is input or output.
type PinMode int

const (
	Input PinMode = iota
	Output
)

// Driver defines the abstract interface for controlling GPIOs.
// This allows plugging in a real Raspberry Pi implementation
// or a mock for development on PC.
type Driver interface {
	SetupPin(pin int, mode PinMode) error
	WritePin(pin int, level Level) error
	ReadPin(pin int) (Level, error)
	Close() error
}

// Backend names accepted by NewDriver.
const (
	BackendRPIO = "rpio"
	BackendCdev = "cdev"
)

// Options selects and parameterizes a Driver.
type Options struct {
	Mock    bool   // use MockDriver regardless of Backend
	Backend string // "rpio" (default) or "cdev"
	Chip    string // character device chip for the cdev backend, e.g. "gpiochip0"
}

// NewDriver creates a GPIO driver based on the chosen options.
// Mock returns a MockDriver (for dev/test); otherwise the backend
// decides between memory-mapped go-rpio and the Linux character device.
func NewDriver(opts Options) (Driver, error) {
	if opts.Mock {
		debug.Info("Using MOCK GPIO driver (development mode)")
		return NewMockDriver(), nil
	}
	switch opts.Backend {
	case "", BackendRPIO:
		return NewRPiRealDriver()
	case BackendCdev:
		return NewCdevDriver(opts.Chip)
	default:
		return nil, fmt.Errorf("unknown gpio backend %q", opts.Backend)
	}
}

// MockDriver logs actions and remembers the last level written to each pin,
// so reads reflect writes the way real output pins do.
type MockDriver struct {
	mu     sync.Mutex
	levels map[int]Level
}

// NewMockDriver returns a MockDriver with every pin low.
func NewMockDriver() *MockDriver {
	return &MockDriver{levels: make(map[int]Level)}
}

func (m *MockDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)
	return nil
}

func (m *MockDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.levels == nil {
		m.levels = make(map[int]Level)
	}
	m.levels[pin] = level
	return nil
}

func (m *MockDriver) ReadPin(pin int) (Level, error) {
	m.mu.Lock()
	l := m.levels[pin]
	m.mu.Unlock()
	debug.GPIO("ReadPin", pin, l)
	return l, nil
}

func (m *MockDriver) Close() error {
	debug.Trace("GPIO Close (mock)")
	return nil
}
