package gpio

import (
	"errors"
	"testing"
)

// failingDriver rejects every write.
type failingDriver struct {
	MockDriver
}

func (f *failingDriver) WritePin(pin int, level Level) error {
	return errors.New("bus error")
}

func TestMockDriver_ReadReflectsWrite(t *testing.T) {
	m := NewMockDriver()
	if err := m.WritePin(17, High); err != nil {
		t.Fatalf("WritePin: %v", err)
	}
	got, err := m.ReadPin(17)
	if err != nil {
		t.Fatalf("ReadPin: %v", err)
	}
	if got != High {
		t.Errorf("ReadPin after High write = %v, want High", got)
	}
	if got, _ := m.ReadPin(27); got != Low {
		t.Errorf("unwritten pin = %v, want Low", got)
	}
}

func TestMockDriver_ZeroValueUsable(t *testing.T) {
	var m MockDriver
	if err := m.WritePin(5, High); err != nil {
		t.Fatalf("WritePin on zero MockDriver: %v", err)
	}
	if got, _ := m.ReadPin(5); got != High {
		t.Errorf("ReadPin = %v, want High", got)
	}
}

func TestNewDriver_Mock(t *testing.T) {
	d, err := NewDriver(Options{Mock: true, Backend: "anything"})
	if err != nil {
		t.Fatalf("NewDriver: %v", err)
	}
	if _, ok := d.(*MockDriver); !ok {
		t.Errorf("expected *MockDriver, got %T", d)
	}
}

func TestNewDriver_UnknownBackend(t *testing.T) {
	if _, err := NewDriver(Options{Backend: "sysfs"}); err == nil {
		t.Error("expected error for unknown backend, got nil")
	}
}

func TestLevel_Int(t *testing.T) {
	if High.Int() != 1 || Low.Int() != 0 {
		t.Errorf("Int(): High=%d Low=%d, want 1 and 0", High.Int(), Low.Int())
	}
	if High.String() != "1" || Low.String() != "0" {
		t.Errorf("String(): High=%q Low=%q", High.String(), Low.String())
	}
}

func TestNewOutputPin_InitialLevel(t *testing.T) {
	m := NewMockDriver()
	p, err := NewOutputPin(m, 22, "ENBL", High)
	if err != nil {
		t.Fatalf("NewOutputPin: %v", err)
	}
	if p.State() != High {
		t.Errorf("cached state = %v, want High", p.State())
	}
	if got, _ := m.ReadPin(22); got != High {
		t.Errorf("hardware level = %v, want High", got)
	}
}

func TestPin_ToggleTwiceRestores(t *testing.T) {
	m := NewMockDriver()
	p, _ := NewOutputPin(m, 17, "STEP", Low)

	if err := p.Toggle(); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if p.State() != High {
		t.Errorf("after first toggle = %v, want High", p.State())
	}
	if err := p.Toggle(); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if p.State() != Low {
		t.Errorf("after second toggle = %v, want Low", p.State())
	}
}

func TestPin_SampleDoesNotTouchCache(t *testing.T) {
	m := NewMockDriver()
	p, _ := NewOutputPin(m, 17, "STEP", High)

	// Simulate the line being pulled low externally.
	_ = m.WritePin(17, Low)

	got, err := p.Sample()
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if got != Low {
		t.Errorf("Sample = %v, want Low", got)
	}
	if p.State() != High {
		t.Errorf("cached state changed to %v after Sample", p.State())
	}
}

func TestPin_WriteErrorKeepsCache(t *testing.T) {
	p := &Pin{ID: 4, Label: "DIR", drv: &failingDriver{}}
	if err := p.Set(); err == nil {
		t.Fatal("expected write error, got nil")
	}
	if p.State() != Low {
		t.Errorf("cached state = %v after failed write, want Low", p.State())
	}
}

func TestPin_String(t *testing.T) {
	m := NewMockDriver()
	p, _ := NewOutputPin(m, 27, "DIR", High)
	if s := p.String(); s != "DIR #27 = 1" {
		t.Errorf("String() = %q, want %q", s, "DIR #27 = 1")
	}
}
