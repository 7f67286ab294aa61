package motion

import (
	"errors"
	"testing"
	"time"

	"github.com/cjeanneret/focuser/internal/hw/gpio"
	"github.com/cjeanneret/focuser/internal/hw/stepper"
)

// recordingExecutor records Execute calls.
type recordingExecutor struct {
	calls []execCall
	err   error
}

type execCall struct {
	level  gpio.Level
	pulses int
	delay  time.Duration
}

func (r *recordingExecutor) Execute(level gpio.Level, pulses int, delay time.Duration) error {
	r.calls = append(r.calls, execCall{level, pulses, delay})
	return r.err
}

func newTestController(exec Executor) *Controller {
	return NewController(NewPlanner(Config{
		MicrostepsPerMM: 470,
		Backlash:        [2]int{InFocus: 200, OutFocus: 240},
		Delay:           time.Microsecond,
	}), exec)
}

func TestController_MoveExecutesPlan(t *testing.T) {
	exec := &recordingExecutor{}
	ctrl := newTestController(exec)

	if _, err := ctrl.Move(Request{Direction: OutFocus, Distance: 10}); err != nil {
		t.Fatalf("Move: %v", err)
	}
	plan, err := ctrl.Move(Request{Direction: InFocus, Distance: 5})
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if plan.Pulses != 202 {
		t.Errorf("Pulses = %d, want 202", plan.Pulses)
	}

	if len(exec.calls) != 2 {
		t.Fatalf("expected 2 Execute calls, got %d", len(exec.calls))
	}
	if exec.calls[0].level != gpio.High || exec.calls[0].pulses != 4 {
		t.Errorf("first call = %+v, want DIR HIGH with 4 pulses", exec.calls[0])
	}
	if exec.calls[1].level != gpio.Low || exec.calls[1].pulses != 202 {
		t.Errorf("second call = %+v, want DIR LOW with 202 pulses", exec.calls[1])
	}
	if exec.calls[1].delay != time.Microsecond {
		t.Errorf("delay = %v, want 1us", exec.calls[1].delay)
	}
}

func TestController_ExecuteErrorReturnsPlan(t *testing.T) {
	exec := &recordingExecutor{err: errors.New("pin stuck")}
	ctrl := newTestController(exec)

	plan, err := ctrl.Move(Request{Direction: InFocus, Distance: 1000})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if plan.Pulses != 470 {
		t.Errorf("plan.Pulses = %d, want 470", plan.Pulses)
	}
}

func TestController_InvalidDirection(t *testing.T) {
	exec := &recordingExecutor{}
	ctrl := newTestController(exec)

	if _, err := ctrl.Move(Request{Direction: Unknown, Distance: 10}); err == nil {
		t.Error("expected error for unknown direction")
	}
	if len(exec.calls) != 0 {
		t.Errorf("no pulses expected, got %d calls", len(exec.calls))
	}
}

func TestController_WithStepper(t *testing.T) {
	drv := gpio.NewMockDriver()
	s, err := stepper.NewStepper(drv, stepper.Config{StepPin: 1, DirPin: 2, EnablePin: 3})
	if err != nil {
		t.Fatalf("NewStepper: %v", err)
	}
	ctrl := newTestController(s)

	if _, err := ctrl.Move(Request{Direction: OutFocus, Distance: 100}); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if s.Position() != 47 {
		t.Errorf("Position = %d, want 47", s.Position())
	}
	if lvl, _ := drv.ReadPin(3); lvl != gpio.High {
		t.Error("ENABLE should be HIGH after the move")
	}
}
