package motion

import (
	"time"

	"github.com/cjeanneret/focuser/internal/debug"
	"github.com/cjeanneret/focuser/internal/hw/gpio"
)

// Executor emits a planned pulse train. *stepper.Stepper implements it.
type Executor interface {
	Execute(dirLevel gpio.Level, pulses int, delay time.Duration) error
}

// Controller is the layer between the command dispatcher and the
// stepper: it plans a move and runs it to completion.
type Controller struct {
	planner  *Planner
	executor Executor
}

func NewController(planner *Planner, executor Executor) *Controller {
	return &Controller{
		planner:  planner,
		executor: executor,
	}
}

// Move plans req and blocks until the pulse train has been emitted.
// The returned Plan is valid even when execution fails.
func (c *Controller) Move(req Request) (Plan, error) {
	plan, err := c.planner.Plan(req)
	if err != nil {
		return Plan{}, err
	}
	debug.Move(plan.Direction.String(), plan.Pulses, plan.Backlash > 0)

	level := c.planner.Config().DirLevel(plan.Direction)
	if err := c.executor.Execute(level, plan.Pulses, plan.Delay); err != nil {
		return plan, err
	}
	return plan, nil
}

// Planner exposes the planner for settings changes.
func (c *Controller) Planner() *Planner {
	return c.planner
}
