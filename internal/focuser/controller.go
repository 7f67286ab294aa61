// Package focuser turns text commands into focuser moves and pin writes.
// A Controller owns the pins, the motion planner and the run-time
// settings; it is driven from a single goroutine.
package focuser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/shlex"
	"go.uber.org/multierr"

	"github.com/cjeanneret/focuser/internal/config"
	"github.com/cjeanneret/focuser/internal/debug"
	"github.com/cjeanneret/focuser/internal/hw/gpio"
	"github.com/cjeanneret/focuser/internal/hw/stepper"
	"github.com/cjeanneret/focuser/internal/logic/motion"
)

// Reply is the response to one client message.
type Reply struct {
	Text  string
	Close bool // client asked to end the session
}

// Controller holds the focuser state. Handle must only be called from one
// goroutine at a time; Status is safe to call from any goroutine.
type Controller struct {
	cfg     *config.Config
	cfgPath string
	drv     gpio.Driver
	stepper *stepper.Stepper
	motion  *motion.Controller

	handled     uint64
	lastCommand string
	lastReply   string

	mu       sync.RWMutex
	status   Status
	onUpdate func(Status)
}

// New sets up the pins on drv and returns a controller at idle: ENABLE
// high, no last direction. cfgPath is the file SAVE writes to and may be
// empty.
func New(drv gpio.Driver, cfg *config.Config, cfgPath string) (*Controller, error) {
	s, err := stepper.NewStepper(drv, stepper.Config{
		StepPin:   cfg.Focuser.StepPin,
		DirPin:    cfg.Focuser.DirPin,
		EnablePin: cfg.Focuser.EnablePin,
	})
	if err != nil {
		return nil, fmt.Errorf("init stepper: %w", err)
	}

	c := &Controller{
		cfg:     cfg,
		cfgPath: cfgPath,
		drv:     drv,
		stepper: s,
		motion:  motion.NewController(motion.NewPlanner(MotionConfig(cfg)), s),
	}
	c.publish()
	return c, nil
}

// MotionConfig extracts the planner settings from cfg.
func MotionConfig(cfg *config.Config) motion.Config {
	return motion.Config{
		MicrostepsPerMM: cfg.Focuser.StepsPerMM,
		Backlash: [2]int{
			motion.InFocus:  cfg.Focuser.BacklashIn,
			motion.OutFocus: cfg.Focuser.BacklashOut,
		},
		Delay:          cfg.StepDelay(),
		DirInfocusHigh: cfg.Focuser.DirInfocusHigh,
	}
}

// OnUpdate registers fn to be called with every published status.
// It must be set before the first Handle.
func (c *Controller) OnUpdate(fn func(Status)) {
	c.mu.Lock()
	c.onUpdate = fn
	c.mu.Unlock()
}

// Handle processes one client message and returns the response. Moves
// run to completion before Handle returns. Every call ends with a
// read-back of the three pins, logged at verbose level.
func (c *Controller) Handle(raw string) Reply {
	input := strings.TrimRight(raw, "\r\n")
	debug.Command(input)

	reply := c.dispatch(input)

	c.readBack()
	c.handled++
	c.lastCommand = input
	c.lastReply = reply.Text
	c.publish()
	return reply
}

// shellSyntax holds the characters shlex reads as quoting, escaping or a
// comment. The protocol has none of these.
const shellSyntax = "#\"'\\"

func (c *Controller) dispatch(input string) Reply {
	if f := strings.Fields(input); len(f) == 0 || !known(f[0]) {
		return unknown(input)
	}
	if strings.ContainsAny(input, shellSyntax) {
		return errorReply(&ParseError{Input: input, Reason: "shell quoting and comments are not accepted"})
	}
	tokens, err := shlex.Split(input)
	if err != nil {
		return errorReply(&ParseError{Input: input, Reason: "cannot tokenize", Err: err})
	}
	if len(tokens) == 0 {
		return unknown(input)
	}
	cmd, ok := Lookup(tokens[0])
	if !ok {
		return unknown(input)
	}
	args, err := parseArgs(input, cmd, tokens[1:])
	if err != nil {
		return errorReply(err)
	}

	text, err := cmd.Run(c, args)
	if err != nil {
		return errorReply(err)
	}
	debug.Live("Reply %q", text)
	return Reply{Text: text, Close: cmd == ExitCommand}
}

func known(verb string) bool {
	_, ok := Lookup(verb)
	return ok
}

func parseArgs(input string, cmd *Command, tokens []string) ([]int, error) {
	if len(tokens) != cmd.Args {
		return nil, &ParseError{
			Input:  input,
			Reason: fmt.Sprintf("%s takes %d argument(s), got %d", cmd.Verb, cmd.Args, len(tokens)),
		}
	}
	args := make([]int, len(tokens))
	for i, tok := range tokens {
		v, err := strconv.Atoi(tok)
		if err != nil {
			return nil, &ParseError{Input: input, Reason: fmt.Sprintf("argument %d is not an integer", i+1), Err: err}
		}
		args[i] = v
	}
	return args, nil
}

func unknown(input string) Reply {
	debug.Live("Unknown command %q", input)
	return Reply{Text: fmt.Sprintf("Unknown command: @%s@", input)}
}

func errorReply(err error) Reply {
	debug.Error(err)
	var perr *ParseError
	if errors.As(err, &perr) {
		return Reply{Text: "ERR malformed command: " + perr.Error()}
	}
	return Reply{Text: "ERR " + err.Error()}
}

func (c *Controller) move(d motion.Direction, distance int) (string, error) {
	plan, err := c.motion.Move(motion.Request{Direction: d, Distance: distance})
	if errors.Is(err, motion.ErrOverflow) {
		return "", fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}
	if err != nil {
		return "", fmt.Errorf("move failed: %w", err)
	}
	if plan.Backlash > 0 {
		return fmt.Sprintf("OK %s %d pulses (backlash %d)", plan.Direction, plan.Pulses, plan.Backlash), nil
	}
	return fmt.Sprintf("OK %s %d pulses", plan.Direction, plan.Pulses), nil
}

func (c *Controller) setBacklash(d motion.Direction, pulses int) (string, error) {
	if pulses < 0 {
		return "", fmt.Errorf("%w: backlash must be >= 0, got %d", ErrInvalidValue, pulses)
	}
	if err := c.motion.Planner().SetBacklash(d, pulses); err != nil {
		return "", err
	}
	key := "backlash0"
	if d == motion.InFocus {
		c.cfg.Focuser.BacklashIn = pulses
	} else {
		key = "backlash1"
		c.cfg.Focuser.BacklashOut = pulses
	}
	debug.Info("%s (%s) set to %d", key, d, pulses)
	return fmt.Sprintf("OK %s = %d", key, pulses), nil
}

// readBack samples every pin for the log. Errors are logged only.
func (c *Controller) readBack() {
	for _, p := range c.stepper.Pins() {
		read, err := p.Sample()
		if err != nil {
			debug.Error(fmt.Errorf("read back %s pin %d: %w", p.Label, p.ID, err))
			continue
		}
		debug.Pin(p.Label, p.ID, p.State(), read)
	}
}

// Close leaves the motor driver disabled and releases the GPIO driver.
func (c *Controller) Close() error {
	err := c.stepper.Disable()
	return multierr.Append(err, c.drv.Close())
}
