package focuser

import (
	"fmt"
	"strings"

	"github.com/cjeanneret/focuser/internal/debug"
	"github.com/cjeanneret/focuser/internal/logic/motion"
)

// Command is one verb of the wire protocol. Args is the exact number of
// integer arguments the verb takes.
type Command struct {
	Verb        string
	Args        int
	Run         func(c *Controller, args []int) (string, error)
	Description string
}

var (
	InFocusCommand = &Command{
		Verb: "IF",
		Args: 1,
		Run: func(c *Controller, args []int) (string, error) {
			return c.move(motion.InFocus, args[0])
		},
		Description: "Move towards INFOCUS. Input: distance in microns.",
	}
	OutFocusCommand = &Command{
		Verb: "OF",
		Args: 1,
		Run: func(c *Controller, args []int) (string, error) {
			return c.move(motion.OutFocus, args[0])
		},
		Description: "Move towards OUTFOCUS. Input: distance in microns.",
	}
	ToggleCommand = &Command{
		Verb: "TOG",
		Args: 1,
		Run: func(c *Controller, args []int) (string, error) {
			pins := c.stepper.Pins()
			i := args[0]
			if i < 0 || i >= len(pins) {
				return "", fmt.Errorf("%w: pin index must be 0-%d, got %d", ErrInvalidValue, len(pins)-1, i)
			}
			p := pins[i]
			before := p.State()
			if err := p.Toggle(); err != nil {
				return "", err
			}
			debug.Live("Toggle %s #%d: %d -> %d", p.Label, p.ID, before.Int(), p.State().Int())
			return "OK " + p.String(), nil
		},
		Description: "Toggle a pin without planning. Input: 0 (DIR), 1 (STEP) or 2 (ENBL).",
	}
	ScaleCommand = &Command{
		Verb: "UM",
		Args: 1,
		Run: func(c *Controller, args []int) (string, error) {
			v := args[0]
			if v < 1 {
				return "", fmt.Errorf("%w: steps_per_mm must be >= 1, got %d", ErrInvalidValue, v)
			}
			c.motion.Planner().SetMicrostepsPerMM(v)
			c.cfg.Focuser.StepsPerMM = v
			debug.Info("steps_per_mm set to %d", v)
			return fmt.Sprintf("OK steps_per_mm = %d", v), nil
		},
		Description: "Set microsteps per mm. Input: value >= 1.",
	}
	BacklashInCommand = &Command{
		Verb: "OI",
		Args: 1,
		Run: func(c *Controller, args []int) (string, error) {
			return c.setBacklash(motion.InFocus, args[0])
		},
		Description: "Set backlash applied on a reversal from OUTFOCUS to INFOCUS. Input: pulses >= 0.",
	}
	BacklashOutCommand = &Command{
		Verb: "IO",
		Args: 1,
		Run: func(c *Controller, args []int) (string, error) {
			return c.setBacklash(motion.OutFocus, args[0])
		},
		Description: "Set backlash applied on a reversal from INFOCUS to OUTFOCUS. Input: pulses >= 0.",
	}
	StatusCommand = &Command{
		Verb: "STATUS",
		Run: func(c *Controller, _ []int) (string, error) {
			return c.snapshot().String(), nil
		},
		Description: "Report pin levels, position, last direction and settings.",
	}
	SaveCommand = &Command{
		Verb: "SAVE",
		Run: func(c *Controller, _ []int) (string, error) {
			if c.cfgPath == "" {
				return "", ErrNoConfigFile
			}
			if err := c.cfg.Save(c.cfgPath); err != nil {
				return "", err
			}
			debug.Info("Settings saved to %s", c.cfgPath)
			return "OK saved " + c.cfgPath, nil
		},
		Description: "Write the current settings to the config file.",
	}
	ExitCommand = &Command{
		Verb: "EXIT",
		Run: func(c *Controller, _ []int) (string, error) {
			return "Closing connection", nil
		},
		Description: "Close the connection.",
	}
	HelpCommand = &Command{
		Verb: "HELP",
		Run: func(c *Controller, _ []int) (string, error) {
			var b strings.Builder
			b.WriteString("Available commands:")
			for _, cmd := range commands {
				fmt.Fprintf(&b, "\n%-6s %s", cmd.Verb, cmd.Description)
			}
			return b.String(), nil
		},
		Description: "Show all available commands and their descriptions.",
	}
)

var commands = []*Command{
	InFocusCommand,
	OutFocusCommand,
	ToggleCommand,
	ScaleCommand,
	BacklashInCommand,
	BacklashOutCommand,
	StatusCommand,
	SaveCommand,
	ExitCommand,
}

var commandMap = func() map[string]*Command {
	m := map[string]*Command{
		HelpCommand.Verb: HelpCommand,
	}
	for _, cmd := range commands {
		m[cmd.Verb] = cmd
	}
	return m
}()

// Lookup returns the command for verb, ignoring case.
func Lookup(verb string) (*Command, bool) {
	cmd, ok := commandMap[strings.ToUpper(verb)]
	return cmd, ok
}
