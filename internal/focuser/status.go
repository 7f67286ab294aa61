package focuser

import (
	"fmt"
	"strings"
	"time"

	"github.com/cjeanneret/focuser/internal/logic/motion"
)

// PinStatus is the cached level of one pin.
type PinStatus struct {
	Label string `json:"label"`
	Pin   int    `json:"pin"`
	Level int    `json:"level"`
}

// Status is an immutable snapshot of the controller, taken after each
// command.
type Status struct {
	Pins          []PinStatus `json:"pins"`
	Position      int64       `json:"position"`
	LastDirection string      `json:"last_direction"`
	StepsPerMM    int         `json:"steps_per_mm"`
	Backlash0     int         `json:"backlash0"`
	Backlash1     int         `json:"backlash1"`
	DelayUs       int         `json:"delay"`
	Commands      uint64      `json:"commands"`
	LastCommand   string      `json:"last_command,omitempty"`
	LastReply     string      `json:"last_reply,omitempty"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// String renders the snapshot on one line, as returned by STATUS.
func (s Status) String() string {
	var b strings.Builder
	for _, p := range s.Pins {
		fmt.Fprintf(&b, "%s=%d ", p.Label, p.Level)
	}
	fmt.Fprintf(&b, "position=%d last=%s steps_per_mm=%d backlash0=%d backlash1=%d delay=%d",
		s.Position, s.LastDirection, s.StepsPerMM, s.Backlash0, s.Backlash1, s.DelayUs)
	return b.String()
}

func (c *Controller) snapshot() Status {
	pins := c.stepper.Pins()
	st := Status{
		Pins:          make([]PinStatus, 0, len(pins)),
		Position:      c.stepper.Position(),
		LastDirection: c.motion.Planner().Last().String(),
		Commands:      c.handled,
		LastCommand:   c.lastCommand,
		LastReply:     c.lastReply,
		UpdatedAt:     time.Now(),
	}
	for _, p := range pins {
		st.Pins = append(st.Pins, PinStatus{Label: p.Label, Pin: p.ID, Level: p.State().Int()})
	}
	mc := c.motion.Planner().Config()
	st.StepsPerMM = mc.MicrostepsPerMM
	st.Backlash0 = mc.Backlash[motion.InFocus]
	st.Backlash1 = mc.Backlash[motion.OutFocus]
	st.DelayUs = int(mc.Delay / time.Microsecond)
	return st
}

func (c *Controller) publish() {
	st := c.snapshot()
	c.mu.Lock()
	c.status = st
	fn := c.onUpdate
	c.mu.Unlock()
	if fn != nil {
		fn(st)
	}
}

// Status returns the snapshot published after the last command.
func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}
