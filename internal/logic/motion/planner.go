package motion

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cjeanneret/focuser/internal/debug"
	"github.com/cjeanneret/focuser/internal/hw/gpio"
)

// ErrOverflow is returned when a pulse count does not fit in an int.
var ErrOverflow = errors.New("pulse count overflows")

// Direction is the travel direction of the focuser relative to the focal plane.
type Direction int

const (
	// Unknown is only ever a recorded direction: no move happened yet.
	Unknown Direction = iota - 1
	InFocus
	OutFocus
)

func (d Direction) String() string {
	switch d {
	case InFocus:
		return "INFOCUS"
	case OutFocus:
		return "OUTFOCUS"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether d is a real travel direction.
func (d Direction) Valid() bool {
	return d == InFocus || d == OutFocus
}

// Config holds the run-time motion settings.
type Config struct {
	MicrostepsPerMM int
	Backlash        [2]int        // pulses added on a reversal, indexed by the new Direction
	Delay           time.Duration // STEP half-cycle
	DirInfocusHigh  bool          // DIR level for InFocus; OutFocus gets the opposite
}

// DirLevel maps a direction to the level driven on the DIR pin.
func (c Config) DirLevel(d Direction) gpio.Level {
	high := c.DirInfocusHigh
	if d == OutFocus {
		high = !high
	}
	return gpio.Level(high)
}

// Request is one move as asked for by a client. Distance is in microns.
type Request struct {
	Direction Direction
	Distance  int
}

// Plan is the outcome of planning a Request.
type Plan struct {
	Request
	Pulses   int           // total pulses to emit, backlash included
	Backlash int           // backlash pulses included in Pulses, 0 if none
	Delay    time.Duration // STEP half-cycle
}

// Planner converts distances to pulse counts and tracks the direction of
// the previous move for backlash compensation.
type Planner struct {
	cfg  Config
	last Direction
}

// NewPlanner returns a planner that has not seen any move yet.
func NewPlanner(cfg Config) *Planner {
	return &Planner{cfg: cfg, last: Unknown}
}

// Plan computes the pulse train for req and records req.Direction as the
// last direction moved. Backlash is added only when the previous direction
// is known and differs from the new one.
func (p *Planner) Plan(req Request) (Plan, error) {
	if !req.Direction.Valid() {
		return Plan{}, fmt.Errorf("invalid direction %d", req.Direction)
	}

	pulses, err := ScaleMicrons(p.cfg.MicrostepsPerMM, req.Distance)
	if err != nil {
		return Plan{}, fmt.Errorf("%s %d um: %w", req.Direction, req.Distance, err)
	}

	backlash := 0
	if p.last.Valid() && p.last != req.Direction {
		backlash = p.cfg.Backlash[req.Direction]
	}
	debug.Verbose("Planner: %s %d um -> %d pulses, last=%s, backlash=%d",
		req.Direction, req.Distance, pulses, p.last, backlash)

	if (backlash > 0 && pulses > math.MaxInt-backlash) || (backlash < 0 && pulses < math.MinInt-backlash) {
		return Plan{}, fmt.Errorf("%s %d um with backlash %d: %w", req.Direction, req.Distance, backlash, ErrOverflow)
	}
	total := pulses + backlash
	if total < 0 {
		total = 0
	}
	p.last = req.Direction

	return Plan{
		Request:  req,
		Pulses:   total,
		Backlash: backlash,
		Delay:    p.cfg.Delay,
	}, nil
}

// ScaleMicrons converts a distance in microns to microsteps, truncating.
// It returns ErrOverflow when the product does not fit in 64 bits or the
// result does not fit in an int.
func ScaleMicrons(microstepsPerMM, microns int) (int, error) {
	a, b := int64(microstepsPerMM), int64(microns)
	if a == 0 || b == 0 {
		return 0, nil
	}
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, ErrOverflow
	}
	prod := a * b
	if prod/b != a {
		return 0, ErrOverflow
	}
	q := prod / 1000
	if q > math.MaxInt || q < math.MinInt {
		return 0, ErrOverflow
	}
	return int(q), nil
}

// Last returns the direction of the previous move, or Unknown.
func (p *Planner) Last() Direction {
	return p.last
}

// Config returns a copy of the current settings.
func (p *Planner) Config() Config {
	return p.cfg
}

// SetMicrostepsPerMM changes the distance scale for subsequent moves.
func (p *Planner) SetMicrostepsPerMM(v int) {
	p.cfg.MicrostepsPerMM = v
}

// SetBacklash changes the compensation applied on reversals towards d.
func (p *Planner) SetBacklash(d Direction, pulses int) error {
	if !d.Valid() {
		return fmt.Errorf("invalid direction %d", d)
	}
	p.cfg.Backlash[d] = pulses
	return nil
}
