package sim

import "fmt"

// Direction is the travel direction of a vehicle. Uphill traffic moves
// towards increasing position, downhill traffic towards decreasing position.
type Direction uint8

const (
	Uphill Direction = iota
	Downhill
)

var directions = [...]Direction{Uphill, Downhill}

// Sign is +1 for uphill and -1 for downhill.
func (d Direction) Sign() float64 {
	if d == Downhill {
		return -1
	}
	return 1
}

// Opposite returns the other direction.
func (d Direction) Opposite() Direction {
	if d == Downhill {
		return Uphill
	}
	return Downhill
}

func (d Direction) String() string {
	switch d {
	case Uphill:
		return "uphill"
	case Downhill:
		return "downhill"
	default:
		return fmt.Sprintf("Direction(%d)", uint8(d))
	}
}

// MarshalText renders the direction by name in JSON and CSV output.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText parses a direction name.
func (d *Direction) UnmarshalText(b []byte) error {
	switch string(b) {
	case "uphill":
		*d = Uphill
	case "downhill":
		*d = Downhill
	default:
		return fmt.Errorf("unknown direction %q", b)
	}
	return nil
}

// Status is the state of a vehicle after the most recent tick.
type Status string

const (
	StatusMoving     Status = "moving"
	StatusStopped    Status = "stopped"
	StatusOvertaking Status = "overtaking"
	StatusCrashed    Status = "crashed"
	StatusBrokenDown Status = "broken_down"
)

// Terminal reports whether the vehicle is frozen until it is removed.
func (s Status) Terminal() bool {
	return s == StatusCrashed || s == StatusBrokenDown
}

// Halted reports whether the vehicle is accruing delay cost.
func (s Status) Halted() bool {
	return s == StatusStopped || s.Terminal()
}

// Light is the colour of one direction's signal head.
type Light string

const (
	Green Light = "green"
	Red   Light = "red"
)

// Phase is the state of the reversible-lane controller.
type Phase string

const (
	PhaseOpen                 Phase = "Open"
	PhaseFlowUphill           Phase = "FlowUphill"
	PhaseClearingFromUphill   Phase = "ClearingFromUphill"
	PhaseFlowDownhill         Phase = "FlowDownhill"
	PhaseClearingFromDownhill Phase = "ClearingFromDownhill"
)

// Clearing reports whether the phase is an all-red clearance interval.
func (p Phase) Clearing() bool {
	return p == PhaseClearingFromUphill || p == PhaseClearingFromDownhill
}
