package sim

import "github.com/banshee-data/bottleneck/internal/monitoring"

var signalLogf = monitoring.Tagged("signal")

// SignalState is the externally visible state of the controller.
type SignalState struct {
	UphillLight   Light `json:"uphill_light"`
	DownhillLight Light `json:"downhill_light"`
	Phase         Phase `json:"phase"`
	// RemainingPhaseTicks is the green time left in a flow phase, or the
	// ticks left before a clearing phase is forced to end.
	RemainingPhaseTicks float64 `json:"remaining_phase_ticks"`
}

// Light returns the light shown to traffic travelling in d.
func (s SignalState) Light(d Direction) Light {
	if d == Downhill {
		return s.DownhillLight
	}
	return s.UphillLight
}

// SignalController runs the reversible-lane cycle
// FlowUphill → ClearingFromUphill → FlowDownhill → ClearingFromDownhill.
// Free-flow scenarios stay in Open with both lights green.
type SignalController struct {
	reversible   bool
	green        float64
	maxClearance float64

	phase    Phase
	timer    float64 // green ticks left in a flow phase
	clearing float64 // ticks spent in the current clearing phase
	timeouts int
}

// NewSignalController returns a controller in its initial phase.
func NewSignalController(reversible bool, greenTicks, maxClearanceTicks int) *SignalController {
	s := &SignalController{
		reversible:   reversible,
		green:        float64(greenTicks),
		maxClearance: float64(maxClearanceTicks),
		phase:        PhaseOpen,
	}
	if reversible {
		s.phase = PhaseFlowUphill
		s.timer = s.green
	}
	return s
}

// Update advances the controller by one tick. occupied reports whether
// traffic of the given direction is still between its stop line and the far
// end of the bottleneck. It returns true when the phase changed.
func (s *SignalController) Update(occupied func(Direction) bool, timeScale float64) bool {
	switch s.phase {
	case PhaseFlowUphill, PhaseFlowDownhill:
		s.timer -= timeScale
		if s.timer > 0 {
			return false
		}
		s.clearing = 0
		if s.phase == PhaseFlowUphill {
			s.phase = PhaseClearingFromUphill
		} else {
			s.phase = PhaseClearingFromDownhill
		}
		return true

	case PhaseClearingFromUphill, PhaseClearingFromDownhill:
		from := s.flowing()
		s.clearing += timeScale
		empty := !occupied(from)
		if !empty && s.clearing < s.maxClearance {
			return false
		}
		if !empty {
			s.timeouts++
			signalLogf("clearance timeout after %.0f ticks with %s traffic still in the passage", s.clearing, from)
		}
		if from == Uphill {
			s.phase = PhaseFlowDownhill
		} else {
			s.phase = PhaseFlowUphill
		}
		s.timer = s.green
		s.clearing = 0
		return true
	}
	return false
}

// flowing returns the direction that holds or last held the passage.
func (s *SignalController) flowing() Direction {
	switch s.phase {
	case PhaseFlowDownhill, PhaseClearingFromDownhill:
		return Downhill
	default:
		return Uphill
	}
}

// Phase returns the current phase.
func (s *SignalController) Phase() Phase { return s.phase }

// Timeouts returns how many clearing phases ended on the timeout.
func (s *SignalController) Timeouts() int { return s.timeouts }

// State returns the lights and remaining time.
func (s *SignalController) State() SignalState {
	st := SignalState{Phase: s.phase, UphillLight: Red, DownhillLight: Red}
	switch s.phase {
	case PhaseOpen:
		st.UphillLight, st.DownhillLight = Green, Green
	case PhaseFlowUphill:
		st.UphillLight = Green
		st.RemainingPhaseTicks = s.timer
	case PhaseFlowDownhill:
		st.DownhillLight = Green
		st.RemainingPhaseTicks = s.timer
	default:
		st.RemainingPhaseTicks = s.maxClearance - s.clearing
	}
	if st.RemainingPhaseTicks < 0 {
		st.RemainingPhaseTicks = 0
	}
	return st
}
