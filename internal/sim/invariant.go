package sim

import (
	"fmt"
	"math"
)

// speedTolerance absorbs float rounding in the velocity bound check.
const speedTolerance = 1e-9

// checkInvariants verifies the end-of-tick state.
func (e *Engine) checkInvariants() {
	if e.scn.Reversible() {
		st := e.signal.State()
		if st.UphillLight == Green && st.DownhillLight == Green {
			e.violate("signal.exclusive", "both directions green in phase %s", st.Phase)
		}
		if st.Phase.Clearing() && (st.UphillLight == Green || st.DownhillLight == Green) {
			e.violate("signal.clearing", "green light during %s", st.Phase)
		}
	}

	lo := -e.params.Road.RemovalMargin
	hi := e.params.Road.Length + e.params.Road.RemovalMargin
	for _, v := range e.pop.Vehicles() {
		capSpeed := v.arch.MaxSpeed * e.cfg.WeatherDerating()
		if v.Velocity < 0 || v.Velocity > capSpeed+speedTolerance || math.IsNaN(v.Velocity) {
			e.violate("vehicle.velocity", "vehicle %d at %.3f km/h outside [0, %.3f]", v.ID, v.Velocity, capSpeed)
		}
		if v.Position < lo || v.Position > hi || math.IsNaN(v.Position) {
			e.violate("vehicle.position", "vehicle %d at %.3f outside [%.0f, %.0f]", v.ID, v.Position, lo, hi)
		}
		if v.Status.Terminal() && v.Velocity != 0 {
			e.violate("vehicle.frozen", "vehicle %d is %s but moving at %.3f", v.ID, v.Status, v.Velocity)
		}
	}
}

// violate records an invariant failure. Strict runs panic with the
// *InvariantViolation.
func (e *Engine) violate(rule, format string, args ...interface{}) {
	err := &InvariantViolation{Rule: rule, Tick: e.tick, Detail: fmt.Sprintf(format, args...)}
	e.violations++
	if e.cfg.StrictInvariants {
		panic(err)
	}
	engineLogf("%v", err)
}
