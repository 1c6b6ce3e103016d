package sim

import (
	"math"

	"github.com/banshee-data/bottleneck/internal/scenario"
)

// conflict is a collision detected during a sub-step that the incident model
// must resolve.
type conflict struct {
	vehicle *Vehicle
	kind    IncidentKind
}

// stepResult is what one solver sub-step hands to the incident model.
type stepResult struct {
	crashes    []conflict
	breakdowns []*Vehicle
	nearMisses int
}

// Solver applies the car-following, signal and overtaking rules to every
// active vehicle.
type Solver struct {
	road     scenario.Road
	rates    scenario.AccidentRates
	scn      scenario.Scenario
	rng      Rand
	rain     float64
	overtake bool
	derating float64
}

func newSolver(p scenario.Params, scn scenario.Scenario, cfg Config, rng Rand) *Solver {
	return &Solver{
		road:     p.Road,
		rates:    p.Rates,
		scn:      scn,
		rng:      rng,
		rain:     cfg.RainIntensity,
		overtake: cfg.AllowOvertaking,
		derating: cfg.WeatherDerating(),
	}
}

// speedCap is the top speed of v in the current weather.
func (s *Solver) speedCap(v *Vehicle) float64 {
	return v.arch.MaxSpeed * s.derating
}

// Advance moves every active vehicle by one sub-step of h seconds. Uphill
// traffic is processed first; within a lane the leader moves before its
// followers so followers react to the leader's new position.
func (s *Solver) Advance(pop *Population, sig SignalState, h float64, tick uint64) stepResult {
	var res stepResult
	for _, d := range directions {
		lane := pop.Lane(d)
		opposing := pop.Lane(d.Opposite())
		for i, v := range lane {
			if v.Status.Terminal() {
				continue
			}
			s.step(v, lane, i, opposing, sig, h, tick, &res)
		}
	}
	return res
}

func (s *Solver) step(v *Vehicle, lane []*Vehicle, i int, opposing []*Vehicle, sig SignalState, h float64, tick uint64, res *stepResult) {
	sign := v.Direction.Sign()
	capSpeed := s.speedCap(v)
	target := capSpeed
	if s.scn.Reversible() {
		target = s.redLightTarget(v, sig, target)
	}

	forceStop := false
	if !v.inOpposingLane {
		if leader := laneLeader(lane, i); leader != nil {
			gap := sign*(leader.Position-v.Position) - leader.arch.Length
			safe := s.road.SafeDistance + v.Velocity*0.5
			switch {
			case gap < safe && s.canOvertake(v, leader, opposing):
				v.inOpposingLane = true
				v.passing = leader.ID
			case gap < s.rates.ForcedStopGap:
				forceStop = true
				target = 0
			case gap < s.rates.HaltGap:
				target = 0
			case gap < safe:
				target = math.Min(target, leader.Velocity)
			case gap < 2*safe:
				target = math.Min(target, capSpeed*0.8)
			}
		}
	}
	if v.inOpposingLane && s.canMergeBack(v, lane, i) {
		v.inOpposingLane = false
		v.passing = 0
	}

	newSpeed := 0.0
	newX := v.Position
	if !forceStop {
		dv := target - v.Velocity
		if up := v.arch.Accel * h; dv > up {
			dv = up
		} else if down := v.arch.Decel * h; dv < -down {
			dv = -down
		}
		newSpeed = clamp(v.Velocity+dv, 0, capSpeed)
		newX = v.Position + sign*newSpeed*h*s.road.MotionGain
	}

	if kind, hit := s.detectConflict(v, newX, lane, i, opposing, forceStop); hit {
		v.Acceleration = -v.Velocity / h
		v.Velocity = 0
		if s.crashes(kind) {
			v.Position = newX
			v.Status = StatusCrashed
			v.IncidentTick = tick
			res.crashes = append(res.crashes, conflict{vehicle: v, kind: kind})
			return
		}
		v.Status = StatusStopped
		res.nearMisses++
		return
	}

	v.Acceleration = (newSpeed - v.Velocity) / h
	v.tickDistance += math.Abs(newX - v.Position)
	v.Position = newX
	v.Velocity = newSpeed

	switch {
	case forceStop || newSpeed < 1:
		v.Status = StatusStopped
	case v.inOpposingLane:
		v.Status = StatusOvertaking
	default:
		v.Status = StatusMoving
	}

	if v.Velocity < s.rates.LowSpeed {
		v.stress += h
	}
	if s.breaksDown(v, h) {
		v.Velocity = 0
		v.Status = StatusBrokenDown
		v.IncidentTick = tick
		res.breakdowns = append(res.breakdowns, v)
	}
}

// redLightTarget caps the target speed of a vehicle approaching a red stop
// line.
func (s *Solver) redLightTarget(v *Vehicle, sig SignalState, target float64) float64 {
	if sig.Light(v.Direction) != Red {
		return target
	}
	var dist float64
	if v.Direction == Uphill {
		dist = s.road.StopLineUphill - v.Position
	} else {
		dist = v.Position - s.road.StopLineDownhill
	}
	if dist <= 0 || dist >= s.road.DetectionWindow {
		return target
	}
	if dist < s.road.StopLineSlack {
		return 0
	}
	return math.Min(target, dist*s.road.ApproachGain)
}

// laneLeader is the nearest vehicle ahead of lane[i] that occupies its own
// lane.
func laneLeader(lane []*Vehicle, i int) *Vehicle {
	for j := i - 1; j >= 0; j-- {
		if !lane[j].inOpposingLane {
			return lane[j]
		}
	}
	return nil
}

func (s *Solver) canOvertake(v, leader *Vehicle, opposing []*Vehicle) bool {
	if !s.overtake || !v.arch.CanOvertake {
		return false
	}
	if v.arch.Priority >= leader.arch.Priority || leader.Velocity <= s.rates.MinLeaderSpeed {
		return false
	}
	if s.scn.Reversible() && s.road.InDangerZone(v.Position) {
		return false
	}
	if s.rain > 5 {
		return false
	}
	sign := v.Direction.Sign()
	for _, o := range opposing {
		if d := sign * (o.Position - v.Position); d > 0 && d < s.road.SightDistance {
			return false
		}
	}
	return true
}

// canMergeBack reports whether an overtaking vehicle has cleared the vehicle
// it is passing and has a free slot in its own lane.
func (s *Solver) canMergeBack(v *Vehicle, lane []*Vehicle, i int) bool {
	sign := v.Direction.Sign()
	buf := s.road.OvertakeBuffer
	for j, o := range lane {
		if j == i || o.inOpposingLane {
			continue
		}
		ahead := sign * (o.Position - v.Position)
		if ahead >= 0 && (o.ID == v.passing || ahead-o.arch.Length <= buf) {
			return false
		}
		if ahead < 0 && -ahead-v.arch.Length <= buf {
			return false
		}
	}
	return true
}

func (s *Solver) detectConflict(v *Vehicle, newX float64, lane []*Vehicle, i int, opposing []*Vehicle, forceStop bool) (IncidentKind, bool) {
	if v.inOpposingLane || (s.scn.Reversible() && s.road.InBottleneck(newX)) {
		for _, o := range opposing {
			reach := (v.arch.Length*0.7 + o.arch.Length*0.7) * 0.5
			if math.Abs(o.Position-newX) < reach {
				return IncidentFrontal, true
			}
		}
	}
	if v.inOpposingLane || forceStop {
		return "", false
	}
	if leader := laneLeader(lane, i); leader != nil {
		gap := v.Direction.Sign()*(leader.Position-newX) - leader.arch.Length
		if gap < s.rates.RearEndOverlap {
			return IncidentRearEnd, true
		}
	}
	return "", false
}

// crashes draws whether a detected conflict becomes a crash.
func (s *Solver) crashes(kind IncidentKind) bool {
	chance := s.rates.BaseChance + s.rain*s.rates.RainMultiplier + s.scn.AccidentProb
	switch kind {
	case IncidentFrontal:
		chance += s.rates.FrontalPenalty
	case IncidentRearEnd:
		if s.rain == 0 {
			chance = 0
		}
	}
	return s.rng.Float64() < chance
}

func (s *Solver) breaksDown(v *Vehicle, h float64) bool {
	if s.scn.BreakdownFactor == 0 {
		return false
	}
	grade := 1.0
	if v.Direction == Uphill {
		grade = s.rates.UphillGrade
	}
	p := s.rates.BreakdownBase * v.arch.BreakdownBias * grade *
		(1 + v.stress/s.rates.StressScale) * s.scn.BreakdownFactor * h
	return s.rng.Float64() < p
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
