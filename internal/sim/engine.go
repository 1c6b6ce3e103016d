package sim

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/banshee-data/bottleneck/internal/config"
	"github.com/banshee-data/bottleneck/internal/monitoring"
	"github.com/banshee-data/bottleneck/internal/scenario"
)

var engineLogf = monitoring.Tagged("sim")

// Engine is the simulation state machine. It is not safe for concurrent use;
// internal/runner serialises access.
type Engine struct {
	cfg    Config
	scn    scenario.Scenario
	params scenario.Params

	startHour, startMinute int
	injected               Rand

	rng        Rand
	tick       uint64
	clock      *Clock
	signal     *SignalController
	pop        *Population
	solver     *Solver
	incidents  *IncidentModel
	econ       *Economics
	risk       float64
	crash      *Alert
	breakdown  *Alert
	violations int
}

// Option customises an Engine.
type Option func(*Engine)

// WithRand injects the random source. An injected source is not reseeded by
// Reset.
func WithRand(r Rand) Option {
	return func(e *Engine) { e.injected = r }
}

// WithParams replaces the tuned parameter set.
func WithParams(p scenario.Params) Option {
	return func(e *Engine) { e.params = p }
}

// New validates cfg and returns an engine positioned before its first tick.
func New(cfg Config, scn scenario.Scenario, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	h, m, err := config.ParseClock(cfg.StartTime)
	if err != nil {
		return nil, &ConfigurationError{Field: "start_time", Value: cfg.StartTime, Err: err}
	}
	e := &Engine{
		cfg:         cfg,
		scn:         scn,
		params:      scenario.DefaultParams(),
		startHour:   h,
		startMinute: m,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.params.TicksPerMinute <= 0 {
		return nil, &ConfigurationError{Field: "ticks_per_minute", Value: e.params.TicksPerMinute, Err: fmt.Errorf("must be positive")}
	}
	e.Reset()
	return e, nil
}

// Reset restores the state the engine had right after New.
func (e *Engine) Reset() {
	e.rng = e.injected
	if e.rng == nil {
		e.rng = NewRand(e.cfg.Seed)
	}
	e.tick = 0
	e.clock = NewClock(e.startHour, e.startMinute, e.params.TicksPerMinute)
	e.signal = NewSignalController(e.scn.Reversible(), e.cfg.GreenDuration, e.cfg.MaxClearanceTicks)
	e.pop = newPopulation(e.params, e.rng, e.cfg.WeatherDerating())
	e.solver = newSolver(e.params, e.scn, e.cfg, e.rng)
	e.incidents = newIncidentModel(e.rng)
	e.econ = newEconomics(e.params.Costs, e.cfg.HistoryIntervalMinutes, e.cfg.HistoryLimit)
	e.crash = nil
	e.breakdown = nil
	e.violations = 0
	e.risk = EstimateRisk(e.riskInput(), nil)
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() Config { return e.cfg }

// Scenario returns the active scenario.
func (e *Engine) Scenario() scenario.Scenario { return e.scn }

// Tick returns the number of ticks stepped since the last reset.
func (e *Engine) Tick() uint64 { return e.tick }

// Violations returns how many invariant checks failed since the last reset.
func (e *Engine) Violations() int { return e.violations }

// SetTimeScale changes the time scale for subsequent ticks.
func (e *Engine) SetTimeScale(ts float64) error {
	if ts <= 0 || ts > 10 {
		return &ConfigurationError{Field: "time_scale", Value: ts, Err: fmt.Errorf("must be in (0, 10]")}
	}
	e.cfg.TimeScale = ts
	return nil
}

// Place adds a vehicle at a fixed position, bypassing the spawn draw.
func (e *Engine) Place(k scenario.Kind, d Direction, x, kmh float64) *Vehicle {
	return e.pop.Place(k, d, x, kmh, e.tick)
}

// Step advances the simulation by one tick of physical duration dt. A
// non-positive dt uses the configured tick interval.
func (e *Engine) Step(dt time.Duration) Snapshot {
	if dt <= 0 {
		dt = e.cfg.TickInterval
	}
	ts := e.cfg.TimeScale
	e.tick++

	if e.clock.Advance(1, ts) {
		engineLogf("day %d begins", e.clock.Day())
	}

	e.signal.Update(e.passageOccupied, ts)

	prob := e.pop.SpawnProbability(DensityFactor(e.clock.HourOfDay()), e.scn.DemandFactor, WeatherPenalty(e.cfg.RainIntensity), ts)
	for _, d := range directions {
		e.pop.TrySpawn(d, prob, e.tick)
	}

	for _, v := range e.pop.Vehicles() {
		v.tickDistance = 0
	}
	steps := int(math.Ceil(ts))
	h := dt.Seconds() * ts / float64(steps)
	nearMisses := 0
	for i := 0; i < steps; i++ {
		res := e.solver.Advance(e.pop, e.signal.State(), h, e.tick)
		nearMisses += res.nearMisses
		for _, c := range res.crashes {
			e.resolve(c.vehicle, c.kind)
		}
		for _, v := range res.breakdowns {
			e.resolve(v, IncidentBreakdown)
		}
	}

	// Statistics describe the population the snapshot publishes.
	exited, _ := e.pop.Sweep(e.tick, uint64(e.cfg.IncidentDurationTicks))
	e.econ.RecordFlow(exited, nearMisses)

	e.risk = EstimateRisk(e.riskInput(), e.rng)
	e.econ.Accumulate(e.pop.Vehicles(), ts/e.params.TicksPerMinute/60)
	e.econ.MaybeSample(e.clock.Minutes(), e.clock.Now(), e.clock.Day(), e.cfg.RainIntensity, e.risk)

	e.checkInvariants()
	return e.Snapshot()
}

func (e *Engine) resolve(v *Vehicle, kind IncidentKind) {
	if e.pop.Find(v.ID) == nil {
		e.violate("incident.vehicle", "incident for unknown vehicle %d", v.ID)
		return
	}
	rec, alert := e.incidents.Resolve(v, kind, e.tick, e.clock.Now(), e.clock.Day(), e.cfg.RainIntensity)
	e.econ.RecordIncident(rec)
	if kind.IsCrash() {
		e.crash = &alert
	} else {
		e.breakdown = &alert
	}
	engineLogf("incident %d: %s %d %s at %.0f", rec.ID, rec.VehicleType, rec.VehicleID, rec.Cause, rec.Position)
}

// passageOccupied reports whether traffic of direction d is still between
// its stop line and the far end of the bottleneck plus the clearance margin.
func (e *Engine) passageOccupied(d Direction) bool {
	r := e.params.Road
	for _, v := range e.pop.Vehicles() {
		if v.Direction != d {
			continue
		}
		if d == Uphill && v.Position > r.StopLineUphill && v.Position < r.BottleneckEnd+r.ClearanceMargin {
			return true
		}
		if d == Downhill && v.Position < r.StopLineDownhill && v.Position > r.BottleneckStart-r.ClearanceMargin {
			return true
		}
	}
	return false
}

func (e *Engine) riskInput() RiskInput {
	hour := e.clock.HourOfDay()
	return RiskInput{
		Hour:         hour,
		Rain:         e.cfg.RainIntensity,
		Scenario:     e.scn,
		Density:      DensityFactor(hour),
		VehicleCount: e.pop.Len(),
	}
}

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() Snapshot {
	vehicles := make([]VehicleView, 0, e.pop.Len())
	for _, v := range e.pop.Vehicles() {
		vehicles = append(vehicles, v.view())
	}
	slices.SortFunc(vehicles, func(a, b VehicleView) int { return cmp.Compare(a.ID, b.ID) })
	return Snapshot{
		Tick:           e.tick,
		Scenario:       e.scn.ID,
		Vehicles:       vehicles,
		TrafficSignal:  e.signal.State(),
		Clock:          ClockView{SimulatedTime: e.clock.Now(), DayCount: e.clock.Day()},
		Stats:          e.econ.Stats(),
		RiskPercentage: e.risk,
		ActiveAlert:    copyAlert(e.crash),
		BreakdownAlert: copyAlert(e.breakdown),
		HistoryLog:     e.econ.History(),
		IncidentLog:    e.incidents.Log(),
	}
}
