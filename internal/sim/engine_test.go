package sim

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/bottleneck/internal/scenario"
)

// fixedRand returns the same draw every time. At 0.99 nothing spawns and no
// conflict becomes a crash.
type fixedRand struct{ f float64 }

func (r fixedRand) Float64() float64 { return r.f }
func (r fixedRand) IntN(int) int     { return 0 }

// scriptedRand replays draws in order and then keeps returning rest. Each
// Step draws for the uphill spawn and then the downhill spawn before the
// solver moves anything.
type scriptedRand struct {
	draws []float64
	rest  float64
}

func (r *scriptedRand) Float64() float64 {
	if len(r.draws) == 0 {
		return r.rest
	}
	f := r.draws[0]
	r.draws = r.draws[1:]
	return f
}

func (r *scriptedRand) IntN(int) int { return 0 }

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.StrictInvariants = true
	return cfg
}

func TestNewRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name  string
		field string
		mut   func(*Config)
	}{
		{"malformed start", "start_time", func(c *Config) { c.StartTime = "7h30" }},
		{"hour out of range", "start_time", func(c *Config) { c.StartTime = "24:10" }},
		{"zero green", "green_duration_ticks", func(c *Config) { c.GreenDuration = 0 }},
		{"rain above range", "rain_intensity", func(c *Config) { c.RainIntensity = 10.5 }},
		{"zero time scale", "time_scale", func(c *Config) { c.TimeScale = 0 }},
		{"zero tick", "tick_interval", func(c *Config) { c.TickInterval = 0 }},
		{"negative history", "history_limit", func(c *Config) { c.HistoryLimit = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mut(&cfg)
			e, err := New(cfg, scenario.Real)
			require.Error(t, err)
			assert.Nil(t, e)
			var ce *ConfigurationError
			require.True(t, errors.As(err, &ce), "want *ConfigurationError, got %T", err)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestIdealScenarioStaysOpen(t *testing.T) {
	cfg := testConfig()
	cfg.StartTime = "06:00"
	e, err := New(cfg, scenario.Ideal)
	require.NoError(t, err)

	var snap Snapshot
	for i := 0; i < 1000; i++ {
		snap = e.Step(0)
		require.Equal(t, PhaseOpen, snap.TrafficSignal.Phase)
		require.Equal(t, Green, snap.TrafficSignal.UphillLight)
		require.Equal(t, Green, snap.TrafficSignal.DownhillLight)
	}
	assert.Empty(t, snap.IncidentLog)
	assert.Zero(t, snap.Stats.CrashCount)
	assert.Zero(t, snap.Stats.BreakdownCount)
	assert.Nil(t, snap.ActiveAlert)
	assert.Equal(t, uint64(1000), snap.Tick)
	assert.Zero(t, e.Violations())
}

func TestReversibleCycle(t *testing.T) {
	cfg := testConfig()
	cfg.StartTime = "07:30"
	e, err := New(cfg, scenario.Real)
	require.NoError(t, err)
	require.Equal(t, PhaseFlowUphill, e.Snapshot().TrafficSignal.Phase)

	seen := []Phase{PhaseFlowUphill}
	bound := cfg.GreenDuration + cfg.MaxClearanceTicks + 1
	for i := 0; i < bound && len(seen) < 3; i++ {
		p := e.Step(0).TrafficSignal.Phase
		if p != seen[len(seen)-1] {
			seen = append(seen, p)
		}
	}
	assert.Equal(t, []Phase{PhaseFlowUphill, PhaseClearingFromUphill, PhaseFlowDownhill}, seen)
}

func TestSafetyPropertiesUnderChaos(t *testing.T) {
	cfg := testConfig()
	cfg.StartTime = "17:00"
	cfg.RainIntensity = 4
	cfg.AllowOvertaking = true
	cfg.TimeScale = 3
	cfg.Seed = 99
	cfg.GreenDuration = 120
	e, err := New(cfg, scenario.Chaos)
	require.NoError(t, err)

	derate := cfg.WeatherDerating()
	for i := 0; i < 3000; i++ {
		snap := e.Step(0)
		st := snap.TrafficSignal
		require.False(t, st.UphillLight == Green && st.DownhillLight == Green, "double green at tick %d", snap.Tick)
		for _, v := range snap.Vehicles {
			limit := scenario.MustLookup(v.Type).MaxSpeed * derate
			require.GreaterOrEqual(t, v.Velocity, 0.0)
			require.LessOrEqual(t, v.Velocity, limit+1e-9, "vehicle %d (%s)", v.ID, v.Type)
			if v.Status == StatusCrashed || v.Status == StatusBrokenDown {
				require.Zero(t, v.Velocity)
			}
		}
		require.GreaterOrEqual(t, snap.RiskPercentage, 0.0)
		require.LessOrEqual(t, snap.RiskPercentage, 100.0)
	}
}

func TestForcedStopBehindStoppedLeader(t *testing.T) {
	e, err := New(testConfig(), scenario.Ideal, WithRand(fixedRand{0.99}))
	require.NoError(t, err)

	car := scenario.MustLookup(scenario.Car)
	leader := e.Place(scenario.Car, Uphill, 100, 0)
	follower := e.Place(scenario.Car, Uphill, 100-car.Length-1.5, 50)

	snap := e.Step(0)
	assert.Equal(t, StatusStopped, follower.Status)
	assert.Zero(t, follower.Velocity)
	assert.Equal(t, 100-car.Length-1.5, follower.Position)
	assert.NotEqual(t, StatusCrashed, leader.Status)
	assert.Empty(t, snap.IncidentLog)
}

func TestIncidentExpires(t *testing.T) {
	cfg := testConfig()
	cfg.IncidentDurationTicks = 10
	e, err := New(cfg, scenario.Real, WithRand(fixedRand{0.99}))
	require.NoError(t, err)

	wreck := e.Place(scenario.Bus, Uphill, 200, 0)
	wreck.Status = StatusCrashed
	wreck.IncidentTick = e.Tick()

	for i := 1; i < cfg.IncidentDurationTicks; i++ {
		snap := e.Step(0)
		require.Len(t, snap.Vehicles, 1, "tick %d", snap.Tick)
		require.Equal(t, StatusCrashed, snap.Vehicles[0].Status)
		require.Equal(t, 200.0, snap.Vehicles[0].Position)
	}
	snap := e.Step(0)
	assert.Empty(t, snap.Vehicles)
}

func TestStatsMatchPublishedVehicles(t *testing.T) {
	cfg := testConfig()
	cfg.IncidentDurationTicks = 3
	e, err := New(cfg, scenario.Real, WithRand(fixedRand{0.99}))
	require.NoError(t, err)

	wreck := e.Place(scenario.Bus, Uphill, 200, 0)
	wreck.Status = StatusCrashed
	wreck.IncidentTick = e.Tick()

	for i := 0; i < cfg.IncidentDurationTicks; i++ {
		snap := e.Step(0)
		require.Equal(t, len(snap.Vehicles), snap.Stats.VehicleCount, "tick %d", snap.Tick)
	}
	snap := e.Snapshot()
	require.Empty(t, snap.Vehicles)
	assert.Zero(t, snap.Stats.StoppedCount)
	assert.Zero(t, snap.Stats.AverageSpeed)
}

func TestRearEndNeedsWetRoad(t *testing.T) {
	tests := []struct {
		name      string
		rain      float64
		want      Status
		incidents int
	}{
		{"dry road halts", 0, StatusStopped, 0},
		{"wet road crashes", 3, StatusCrashed, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.RainIntensity = tt.rain
			cfg.TimeScale = 1
			rng := &scriptedRand{draws: []float64{0.99, 0.99, 1e-12}, rest: 0.99}
			e, err := New(cfg, scenario.Ideal, WithRand(rng))
			require.NoError(t, err)

			car := scenario.MustLookup(scenario.Car)
			moto := scenario.MustLookup(scenario.Motorcycle)
			leader := e.Place(scenario.Car, Uphill, 100, 0)
			follower := e.Place(scenario.Motorcycle, Uphill, 100-car.Length-2.1, moto.MaxSpeed*cfg.WeatherDerating())

			snap := e.Step(0)
			assert.Equal(t, tt.want, follower.Status)
			assert.Zero(t, follower.Velocity)
			assert.NotEqual(t, StatusCrashed, leader.Status)
			assert.Nil(t, snap.BreakdownAlert)
			require.Len(t, snap.IncidentLog, tt.incidents)
			assert.Equal(t, tt.incidents, snap.Stats.CrashCount)
			if tt.incidents == 0 {
				assert.Nil(t, snap.ActiveAlert)
				assert.Equal(t, 1, snap.Stats.NearMisses)
				return
			}

			rec := snap.IncidentLog[0]
			assert.Equal(t, IncidentRearEnd, rec.Kind)
			assert.Equal(t, follower.ID, rec.VehicleID)
			assert.Equal(t, scenario.Motorcycle, rec.VehicleType)
			assert.Equal(t, "rear-end collision on wet road", rec.Cause)
			assert.Equal(t, snap.Tick, rec.Tick)

			require.NotNil(t, snap.ActiveAlert)
			assert.Equal(t, rec.ID, snap.ActiveAlert.IncidentID)
			assert.Equal(t, IncidentRearEnd, snap.ActiveAlert.Kind)
			assert.Equal(t, 1, snap.ActiveAlert.Count)
			assert.Greater(t, snap.Stats.IncidentCost, 0.0)
		})
	}
}

func TestFrontalCrashAfterClearanceTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.TimeScale = 1
	cfg.GreenDuration = 10
	cfg.MaxClearanceTicks = 5
	cfg.IncidentDurationTicks = 10000
	rng := &scriptedRand{rest: 0.99}
	e, err := New(cfg, scenario.Real, WithRand(rng))
	require.NoError(t, err)

	// A broken-down truck holds the passage so the downhill clearing phase
	// can only end on its timeout.
	wreck := e.Place(scenario.Truck, Downhill, 500, 0)
	wreck.Status = StatusBrokenDown
	wreck.IncidentTick = e.Tick()

	cleared := false
	bound := 2 * (cfg.GreenDuration + cfg.MaxClearanceTicks + 1)
	for i := 0; i < bound; i++ {
		p := e.Step(0).TrafficSignal.Phase
		if p == PhaseClearingFromDownhill {
			cleared = true
		}
		if cleared && p == PhaseFlowUphill {
			break
		}
	}
	require.Equal(t, PhaseFlowUphill, e.Snapshot().TrafficSignal.Phase)
	require.Equal(t, 1, e.signal.Timeouts())
	require.Empty(t, e.Snapshot().IncidentLog)

	// Put a car one sub-step short of the wreck so it lands on it.
	road := scenario.DefaultRoad()
	h := cfg.TickInterval.Seconds()
	speed := scenario.MustLookup(scenario.Car).MaxSpeed
	car := e.Place(scenario.Car, Uphill, wreck.Position-speed*h*road.MotionGain, speed)
	rng.draws = []float64{0.99, 0.99, 1e-12}

	snap := e.Step(0)
	assert.Equal(t, StatusCrashed, car.Status)
	assert.Zero(t, car.Velocity)
	require.Len(t, snap.IncidentLog, 1)
	rec := snap.IncidentLog[0]
	assert.Equal(t, IncidentFrontal, rec.Kind)
	assert.Equal(t, car.ID, rec.VehicleID)
	assert.Equal(t, Uphill, rec.Direction)
	assert.Equal(t, "head-on collision inside the shared passage", rec.Cause)

	require.NotNil(t, snap.ActiveAlert)
	assert.Equal(t, IncidentFrontal, snap.ActiveAlert.Kind)
	assert.Equal(t, car.ID, snap.ActiveAlert.VehicleID)
	assert.Equal(t, 1, snap.Stats.CrashCount)
	assert.Zero(t, e.Violations())
}

func TestBreakdownRaisesAlert(t *testing.T) {
	cfg := testConfig()
	cfg.TimeScale = 1
	rng := &scriptedRand{draws: []float64{0.99, 0.99, 1e-12}, rest: 0.99}
	e, err := New(cfg, scenario.Real, WithRand(rng))
	require.NoError(t, err)

	truck := e.Place(scenario.Truck, Uphill, 100, 40)
	snap := e.Step(0)
	stoppedAt := truck.Position
	assert.Equal(t, StatusBrokenDown, truck.Status)
	assert.Zero(t, truck.Velocity)
	assert.Equal(t, snap.Tick, truck.IncidentTick)

	require.Len(t, snap.IncidentLog, 1)
	rec := snap.IncidentLog[0]
	assert.Equal(t, IncidentBreakdown, rec.Kind)
	assert.Equal(t, truck.ID, rec.VehicleID)
	assert.Equal(t, "mechanical failure climbing the grade", rec.Cause)

	require.NotNil(t, snap.BreakdownAlert)
	assert.Equal(t, rec.ID, snap.BreakdownAlert.IncidentID)
	assert.Equal(t, IncidentBreakdown, snap.BreakdownAlert.Kind)
	assert.Equal(t, 1, snap.BreakdownAlert.Count)
	assert.Nil(t, snap.ActiveAlert)
	assert.Equal(t, 1, snap.Stats.BreakdownCount)
	assert.Zero(t, snap.Stats.CrashCount)

	// A broken-down vehicle stays frozen until it is cleared.
	for i := 0; i < 5; i++ {
		snap = e.Step(0)
	}
	require.Len(t, snap.Vehicles, 1)
	assert.Equal(t, StatusBrokenDown, snap.Vehicles[0].Status)
	assert.Equal(t, stoppedAt, snap.Vehicles[0].Position)
}

func TestOvertakeAndMergeBack(t *testing.T) {
	cfg := testConfig()
	cfg.AllowOvertaking = true
	e, err := New(cfg, scenario.Ideal, WithRand(fixedRand{0.99}))
	require.NoError(t, err)

	truck := e.Place(scenario.Truck, Uphill, 100, 40)
	car := e.Place(scenario.Car, Uphill, 60, 70)

	overtook := false
	for i := 0; i < 150; i++ {
		e.Step(0)
		if car.Status == StatusOvertaking {
			overtook = true
		}
		if overtook && !car.InOpposingLane() {
			break
		}
	}
	require.True(t, overtook, "car never pulled out")
	assert.False(t, car.InOpposingLane(), "car never merged back")
	assert.Equal(t, StatusMoving, car.Status)
	assert.Greater(t, car.Position, truck.Position)
}

func TestOvertakingDisabled(t *testing.T) {
	e, err := New(testConfig(), scenario.Ideal, WithRand(fixedRand{0.99}))
	require.NoError(t, err)

	truck := e.Place(scenario.Truck, Uphill, 100, 40)
	car := e.Place(scenario.Car, Uphill, 60, 70)
	for i := 0; i < 100; i++ {
		e.Step(0)
		require.NotEqual(t, StatusOvertaking, car.Status)
		require.Less(t, car.Position, truck.Position)
	}
}

func TestRedLightHoldsQueue(t *testing.T) {
	cfg := testConfig()
	e, err := New(cfg, scenario.Real, WithRand(fixedRand{0.99}))
	require.NoError(t, err)

	// Downhill is red while the controller starts in FlowUphill.
	car := e.Place(scenario.Car, Downhill, 800, 70)
	for i := 0; i < 150; i++ {
		e.Step(0)
	}
	assert.Equal(t, StatusStopped, car.Status)
	assert.Greater(t, car.Position, scenario.DefaultRoad().StopLineDownhill)
}

func TestResetIsIdempotent(t *testing.T) {
	cfg := testConfig()
	cfg.Seed = 7
	cfg.StartTime = "12:00"
	e, err := New(cfg, scenario.Chaos)
	require.NoError(t, err)

	initial := e.Snapshot()
	var first Snapshot
	for i := 0; i < 400; i++ {
		first = e.Step(0)
	}
	require.NotEmpty(t, first.Vehicles)

	e.Reset()
	if diff := cmp.Diff(initial, e.Snapshot()); diff != "" {
		t.Fatalf("reset snapshot mismatch (-want +got):\n%s", diff)
	}
	var second Snapshot
	for i := 0; i < 400; i++ {
		second = e.Step(0)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("replay after reset diverged (-first +second):\n%s", diff)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	e, err := New(testConfig(), scenario.Ideal, WithRand(fixedRand{0.99}))
	require.NoError(t, err)
	e.Place(scenario.Car, Uphill, 100, 60)

	snap := e.Step(0)
	snap.Vehicles[0].Position = -1
	assert.NotEqual(t, -1.0, e.Snapshot().Vehicles[0].Position)
}

func TestStepUsesConfiguredInterval(t *testing.T) {
	a, err := New(testConfig(), scenario.Ideal, WithRand(fixedRand{0.99}))
	require.NoError(t, err)
	b, err := New(testConfig(), scenario.Ideal, WithRand(fixedRand{0.99}))
	require.NoError(t, err)
	a.Place(scenario.Car, Uphill, 0, 70)
	b.Place(scenario.Car, Uphill, 0, 70)

	sa := a.Step(0)
	sb := b.Step(testConfig().TickInterval)
	assert.Equal(t, sa.Vehicles[0].Position, sb.Vehicles[0].Position)

	c, err := New(testConfig(), scenario.Ideal, WithRand(fixedRand{0.99}))
	require.NoError(t, err)
	c.Place(scenario.Car, Uphill, 0, 70)
	sc := c.Step(100 * time.Millisecond)
	assert.InDelta(t, 2*sa.Vehicles[0].Position, sc.Vehicles[0].Position, 1e-9)
}

func TestSetTimeScale(t *testing.T) {
	e, err := New(testConfig(), scenario.Real)
	require.NoError(t, err)
	require.NoError(t, e.SetTimeScale(2.5))
	assert.Equal(t, 2.5, e.Config().TimeScale)

	var ce *ConfigurationError
	assert.True(t, errors.As(e.SetTimeScale(0), &ce))
	assert.Equal(t, 2.5, e.Config().TimeScale)
}

func TestHistorySampledEveryInterval(t *testing.T) {
	cfg := testConfig()
	cfg.HistoryIntervalMinutes = 1
	e, err := New(cfg, scenario.Real)
	require.NoError(t, err)

	var snap Snapshot
	for i := 0; i < 40; i++ { // ten simulated minutes
		snap = e.Step(0)
	}
	require.Len(t, snap.HistoryLog, 10)
	assert.Equal(t, 6, snap.HistoryLog[0].Time.Hour())
	assert.Equal(t, 1, snap.HistoryLog[0].Time.Minute())
}
