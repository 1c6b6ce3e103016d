package scenario

// Road is the geometry of the simulated segment. Positions run from 0 at the
// downhill end to Length at the uphill end.
type Road struct {
	Length          float64
	BottleneckStart float64
	BottleneckEnd   float64
	// Uphill traffic waits before StopLineUphill, downhill traffic after
	// StopLineDownhill.
	StopLineUphill   float64
	StopLineDownhill float64

	SafeDistance    float64 // fixed following buffer
	OvertakeBuffer  float64 // clear gap needed ahead and behind to merge back
	SightDistance   float64 // how far a driver checks the opposing lane before passing
	DetectionWindow float64 // distance from a red stop line where braking starts
	ApproachGain    float64 // km/h of allowed speed per unit of distance to a red stop line
	StopLineSlack   float64 // distance from a red stop line treated as arrived
	DangerMargin    float64 // no-overtaking margin around the bottleneck
	ClearanceMargin float64 // extra distance past the bottleneck that must be empty

	SpawnOffset    float64 // spawn point distance outside the segment
	SpawnClearance float64 // spawn point must be free over this distance
	RemovalMargin  float64 // vehicles beyond the segment by this much are dropped

	// MotionGain converts km/h × seconds into distance units. The segment is
	// drawn compressed so one unit is not one metre.
	MotionGain float64
}

// DefaultRoad returns the geometry of the surveyed passage.
func DefaultRoad() Road {
	return Road{
		Length:           1000,
		BottleneckStart:  400,
		BottleneckEnd:    600,
		StopLineUphill:   350,
		StopLineDownhill: 650,
		SafeDistance:     25,
		OvertakeBuffer:   20,
		SightDistance:    250,
		DetectionWindow:  150,
		ApproachGain:     0.8,
		StopLineSlack:    5,
		DangerMargin:     100,
		ClearanceMargin:  50,
		SpawnOffset:      80,
		SpawnClearance:   90,
		RemovalMargin:    200,
		MotionGain:       1.6,
	}
}

// InBottleneck reports whether x lies strictly inside the shared-lane zone.
func (r Road) InBottleneck(x float64) bool {
	return x > r.BottleneckStart && x < r.BottleneckEnd
}

// InDangerZone reports whether x is within DangerMargin of the bottleneck.
func (r Road) InDangerZone(x float64) bool {
	return x > r.BottleneckStart-r.DangerMargin && x < r.BottleneckEnd+r.DangerMargin
}

// RushHour is a segment of the day with its demand multiplier. Hours are
// fractional (7.5 is 07:30).
type RushHour struct {
	Start  float64
	End    float64
	Factor float64
}

// RushHours is the weekday demand curve.
var RushHours = []RushHour{
	{Start: 7.5, End: 10.0, Factor: 2.5},
	{Start: 12.0, End: 15.5, Factor: 3.0},
	{Start: 17.5, End: 19.5, Factor: 2.2},
}

// Night bounds and the demand multiplier used between them.
const (
	NightStartHour = 22.0
	NightEndHour   = 5.0
	NightDensity   = 0.2
)

// AccidentRates are the conflict and failure constants. They were tuned by
// trial and must not be re-derived.
type AccidentRates struct {
	BaseChance     float64 // crash chance on any detected conflict
	RainMultiplier float64 // added per unit of rain intensity
	FrontalPenalty float64 // added for head-on conflicts

	RearEndOverlap float64 // negative gap at which a rear-end conflict is detected
	ForcedStopGap  float64 // gap below which a follower is forced to a halt
	HaltGap        float64 // gap below which a follower targets zero speed
	MinLeaderSpeed float64 // leader must be faster than this to be overtaken

	BreakdownBase float64 // per-second mechanical failure odds
	UphillGrade   float64 // failure multiplier climbing the grade
	LowSpeed      float64 // km/h below which a vehicle accumulates stress
	StressScale   float64 // seconds of stress that double the failure odds
}

// DefaultAccidentRates returns the tuned constants.
func DefaultAccidentRates() AccidentRates {
	return AccidentRates{
		BaseChance:     0.000000005,
		RainMultiplier: 0.00000005,
		FrontalPenalty: 0.05,
		RearEndOverlap: -3.0,
		ForcedStopGap:  2.0,
		HaltGap:        15.0,
		MinLeaderSpeed: 15.0,
		BreakdownBase:  0.00002,
		UphillGrade:    1.5,
		LowSpeed:       10.0,
		StressScale:    30.0,
	}
}

// CostRates are the economic constants, in local currency.
type CostRates struct {
	PassengerValuePerHour float64 // time value of one stopped passenger
	CargoStopRatePerHour  float64 // flat rate for a stopped cargo vehicle
}

// DefaultCostRates returns the surveyed cost constants.
func DefaultCostRates() CostRates {
	return CostRates{
		PassengerValuePerHour: 15,
		CargoStopRatePerHour:  300,
	}
}

// Params bundles every constant the engine reads.
type Params struct {
	Road           Road
	Rates          AccidentRates
	Costs          CostRates
	BaseSpawnRate  float64 // per-tick spawn probability before multipliers
	TicksPerMinute float64 // physical ticks per simulated minute at time scale 1
}

// DefaultParams returns the tuned parameter set.
func DefaultParams() Params {
	return Params{
		Road:           DefaultRoad(),
		Rates:          DefaultAccidentRates(),
		Costs:          DefaultCostRates(),
		BaseSpawnRate:  0.03,
		TicksPerMinute: 4,
	}
}
