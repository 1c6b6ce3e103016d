package sim

import (
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/bottleneck/internal/metrics"
	"github.com/banshee-data/bottleneck/internal/scenario"
)

// Stats are the running totals of a run. Money is local currency, speeds
// km/h.
type Stats struct {
	TotalCost    float64 `json:"total_cost"`
	FuelCost     float64 `json:"fuel_cost"`
	DelayCost    float64 `json:"delay_cost"`
	CargoCost    float64 `json:"cargo_cost"`
	IncidentCost float64 `json:"incident_cost"`

	AverageSpeed  float64 `json:"average_speed"` // mean over vehicles on the road now
	RunMeanSpeed  float64 `json:"run_mean_speed"`
	RunSpeedStdev float64 `json:"run_speed_stddev"`

	VehicleCount   int `json:"vehicle_count"`
	StoppedCount   int `json:"stopped_count"`
	Throughput     int `json:"throughput"`
	CrashCount     int `json:"crash_count"`
	BreakdownCount int `json:"breakdown_count"`
	NearMisses     int `json:"near_misses"`
}

// HistorySample is one point of the rolling history log.
type HistorySample struct {
	Time         time.Time `json:"time"`
	Day          int       `json:"day"`
	VehicleCount int       `json:"vehicle_count"`
	AverageSpeed float64   `json:"average_speed"`
	TotalCost    float64   `json:"total_cost"`
	Rain         float64   `json:"rain"`
	Risk         float64   `json:"risk"`
}

// Economics accumulates costs and samples the history log.
type Economics struct {
	costs      scenario.CostRates
	interval   int
	limit      int
	lastBucket int

	stats   Stats
	speed   metrics.Welford
	history []HistorySample
}

func newEconomics(costs scenario.CostRates, intervalMinutes, limit int) *Economics {
	return &Economics{costs: costs, interval: intervalMinutes, limit: limit}
}

// Accumulate charges one tick of simulated time, simHours long, to every
// vehicle and refreshes the per-tick counters.
func (e *Economics) Accumulate(vehicles []*Vehicle, simHours float64) {
	speeds := make([]float64, 0, len(vehicles))
	stopped := 0
	for _, v := range vehicles {
		speeds = append(speeds, v.Velocity)
		e.speed.Add(v.Velocity)

		if !v.Status.Halted() {
			fuel := v.arch.FuelPerKm * v.tickDistance / 1000
			e.stats.FuelCost += fuel
			v.AccumulatedCost += fuel
			continue
		}

		stopped++
		hourly := v.arch.CostPerHour + float64(v.Occupants)*e.costs.PassengerValuePerHour
		if v.Cargo != nil {
			hourly = e.costs.CargoStopRatePerHour
		}
		delay := hourly * simHours
		e.stats.DelayCost += delay
		v.AccumulatedCost += delay

		if c := v.Cargo; c != nil && c.Perishable && c.Remaining > 0 {
			decay := min(c.Value*c.DecayPerHour*simHours, c.Remaining)
			c.Remaining -= decay
			e.stats.CargoCost += decay
			v.AccumulatedCost += decay
		}
	}

	e.stats.VehicleCount = len(vehicles)
	e.stats.StoppedCount = stopped
	e.stats.AverageSpeed = 0
	if len(speeds) > 0 {
		e.stats.AverageSpeed = stat.Mean(speeds, nil)
	}
	e.stats.RunMeanSpeed = e.speed.Mean
	e.stats.RunSpeedStdev = e.speed.StdDev()
	e.total()
}

// RecordIncident adds the losses of rec to the totals.
func (e *Economics) RecordIncident(rec IncidentRecord) {
	e.stats.IncidentCost += rec.MaterialLoss
	e.stats.CargoCost += rec.CargoLoss
	if rec.Kind.IsCrash() {
		e.stats.CrashCount++
	} else {
		e.stats.BreakdownCount++
	}
	e.total()
}

// RecordFlow adds exited vehicles to throughput and near misses to the
// counter.
func (e *Economics) RecordFlow(exited, nearMisses int) {
	e.stats.Throughput += exited
	e.stats.NearMisses += nearMisses
}

func (e *Economics) total() {
	e.stats.TotalCost = e.stats.FuelCost + e.stats.DelayCost + e.stats.CargoCost + e.stats.IncidentCost
}

// MaybeSample appends a history sample when minutes crosses into a new
// sampling interval. It reports whether a sample was taken.
func (e *Economics) MaybeSample(minutes int, now time.Time, day int, rain, risk float64) bool {
	bucket := minutes / e.interval
	if bucket <= e.lastBucket {
		return false
	}
	e.lastBucket = bucket
	e.history = append(e.history, HistorySample{
		Time:         now,
		Day:          day,
		VehicleCount: e.stats.VehicleCount,
		AverageSpeed: e.stats.AverageSpeed,
		TotalCost:    e.stats.TotalCost,
		Rain:         rain,
		Risk:         risk,
	})
	if e.limit > 0 && len(e.history) > e.limit {
		n := copy(e.history, e.history[len(e.history)-e.limit:])
		e.history = e.history[:n]
	}
	return true
}

// Stats returns the current totals.
func (e *Economics) Stats() Stats { return e.stats }

// History returns a copy of the history log.
func (e *Economics) History() []HistorySample {
	out := make([]HistorySample, len(e.history))
	copy(out, e.history)
	return out
}
