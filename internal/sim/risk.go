package sim

import "github.com/banshee-data/bottleneck/internal/scenario"

// RiskInput is what the risk estimate depends on.
type RiskInput struct {
	Hour         float64 // fractional hour of day
	Rain         float64
	Scenario     scenario.Scenario
	Density      float64
	VehicleCount int
}

// riskBand is the base risk for hours in [From, To).
type riskBand struct {
	From, To float64
	Base     float64
}

var riskBands = []riskBand{
	{From: 5, To: 6.5, Base: 20},
	{From: 6.5, To: 9.5, Base: 35},
	{From: 9.5, To: 12, Base: 15},
	{From: 12, To: 15.5, Base: 40},
	{From: 15.5, To: 17, Base: 25},
	{From: 17, To: 20, Base: 45},
	{From: 20, To: 22, Base: 20},
}

const nightRisk = 5

// BaseRisk returns the time-of-day component of the risk estimate.
func BaseRisk(hour float64) float64 {
	for _, b := range riskBands {
		if hour >= b.From && hour < b.To {
			return b.Base
		}
	}
	return nightRisk
}

func isNight(hour float64) bool {
	return hour >= scenario.NightStartHour || hour < scenario.NightEndHour
}

// EstimateRisk returns the advisory risk percentage in [0, 100]. A nil rng
// drops the ±2 jitter.
func EstimateRisk(in RiskInput, rng Rand) float64 {
	if isNight(in.Hour) && in.Rain == 0 && in.VehicleCount <= 2 {
		if rng == nil {
			return 1
		}
		return 2 * rng.Float64()
	}
	risk := BaseRisk(in.Hour) + 4*in.Rain + in.Scenario.RiskPenalty + 5*(in.Density-1)
	if rng != nil {
		risk += 4*rng.Float64() - 2
	}
	return clamp(risk, 0, 100)
}
