package export

import (
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/bottleneck/internal/sim"
)

// Summary condenses a final snapshot into the headline numbers of a run.
type Summary struct {
	Scenario string    `json:"scenario"`
	Ticks    uint64    `json:"ticks"`
	Days     int       `json:"days"`
	Stats    sim.Stats `json:"stats"`

	Incidents    int     `json:"incidents"`
	Injuries     int     `json:"injuries"`
	IncidentLoss float64 `json:"incident_loss"`
	FrontalCount int     `json:"frontal_count"`
	RearEndCount int     `json:"rear_end_count"`

	SpeedMean   float64 `json:"speed_mean"`
	SpeedStdDev float64 `json:"speed_stddev"`
	SpeedP10    float64 `json:"speed_p10"`
	SpeedMedian float64 `json:"speed_median"`
	SpeedP90    float64 `json:"speed_p90"`
	PeakRisk    float64 `json:"peak_risk"`
	CostPerHour float64 `json:"cost_per_hour"`
}

// Metric is one named summary value.
type Metric struct {
	Name  string
	Value float64
}

// Summarize computes the summary of snap. Speed figures are taken over the
// history samples.
func Summarize(snap sim.Snapshot) Summary {
	s := Summary{
		Scenario:  snap.Scenario,
		Ticks:     snap.Tick,
		Days:      snap.Clock.DayCount,
		Stats:     snap.Stats,
		Incidents: len(snap.IncidentLog),
	}
	for _, r := range snap.IncidentLog {
		s.Injuries += r.Injuries
		s.IncidentLoss += r.TotalLoss()
		switch r.Kind {
		case sim.IncidentFrontal:
			s.FrontalCount++
		case sim.IncidentRearEnd:
			s.RearEndCount++
		}
	}

	if n := len(snap.HistoryLog); n > 0 {
		speeds := make([]float64, 0, n)
		for _, h := range snap.HistoryLog {
			speeds = append(speeds, h.AverageSpeed)
			s.PeakRisk = max(s.PeakRisk, h.Risk)
		}
		s.SpeedMean = stat.Mean(speeds, nil)
		// The sample std-dev is undefined for one point and NaN does not
		// survive JSON.
		if n > 1 {
			s.SpeedStdDev = stat.StdDev(speeds, nil)
		}
		slices.Sort(speeds)
		s.SpeedP10 = stat.Quantile(0.1, stat.Empirical, speeds, nil)
		s.SpeedMedian = stat.Quantile(0.5, stat.Empirical, speeds, nil)
		s.SpeedP90 = stat.Quantile(0.9, stat.Empirical, speeds, nil)

		span := snap.HistoryLog[n-1].Time.Sub(snap.HistoryLog[0].Time).Hours()
		if span > 0 {
			first := snap.HistoryLog[0].TotalCost
			s.CostPerHour = (snap.HistoryLog[n-1].TotalCost - first) / span
		}
	}
	return s
}

// Metrics lists the summary in sheet order.
func (s Summary) Metrics() []Metric {
	return []Metric{
		{"ticks", float64(s.Ticks)},
		{"days", float64(s.Days)},
		{"total_cost", s.Stats.TotalCost},
		{"fuel_cost", s.Stats.FuelCost},
		{"delay_cost", s.Stats.DelayCost},
		{"cargo_cost", s.Stats.CargoCost},
		{"incident_cost", s.Stats.IncidentCost},
		{"throughput", float64(s.Stats.Throughput)},
		{"crashes", float64(s.Stats.CrashCount)},
		{"breakdowns", float64(s.Stats.BreakdownCount)},
		{"near_misses", float64(s.Stats.NearMisses)},
		{"incidents", float64(s.Incidents)},
		{"frontal", float64(s.FrontalCount)},
		{"rear_end", float64(s.RearEndCount)},
		{"injuries", float64(s.Injuries)},
		{"incident_loss", s.IncidentLoss},
		{"run_mean_speed", s.Stats.RunMeanSpeed},
		{"run_speed_stddev", s.Stats.RunSpeedStdev},
		{"sampled_speed_mean", s.SpeedMean},
		{"sampled_speed_stddev", s.SpeedStdDev},
		{"sampled_speed_p10", s.SpeedP10},
		{"sampled_speed_median", s.SpeedMedian},
		{"sampled_speed_p90", s.SpeedP90},
		{"peak_risk", s.PeakRisk},
		{"cost_per_hour", s.CostPerHour},
	}
}
