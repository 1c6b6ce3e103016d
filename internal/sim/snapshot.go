package sim

import "time"

// ClockView is the simulated time as reported in snapshots.
type ClockView struct {
	SimulatedTime time.Time `json:"simulated_time"`
	DayCount      int       `json:"day_count"`
}

// Snapshot is a self-contained copy of the engine state after a tick.
// Nothing in it aliases engine memory.
type Snapshot struct {
	Tick           uint64           `json:"tick"`
	Scenario       string           `json:"scenario"`
	Vehicles       []VehicleView    `json:"vehicles"`
	TrafficSignal  SignalState      `json:"traffic_signal"`
	Clock          ClockView        `json:"clock"`
	Stats          Stats            `json:"stats"`
	RiskPercentage float64          `json:"risk_percentage"`
	ActiveAlert    *Alert           `json:"active_alert,omitempty"`
	BreakdownAlert *Alert           `json:"breakdown_alert,omitempty"`
	HistoryLog     []HistorySample  `json:"history_log"`
	IncidentLog    []IncidentRecord `json:"incident_log"`
}

// VehiclesByStatus counts the snapshot's vehicles per status.
func (s Snapshot) VehiclesByStatus() map[Status]int {
	out := make(map[Status]int)
	for _, v := range s.Vehicles {
		out[v.Status]++
	}
	return out
}

func copyAlert(a *Alert) *Alert {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}
