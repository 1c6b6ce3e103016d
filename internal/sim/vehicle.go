package sim

import "github.com/banshee-data/bottleneck/internal/scenario"

// Cargo is the load carried by a vehicle. Remaining falls as perishable
// goods decay or a crash destroys part of the load.
type Cargo struct {
	Name         string
	Value        float64
	Remaining    float64
	Perishable   bool
	DecayPerHour float64
}

// Vehicle is one simulated vehicle. Position is the front bumper.
type Vehicle struct {
	ID           uint64
	Type         scenario.Kind
	Direction    Direction
	Position     float64
	Velocity     float64 // km/h, never negative
	Acceleration float64 // km/h per second over the last sub-step
	Status       Status
	Cargo        *Cargo
	Occupants    int

	AccumulatedCost float64
	SpawnTick       uint64
	IncidentTick    uint64

	arch           scenario.Archetype
	inOpposingLane bool
	passing        uint64 // ID of the vehicle being overtaken
	stress         float64 // seconds spent below LowSpeed
	tickDistance   float64 // distance covered during the current tick
}

// Archetype returns the vehicle's immutable description.
func (v *Vehicle) Archetype() scenario.Archetype { return v.arch }

// InOpposingLane reports whether the vehicle is mid-overtake.
func (v *Vehicle) InOpposingLane() bool { return v.inOpposingLane }

// VehicleView is the snapshot copy of a vehicle.
type VehicleView struct {
	ID              uint64        `json:"id"`
	Type            scenario.Kind `json:"type"`
	Direction       Direction     `json:"direction"`
	Position        float64       `json:"position"`
	Velocity        float64       `json:"velocity"`
	Acceleration    float64       `json:"acceleration"`
	Status          Status        `json:"status"`
	OpposingLane    bool          `json:"opposing_lane"`
	Occupants       int           `json:"occupants"`
	Cargo           *CargoView    `json:"cargo,omitempty"`
	AccumulatedCost float64       `json:"accumulated_cost"`
}

// CargoView is the snapshot copy of a load.
type CargoView struct {
	Name       string  `json:"name"`
	Value      float64 `json:"value"`
	Remaining  float64 `json:"remaining"`
	Perishable bool    `json:"perishable"`
}

func (v *Vehicle) view() VehicleView {
	out := VehicleView{
		ID:              v.ID,
		Type:            v.Type,
		Direction:       v.Direction,
		Position:        v.Position,
		Velocity:        v.Velocity,
		Acceleration:    v.Acceleration,
		Status:          v.Status,
		OpposingLane:    v.inOpposingLane,
		Occupants:       v.Occupants,
		AccumulatedCost: v.AccumulatedCost,
	}
	if v.Cargo != nil {
		out.Cargo = &CargoView{
			Name:       v.Cargo.Name,
			Value:      v.Cargo.Value,
			Remaining:  v.Cargo.Remaining,
			Perishable: v.Cargo.Perishable,
		}
	}
	return out
}
