package sim

import (
	"time"

	"github.com/banshee-data/bottleneck/internal/scenario"
)

// IncidentKind classifies an incident.
type IncidentKind string

const (
	IncidentFrontal   IncidentKind = "frontal"
	IncidentRearEnd   IncidentKind = "rear_end"
	IncidentBreakdown IncidentKind = "breakdown"
)

// IsCrash reports whether the incident was a collision.
func (k IncidentKind) IsCrash() bool {
	return k == IncidentFrontal || k == IncidentRearEnd
}

// IncidentRecord is one entry of the incident log.
type IncidentRecord struct {
	ID           uint64        `json:"id"`
	Tick         uint64        `json:"tick"`
	Time         time.Time     `json:"time"`
	Day          int           `json:"day"`
	VehicleID    uint64        `json:"vehicle_id"`
	VehicleType  scenario.Kind `json:"vehicle_type"`
	Direction    Direction     `json:"direction"`
	Kind         IncidentKind  `json:"kind"`
	Position     float64       `json:"position"`
	Occupants    int           `json:"occupants"`
	Injuries     int           `json:"injuries"`
	MaterialLoss float64       `json:"material_loss"`
	CargoLoss    float64       `json:"cargo_loss"`
	Cause        string        `json:"cause"`
}

// TotalLoss is the material and cargo loss of the incident.
func (r IncidentRecord) TotalLoss() float64 {
	return r.MaterialLoss + r.CargoLoss
}

// Alert is the banner-level summary of the latest incident of a class.
type Alert struct {
	IncidentID  uint64        `json:"incident_id"`
	Kind        IncidentKind  `json:"kind"`
	Tick        uint64        `json:"tick"`
	Time        time.Time     `json:"time"`
	VehicleID   uint64        `json:"vehicle_id"`
	VehicleType scenario.Kind `json:"vehicle_type"`
	Injuries    int           `json:"injuries"`
	Loss        float64       `json:"loss"`
	Cause       string        `json:"cause"`
	// Count is the number of incidents of this class so far in the run.
	Count int `json:"count"`
}

// injuryOdds is the per-occupant injury probability by incident kind.
var injuryOdds = map[IncidentKind]float64{
	IncidentFrontal: 0.6,
	IncidentRearEnd: 0.25,
}

// IncidentModel turns conflicts and breakdowns into log records.
type IncidentModel struct {
	rng        Rand
	nextID     uint64
	log        []IncidentRecord
	crashes    int
	breakdowns int
}

func newIncidentModel(rng Rand) *IncidentModel {
	return &IncidentModel{rng: rng, nextID: 1}
}

// Resolve records an incident for v and returns the record and the alert to
// raise. Cargo lost in the incident is removed from v's load.
func (m *IncidentModel) Resolve(v *Vehicle, kind IncidentKind, tick uint64, now time.Time, day int, rain float64) (IncidentRecord, Alert) {
	rec := IncidentRecord{
		ID:          m.nextID,
		Tick:        tick,
		Time:        now,
		Day:         day,
		VehicleID:   v.ID,
		VehicleType: v.Type,
		Direction:   v.Direction,
		Kind:        kind,
		Position:    v.Position,
		Occupants:   v.Occupants,
		Cause:       describeCause(v, kind, rain),
	}
	m.nextID++

	for i := 0; i < v.Occupants; i++ {
		if m.rng.Float64() < injuryOdds[kind] {
			rec.Injuries++
		}
	}

	if kind.IsCrash() {
		rec.MaterialLoss = v.arch.MaterialValue * (0.5 + 0.5*m.rng.Float64())
		if v.Cargo != nil {
			rec.CargoLoss = v.Cargo.Remaining * (0.3 + 0.7*m.rng.Float64())
		}
		m.crashes++
	} else {
		rec.MaterialLoss = v.arch.MaterialValue * (0.02 + 0.04*m.rng.Float64())
		if v.Cargo != nil && v.Cargo.Perishable {
			rec.CargoLoss = v.Cargo.Remaining * (0.1 + 0.2*m.rng.Float64())
		}
		m.breakdowns++
	}
	if v.Cargo != nil {
		v.Cargo.Remaining -= rec.CargoLoss
	}
	v.AccumulatedCost += rec.TotalLoss()
	m.log = append(m.log, rec)

	alert := Alert{
		IncidentID:  rec.ID,
		Kind:        kind,
		Tick:        tick,
		Time:        now,
		VehicleID:   v.ID,
		VehicleType: v.Type,
		Injuries:    rec.Injuries,
		Loss:        rec.TotalLoss(),
		Cause:       rec.Cause,
		Count:       m.crashes,
	}
	if !kind.IsCrash() {
		alert.Count = m.breakdowns
	}
	return rec, alert
}

// Log returns a copy of the incident log.
func (m *IncidentModel) Log() []IncidentRecord {
	out := make([]IncidentRecord, len(m.log))
	copy(out, m.log)
	return out
}

func describeCause(v *Vehicle, kind IncidentKind, rain float64) string {
	switch kind {
	case IncidentFrontal:
		if v.inOpposingLane {
			return "head-on collision while overtaking"
		}
		return "head-on collision inside the shared passage"
	case IncidentRearEnd:
		if rain > 0 {
			return "rear-end collision on wet road"
		}
		return "rear-end collision in queue"
	default:
		if v.Direction == Uphill {
			return "mechanical failure climbing the grade"
		}
		return "brake failure on the descent"
	}
}
