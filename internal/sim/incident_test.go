package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/bottleneck/internal/scenario"
)

func TestResolveFrontalCrash(t *testing.T) {
	m := newIncidentModel(fixedRand{0})
	v := newTestVehicle(scenario.Pickup, StatusCrashed, 0)
	v.Occupants = 3
	v.inOpposingLane = true
	v.Cargo = &Cargo{Name: "coffee", Value: 30000, Remaining: 30000}
	now := time.Date(2000, 1, 1, 8, 15, 0, 0, time.UTC)

	rec, alert := m.Resolve(v, IncidentFrontal, 42, now, 1, 0)
	assert.Equal(t, uint64(1), rec.ID)
	assert.Equal(t, 3, rec.Injuries)
	assert.InDelta(t, 35000, rec.MaterialLoss, 1e-9)
	assert.InDelta(t, 9000, rec.CargoLoss, 1e-9)
	assert.InDelta(t, 21000, v.Cargo.Remaining, 1e-9)
	assert.Equal(t, "head-on collision while overtaking", rec.Cause)

	assert.Equal(t, rec.ID, alert.IncidentID)
	assert.Equal(t, 1, alert.Count)
	assert.InDelta(t, 44000, alert.Loss, 1e-9)
	assert.Len(t, m.Log(), 1)
}

func TestResolveBreakdown(t *testing.T) {
	m := newIncidentModel(fixedRand{0})
	v := newTestVehicle(scenario.Truck, StatusBrokenDown, 0)
	v.Direction = Downhill
	v.Occupants = 2

	rec, alert := m.Resolve(v, IncidentBreakdown, 7, time.Time{}, 1, 3)
	assert.Zero(t, rec.Injuries)
	assert.InDelta(t, 8000, rec.MaterialLoss, 1e-9)
	assert.Zero(t, rec.CargoLoss)
	assert.Equal(t, "brake failure on the descent", rec.Cause)
	assert.Equal(t, IncidentBreakdown, alert.Kind)
	assert.False(t, alert.Kind.IsCrash())
}

func TestIncidentLogIsCopied(t *testing.T) {
	m := newIncidentModel(fixedRand{0.5})
	v := newTestVehicle(scenario.Car, StatusCrashed, 0)
	m.Resolve(v, IncidentRearEnd, 1, time.Time{}, 1, 2)
	log := m.Log()
	log[0].Cause = "edited"
	assert.Equal(t, "rear-end collision on wet road", m.Log()[0].Cause)
}
