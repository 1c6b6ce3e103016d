package sim

import (
	"cmp"
	"slices"

	"github.com/banshee-data/bottleneck/internal/scenario"
)

// Population owns the live vehicles: spawning, lookup and removal.
type Population struct {
	road     scenario.Road
	baseRate float64
	rng      Rand
	derating float64

	arch      []scenario.Archetype
	catalog   []scenario.CargoType
	weightSum float64

	nextID   uint64
	vehicles []*Vehicle
}

func newPopulation(p scenario.Params, rng Rand, derating float64) *Population {
	pop := &Population{
		road:     p.Road,
		baseRate: p.BaseSpawnRate,
		rng:      rng,
		derating: derating,
		arch:     scenario.Archetypes(),
		catalog:  scenario.CargoCatalog(),
		nextID:   1,
	}
	for _, a := range pop.arch {
		pop.weightSum += a.SpawnWeight
	}
	return pop
}

// DensityFactor is the traffic demand multiplier for a fractional hour.
func DensityFactor(hour float64) float64 {
	if hour >= scenario.NightStartHour || hour < scenario.NightEndHour {
		return scenario.NightDensity
	}
	for _, rh := range scenario.RushHours {
		if hour >= rh.Start && hour < rh.End {
			return rh.Factor
		}
	}
	return 1
}

// WeatherPenalty is the fraction of demand suppressed by heavy rain.
func WeatherPenalty(rain float64) float64 {
	if rain > 6 {
		return 0.4
	}
	return 0
}

// SpawnProbability is the per-tick chance of a vehicle entering in one
// direction, clamped to 1.
func (p *Population) SpawnProbability(density, demand, weatherPenalty, timeScale float64) float64 {
	prob := p.baseRate * demand * density * (1 - weatherPenalty) * timeScale
	if prob > 1 {
		return 1
	}
	return prob
}

// spawnPoint is where vehicles travelling in d enter.
func (p *Population) spawnPoint(d Direction) float64 {
	if d == Downhill {
		return p.road.Length + p.road.SpawnOffset
	}
	return -p.road.SpawnOffset
}

// spawnBlocked reports whether a vehicle of direction d is still within
// SpawnClearance of the entry point.
func (p *Population) spawnBlocked(d Direction) bool {
	x0 := p.spawnPoint(d)
	for _, v := range p.vehicles {
		if v.Direction != d {
			continue
		}
		if d.Sign()*(v.Position-x0) < p.road.SpawnClearance {
			return true
		}
	}
	return false
}

// TrySpawn draws whether a vehicle enters in direction d this tick and adds
// it if the entry point is clear.
func (p *Population) TrySpawn(d Direction, prob float64, tick uint64) (*Vehicle, bool) {
	if p.rng.Float64() >= prob || p.spawnBlocked(d) {
		return nil, false
	}
	a := p.pickArchetype()
	v := &Vehicle{
		ID:        p.nextID,
		Type:      a.Kind,
		Direction: d,
		Position:  p.spawnPoint(d),
		Velocity:  a.MaxSpeed * p.derating,
		Status:    StatusMoving,
		Occupants: 1 + p.rng.IntN(a.Capacity),
		SpawnTick: tick,
		arch:      a,
	}
	if a.CarriesCargo() && p.rng.Float64() < a.CargoProbability {
		c := p.catalog[p.rng.IntN(len(p.catalog))]
		v.Cargo = &Cargo{
			Name:         c.Name,
			Value:        c.Value,
			Remaining:    c.Value,
			Perishable:   c.Perishable,
			DecayPerHour: c.DecayPerHour,
		}
	}
	p.nextID++
	p.vehicles = append(p.vehicles, v)
	return v, true
}

func (p *Population) pickArchetype() scenario.Archetype {
	r := p.rng.Float64() * p.weightSum
	for _, a := range p.arch {
		if r < a.SpawnWeight {
			return a
		}
		r -= a.SpawnWeight
	}
	return p.arch[len(p.arch)-1]
}

// Place inserts a vehicle of kind k at x travelling in d at speed kmh. It
// bypasses the spawn draw and is used to set up fixed situations.
func (p *Population) Place(k scenario.Kind, d Direction, x, kmh float64, tick uint64) *Vehicle {
	a := scenario.MustLookup(k)
	v := &Vehicle{
		ID:        p.nextID,
		Type:      k,
		Direction: d,
		Position:  x,
		Velocity:  kmh,
		Status:    StatusMoving,
		Occupants: 1,
		SpawnTick: tick,
		arch:      a,
	}
	if kmh < 1 {
		v.Status = StatusStopped
	}
	p.nextID++
	p.vehicles = append(p.vehicles, v)
	return v
}

// Vehicles returns the live vehicles in spawn order. The slice is shared.
func (p *Population) Vehicles() []*Vehicle { return p.vehicles }

// Len returns the number of live vehicles.
func (p *Population) Len() int { return len(p.vehicles) }

// Find returns the live vehicle with id, or nil.
func (p *Population) Find(id uint64) *Vehicle {
	for _, v := range p.vehicles {
		if v.ID == id {
			return v
		}
	}
	return nil
}

// Lane returns the vehicles travelling in d ordered leader first. Ties keep
// the older vehicle ahead.
func (p *Population) Lane(d Direction) []*Vehicle {
	lane := make([]*Vehicle, 0, len(p.vehicles))
	for _, v := range p.vehicles {
		if v.Direction == d {
			lane = append(lane, v)
		}
	}
	s := d.Sign()
	slices.SortStableFunc(lane, func(a, b *Vehicle) int {
		if c := cmp.Compare(s*b.Position, s*a.Position); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return lane
}

// Sweep drops vehicles that left the segment and wrecks whose incident has
// expired. exited counts vehicles that drove off the far end.
func (p *Population) Sweep(tick, incidentTicks uint64) (exited, cleared int) {
	lo := -p.road.RemovalMargin
	hi := p.road.Length + p.road.RemovalMargin
	kept := p.vehicles[:0]
	for _, v := range p.vehicles {
		switch {
		case v.Status.Terminal() && tick-v.IncidentTick >= incidentTicks:
			cleared++
		case v.Position > hi || v.Position < lo:
			if (v.Direction == Uphill) == (v.Position > hi) {
				exited++
			}
		default:
			kept = append(kept, v)
		}
	}
	for i := len(kept); i < len(p.vehicles); i++ {
		p.vehicles[i] = nil
	}
	p.vehicles = kept
	return exited, cleared
}
