package scenario

import "fmt"

// Kind identifies a vehicle archetype.
type Kind string

const (
	Motorcycle Kind = "motorcycle"
	Car        Kind = "car"
	Pickup     Kind = "pickup"
	Bus        Kind = "bus"
	Truck      Kind = "truck"
)

// Archetype is the immutable description shared by every vehicle of a Kind.
// Speeds are km/h, accelerations km/h per second, lengths distance units.
type Archetype struct {
	Kind        Kind
	Label       string
	MaxSpeed    float64
	Accel       float64
	Decel       float64
	Length      float64
	CanOvertake bool
	Capacity    int
	// Priority ranks vehicles for overtaking: a lower number outranks a
	// higher one.
	Priority int

	FuelPerKm     float64 // fuel cost per kilometre while moving
	CostPerHour   float64 // operating cost per hour while stopped
	MaterialValue float64 // replacement value used for crash losses
	BreakdownBias float64 // relative odds of mechanical failure

	CargoProbability float64 // chance a spawned vehicle carries cargo; 0 = never
	SpawnWeight      float64
}

// CarriesCargo reports whether the archetype can be loaded.
func (a Archetype) CarriesCargo() bool {
	return a.CargoProbability > 0
}

var archetypes = []Archetype{
	{
		Kind: Motorcycle, Label: "Motorcycle",
		MaxSpeed: 85, Accel: 48, Decel: 90, Length: 3,
		CanOvertake: true, Capacity: 2, Priority: 1,
		FuelPerKm: 0.7, CostPerHour: 20, MaterialValue: 9000, BreakdownBias: 0.8,
		SpawnWeight: 15,
	},
	{
		Kind: Car, Label: "Car",
		MaxSpeed: 70, Accel: 40, Decel: 80, Length: 5,
		CanOvertake: true, Capacity: 5, Priority: 2,
		FuelPerKm: 1.75, CostPerHour: 51, MaterialValue: 45000, BreakdownBias: 1.0,
		SpawnWeight: 30,
	},
	{
		Kind: Pickup, Label: "Pickup",
		MaxSpeed: 65, Accel: 36, Decel: 76, Length: 6,
		CanOvertake: true, Capacity: 3, Priority: 3,
		FuelPerKm: 3.5, CostPerHour: 80, MaterialValue: 70000, BreakdownBias: 1.5,
		CargoProbability: 0.6, SpawnWeight: 20,
	},
	{
		Kind: Bus, Label: "Bus",
		MaxSpeed: 55, Accel: 24, Decel: 64, Length: 12,
		CanOvertake: true, Capacity: 40, Priority: 4,
		FuelPerKm: 10.5, CostPerHour: 100, MaterialValue: 250000, BreakdownBias: 2.5,
		SpawnWeight: 15,
	},
	{
		Kind: Truck, Label: "Truck",
		MaxSpeed: 40, Accel: 20, Decel: 60, Length: 14,
		CanOvertake: false, Capacity: 2, Priority: 5,
		FuelPerKm: 17.5, CostPerHour: 150, MaterialValue: 400000, BreakdownBias: 3.0,
		CargoProbability: 0.9, SpawnWeight: 20,
	},
}

// Archetypes returns a copy of the archetype table, lightest first.
func Archetypes() []Archetype {
	out := make([]Archetype, len(archetypes))
	copy(out, archetypes)
	return out
}

// Lookup returns the archetype for k.
func Lookup(k Kind) (Archetype, bool) {
	for _, a := range archetypes {
		if a.Kind == k {
			return a, true
		}
	}
	return Archetype{}, false
}

// MustLookup is Lookup for kinds known at compile time.
func MustLookup(k Kind) Archetype {
	a, ok := Lookup(k)
	if !ok {
		panic(fmt.Sprintf("scenario: no archetype for kind %q", k))
	}
	return a
}

// CargoType is an entry of the fixed cargo catalog.
type CargoType struct {
	Name         string  `json:"name"`
	Value        float64 `json:"value"`
	Perishable   bool    `json:"perishable"`
	DecayPerHour float64 `json:"decay_per_hour"` // fraction of value lost per stopped hour
}

var cargoCatalog = []CargoType{
	{Name: "vegetables", Value: 18000, Perishable: true, DecayPerHour: 0.04},
	{Name: "flowers", Value: 12000, Perishable: true, DecayPerHour: 0.08},
	{Name: "poultry", Value: 22000, Perishable: true, DecayPerHour: 0.05},
	{Name: "coffee", Value: 30000},
	{Name: "building materials", Value: 25000},
	{Name: "fuel", Value: 60000},
}

// CargoCatalog returns a copy of the cargo catalog.
func CargoCatalog() []CargoType {
	out := make([]CargoType, len(cargoCatalog))
	copy(out, cargoCatalog)
	return out
}
