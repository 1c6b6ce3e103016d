package sim

import "math/rand/v2"

// Rand is the random source the engine draws from. *rand.Rand satisfies it;
// tests substitute scripted sources.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// NewRand returns the seeded source used when no Rand is injected.
func NewRand(seed int64) Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
}
