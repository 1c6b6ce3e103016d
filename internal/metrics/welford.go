// Package metrics holds small streaming statistics used by the engine's
// economics accumulator.
package metrics

import "math"

// Welford keeps a running mean and variance without storing observations.
// The zero value is ready to use.
type Welford struct {
	Count int
	Mean  float64
	M2    float64 // sum of squared differences from the mean
}

// Add folds one observation into the running statistics.
func (w *Welford) Add(x float64) {
	w.Count++
	delta := x - w.Mean
	w.Mean += delta / float64(w.Count)
	w.M2 += delta * (x - w.Mean)
}

// StdDev returns the population standard deviation, or 0 with fewer than two
// observations.
func (w *Welford) StdDev() float64 {
	if w.Count < 2 {
		return 0
	}
	return math.Sqrt(w.M2 / float64(w.Count))
}

// Reset clears all observations.
func (w *Welford) Reset() {
	*w = Welford{}
}
