package physics

import (
	opensimplex "github.com/ojrac/opensimplex-go"
)

const jitterMagnitude = 1e-6

// Jitter produces tiny non-zero offsets used to break ties when two nodes
// coincide. The sequence is a walk through a seeded simplex noise field, so
// layouts are reproducible for a given seed.
type Jitter struct {
	noise opensimplex.Noise
	step  float64
}

// NewJitter creates a jitter source for seed.
func NewJitter(seed int64) *Jitter {
	return &Jitter{noise: opensimplex.New(seed)}
}

// Next returns a value in [-1e-6, 1e-6] that is never zero.
func (j *Jitter) Next() float64 {
	j.step++
	// Off-lattice sample points; simplex noise is zero on the lattice.
	v := j.noise.Eval2(j.step*0.618034+0.1, 0.377)
	if v == 0 {
		v = 0.5
	}
	return v * jitterMagnitude
}
