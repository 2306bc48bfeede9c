// Package scale maps raw power and weight metrics onto visual magnitudes.
package scale

import "math"

// PowScale is a power-law mapping from a continuous domain onto a range:
//
//	scale(v) = r0 + t^e * (r1 - r0),  t = (v - d0) / (d1 - d0)
//
// with v clamped to [d0, d1] when clamping is enabled.
type PowScale struct {
	d0, d1   float64
	r0, r1   float64
	exponent float64
	clamp    bool
}

// NewPow returns a scale with unit domain and range and the given exponent.
func NewPow(exponent float64) *PowScale {
	return &PowScale{d0: 0, d1: 1, r0: 0, r1: 1, exponent: exponent}
}

// NewSqrt returns a power scale with exponent 0.5.
func NewSqrt() *PowScale { return NewPow(0.5) }

// Domain sets the input extent.
func (s *PowScale) Domain(d0, d1 float64) *PowScale {
	s.d0, s.d1 = d0, d1
	return s
}

// Range sets the output extent. r0 may exceed r1 for a decreasing scale.
func (s *PowScale) Range(r0, r1 float64) *PowScale {
	s.r0, s.r1 = r0, r1
	return s
}

// Clamp enables or disables clamping of inputs to the domain.
func (s *PowScale) Clamp(clamp bool) *PowScale {
	s.clamp = clamp
	return s
}

// Exponent sets the exponent.
func (s *PowScale) Exponent(e float64) *PowScale {
	s.exponent = e
	return s
}

// GetDomain returns the current domain.
func (s *PowScale) GetDomain() (float64, float64) { return s.d0, s.d1 }

// GetRange returns the current range.
func (s *PowScale) GetRange() (float64, float64) { return s.r0, s.r1 }

// Scale maps v onto the range.
func (s *PowScale) Scale(v float64) float64 {
	lo, hi := s.d0, s.d1
	if s.clamp {
		if lo > hi {
			lo, hi = hi, lo
		}
		v = math.Max(lo, math.Min(hi, v))
	}

	var t float64
	if span := s.d1 - s.d0; span == 0 || math.IsNaN(span) {
		t = 0.5
	} else {
		t = (v - s.d0) / span
	}

	// Odd extension keeps unclamped inputs below d0 defined.
	if t < 0 {
		t = -math.Pow(-t, s.exponent)
	} else {
		t = math.Pow(t, s.exponent)
	}
	return s.r0 + t*(s.r1-s.r0)
}

// Copy returns an independent copy of the scale.
func (s *PowScale) Copy() *PowScale {
	c := *s
	return &c
}
