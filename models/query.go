package models

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Powers returns the power of every node in snapshot order.
func (s *Snapshot) Powers() []float64 {
	out := make([]float64, len(s.Nodes))
	for i, n := range s.Nodes {
		out[i] = n.Power
	}
	return out
}

// Weights returns the weight of every edge in snapshot order.
func (s *Snapshot) Weights() []float64 {
	out := make([]float64, len(s.Edges))
	for i, e := range s.Edges {
		out[i] = e.Weight
	}
	return out
}

// FindNode returns the first node with the given id.
func (s *Snapshot) FindNode(id ID) (*NodeSpec, bool) {
	for i := range s.Nodes {
		if s.Nodes[i].ID == id {
			return &s.Nodes[i], true
		}
	}
	return nil, false
}

// Extent returns the minimum and maximum of values, or (0, 0) when empty.
func Extent(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	return floats.Min(values), floats.Max(values)
}

// Quantile returns the p-quantile (0 <= p <= 1) of values using the
// empirical CDF. values is not modified.
func Quantile(p float64, values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return stat.Quantile(p, stat.Empirical, sorted, nil)
}

// Describe computes the statistics block for a column of values.
func Describe(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mean, std := stat.MeanStdDev(sorted, nil)
	if len(sorted) == 1 {
		std = 0
	}
	return Stats{
		Count: float64(len(sorted)),
		Mean:  mean,
		Std:   std,
		Min:   sorted[0],
		P25:   stat.Quantile(0.25, stat.Empirical, sorted, nil),
		P50:   stat.Quantile(0.50, stat.Empirical, sorted, nil),
		P75:   stat.Quantile(0.75, stat.Empirical, sorted, nil),
		Max:   sorted[len(sorted)-1],
	}
}
