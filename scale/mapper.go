package scale

import (
	"fmt"
	"math"
)

// RangeConfig is an output range with its exponent.
type RangeConfig struct {
	Min      float64 `toml:"min" yaml:"min" json:"min"`
	Max      float64 `toml:"max" yaml:"max" json:"max"`
	Exponent float64 `toml:"exponent" yaml:"exponent" json:"exponent"`
}

// Config configures every visual mapping derived from power and weight.
type Config struct {
	Domain DomainConfig `toml:"domain" yaml:"domain" json:"domain"`
	Radius RangeConfig  `toml:"radius" yaml:"radius" json:"radius"`
	Label  RangeConfig  `toml:"label" yaml:"label" json:"label"`

	// LinkGap is the free space between two linked circles: Max for the
	// lightest edge down to Min for the heaviest.
	LinkGap RangeConfig `toml:"link_gap" yaml:"link_gap" json:"link_gap"`
	// LinkStrength maps weight onto spring stiffness.
	LinkStrength RangeConfig `toml:"link_strength" yaml:"link_strength" json:"link_strength"`

	StrokeFactor float64 `toml:"stroke_factor" yaml:"stroke_factor" json:"stroke_factor"`
	LabelCutoff  Cutoff  `toml:"label_cutoff" yaml:"label_cutoff" json:"label_cutoff"`
	EdgeCutoff   Cutoff  `toml:"edge_cutoff" yaml:"edge_cutoff" json:"edge_cutoff"`
}

// DefaultConfig is the stock publication-map tuning: radius [5,74] and
// labels [5,50] over a power ceiling of 3000.
func DefaultConfig() Config {
	return Config{
		Domain:       DomainConfig{Policy: DomainCeiling, Max: 3000},
		Radius:       RangeConfig{Min: 5, Max: 74, Exponent: 0.5},
		Label:        RangeConfig{Min: 5, Max: 50, Exponent: 0.5},
		LinkGap:      RangeConfig{Min: 10, Max: 60, Exponent: 0.5},
		LinkStrength: RangeConfig{Min: 0.2, Max: 1.0, Exponent: 1},
		StrokeFactor: 1,
		LabelCutoff:  Cutoff{Mode: CutoffFraction, Value: 0.02},
		EdgeCutoff:   Cutoff{Mode: CutoffNone},
	}
}

// Validate checks the domain policy, cutoffs and exponents.
func (c Config) Validate() error {
	if err := c.Domain.Validate(); err != nil {
		return err
	}
	for name, r := range map[string]RangeConfig{
		"radius": c.Radius, "label": c.Label, "link_gap": c.LinkGap, "link_strength": c.LinkStrength,
	} {
		if r.Exponent <= 0 {
			return fmt.Errorf("%s exponent must be positive, got %v", name, r.Exponent)
		}
		if r.Min < 0 || r.Max < r.Min {
			return fmt.Errorf("%s range [%v,%v] is invalid", name, r.Min, r.Max)
		}
	}
	if c.StrokeFactor < 0 {
		return fmt.Errorf("stroke_factor must be non-negative, got %v", c.StrokeFactor)
	}
	if err := c.LabelCutoff.Validate(); err != nil {
		return fmt.Errorf("label_cutoff: %w", err)
	}
	if err := c.EdgeCutoff.Validate(); err != nil {
		return fmt.Errorf("edge_cutoff: %w", err)
	}
	return nil
}

// Mapper owns the scale instances of one engine. Update re-derives their
// domains from a snapshot; the mapping functions are then pure.
type Mapper struct {
	cfg      Config
	radius   *PowScale
	label    *PowScale
	stroke   *PowScale
	gap      *PowScale
	strength *PowScale

	labelThreshold float64
	edgeThreshold  float64
}

// NewMapper builds a mapper from cfg with empty domains.
func NewMapper(cfg Config) *Mapper {
	return &Mapper{
		cfg:            cfg,
		radius:         NewPow(cfg.Radius.Exponent).Range(cfg.Radius.Min, cfg.Radius.Max).Clamp(true),
		label:          NewPow(cfg.Label.Exponent).Range(cfg.Label.Min, cfg.Label.Max).Clamp(true),
		stroke:         NewSqrt().Range(0, cfg.StrokeFactor),
		gap:            NewPow(cfg.LinkGap.Exponent).Range(cfg.LinkGap.Max, cfg.LinkGap.Min).Clamp(true),
		strength:       NewPow(cfg.LinkStrength.Exponent).Range(cfg.LinkStrength.Min, cfg.LinkStrength.Max).Clamp(true),
		labelThreshold: math.Inf(-1),
		edgeThreshold:  math.Inf(-1),
	}
}

// Update recomputes domains and visibility thresholds.
func (m *Mapper) Update(powers, weights []float64) {
	d0, d1 := m.cfg.Domain.Resolve(powers)
	m.radius.Domain(d0, d1)
	m.label.Domain(d0, d1)

	w0, w1 := DomainConfig{Policy: DomainSnapshot}.Resolve(weights)
	m.gap.Domain(w0, w1)
	m.strength.Domain(w0, w1)

	m.labelThreshold = m.cfg.LabelCutoff.Threshold(powers)
	m.edgeThreshold = m.cfg.EdgeCutoff.Threshold(weights)
}

// PowerDomain returns the current power domain.
func (m *Mapper) PowerDomain() (float64, float64) { return m.radius.GetDomain() }

// Radius returns the circle radius for a power value.
func (m *Mapper) Radius(power float64) float64 { return m.radius.Scale(power) }

// LabelSize returns the font size for a power value.
func (m *Mapper) LabelSize(power float64) float64 { return m.label.Scale(power) }

// LabelVisible reports whether a label clears the label cutoff.
func (m *Mapper) LabelVisible(power float64) bool { return power >= m.labelThreshold }

// StrokeWidth returns sqrt(weight) scaled by the stroke factor.
func (m *Mapper) StrokeWidth(weight float64) float64 {
	return m.stroke.Scale(math.Max(0, weight))
}

// EdgeVisible reports whether an edge clears the edge cutoff.
func (m *Mapper) EdgeVisible(weight float64) bool { return weight >= m.edgeThreshold }

// LinkDistance returns the rest length of a spring between circles of radii
// r1 and r2: both radii plus a weight-dependent gap.
func (m *Mapper) LinkDistance(weight, r1, r2 float64) float64 {
	return r1 + r2 + m.gap.Scale(weight)
}

// LinkStrength returns the spring stiffness for a weight.
func (m *Mapper) LinkStrength(weight float64) float64 { return m.strength.Scale(weight) }
