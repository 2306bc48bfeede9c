package scale

import (
	"fmt"
	"math"

	"github.com/TFMV/pubmap/models"
)

// DomainPolicy decides how the power domain is derived for each snapshot.
type DomainPolicy string

const (
	// DomainSnapshot uses the snapshot's own extent, so magnitudes are
	// relative to the year on display.
	DomainSnapshot DomainPolicy = "snapshot"
	// DomainCeiling takes the lower bound from the snapshot and holds the
	// upper bound at a fixed ceiling, so magnitudes compare across years.
	DomainCeiling DomainPolicy = "ceiling"
	// DomainFixed holds both bounds.
	DomainFixed DomainPolicy = "fixed"
)

// DomainConfig configures the domain policy. Min is used by DomainFixed and
// Max by DomainCeiling and DomainFixed.
type DomainConfig struct {
	Policy DomainPolicy `toml:"policy" yaml:"policy" json:"policy"`
	Min    float64      `toml:"min" yaml:"min" json:"min"`
	Max    float64      `toml:"max" yaml:"max" json:"max"`
}

// Validate checks the policy name and bounds.
func (c DomainConfig) Validate() error {
	switch c.Policy {
	case DomainSnapshot:
		return nil
	case DomainCeiling:
		if c.Max <= 0 {
			return fmt.Errorf("domain ceiling must be positive, got %v", c.Max)
		}
		return nil
	case DomainFixed:
		if c.Max <= c.Min {
			return fmt.Errorf("fixed domain [%v,%v] is empty", c.Min, c.Max)
		}
		return nil
	default:
		return fmt.Errorf("unknown domain policy %q", c.Policy)
	}
}

// Resolve returns the domain for the given values.
func (c DomainConfig) Resolve(values []float64) (float64, float64) {
	lo, hi := models.Extent(values)
	switch c.Policy {
	case DomainCeiling:
		return lo, math.Max(lo, c.Max)
	case DomainFixed:
		return c.Min, c.Max
	default:
		return lo, hi
	}
}

// CutoffMode selects how a visibility threshold is derived.
type CutoffMode string

const (
	CutoffNone       CutoffMode = "none"
	CutoffFraction   CutoffMode = "fraction"   // Value * max(values)
	CutoffPercentile CutoffMode = "percentile" // Value-th percentile, 0..100
)

// Cutoff hides labels or edges whose metric falls below a threshold.
type Cutoff struct {
	Mode  CutoffMode `toml:"mode" yaml:"mode" json:"mode"`
	Value float64    `toml:"value" yaml:"value" json:"value"`
}

// Validate checks the mode and value.
func (c Cutoff) Validate() error {
	switch c.Mode {
	case CutoffNone, "":
		return nil
	case CutoffFraction:
		if c.Value < 0 || c.Value > 1 {
			return fmt.Errorf("fraction cutoff must be in [0,1], got %v", c.Value)
		}
		return nil
	case CutoffPercentile:
		if c.Value < 0 || c.Value > 100 {
			return fmt.Errorf("percentile cutoff must be in [0,100], got %v", c.Value)
		}
		return nil
	default:
		return fmt.Errorf("unknown cutoff mode %q", c.Mode)
	}
}

// Threshold returns the smallest visible value.
func (c Cutoff) Threshold(values []float64) float64 {
	if len(values) == 0 {
		return math.Inf(-1)
	}
	switch c.Mode {
	case CutoffFraction:
		_, hi := models.Extent(values)
		return hi * c.Value
	case CutoffPercentile:
		return models.Quantile(c.Value/100, values)
	default:
		return math.Inf(-1)
	}
}
