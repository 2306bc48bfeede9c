package physics

import (
	"fmt"
	"math"

	"github.com/TFMV/pubmap/graph"
	"gonum.org/v1/gonum/spatial/barneshut"
	"gonum.org/v1/gonum/spatial/r2"
)

// ManyBodyConfig configures the repulsion force.
type ManyBodyConfig struct {
	Strength    float64 `toml:"strength" yaml:"strength" json:"strength"` // negative repels
	Theta       float64 `toml:"theta" yaml:"theta" json:"theta"`          // Barnes-Hut accuracy
	DistanceMin float64 `toml:"distance_min" yaml:"distance_min" json:"distance_min"`
	DistanceMax float64 `toml:"distance_max" yaml:"distance_max" json:"distance_max"` // 0 means unbounded

	// ScaleByCount multiplies Strength by sqrt(ReferenceCount/n) so that
	// visual density stays roughly constant as the node count changes.
	ScaleByCount   bool `toml:"scale_by_count" yaml:"scale_by_count" json:"scale_by_count"`
	ReferenceCount int  `toml:"reference_count" yaml:"reference_count" json:"reference_count"`
}

// Validate checks parameter ranges.
func (c ManyBodyConfig) Validate() error {
	if c.Theta < 0 {
		return fmt.Errorf("many_body theta must be non-negative, got %v", c.Theta)
	}
	if c.DistanceMin < 0 || (c.DistanceMax > 0 && c.DistanceMax < c.DistanceMin) {
		return fmt.Errorf("many_body distance bounds [%v,%v] are invalid", c.DistanceMin, c.DistanceMax)
	}
	if c.ScaleByCount && c.ReferenceCount <= 0 {
		return fmt.Errorf("many_body reference_count must be positive when scale_by_count is set")
	}
	return nil
}

// body adapts a node to the barneshut particle interface.
type body struct {
	node *graph.Node
}

func (b *body) Coord2() r2.Vec { return r2.Vec{X: b.node.X, Y: b.node.Y} }
func (b *body) Mass() float64  { return 1 }

// ManyBody applies approximate pairwise repulsion (or attraction, for a
// positive strength) using a Barnes-Hut quad-tree.
type ManyBody struct {
	cfg       ManyBodyConfig
	bodies    []*body
	particles []barneshut.Particle2
	jitter    *Jitter
}

// NewManyBody creates a many-body force.
func NewManyBody(cfg ManyBodyConfig) *ManyBody {
	return &ManyBody{cfg: cfg}
}

// Initialize implements Force.
func (m *ManyBody) Initialize(g *graph.Graph, jitter *Jitter) {
	m.jitter = jitter
	m.bodies = make([]*body, len(g.Nodes))
	m.particles = make([]barneshut.Particle2, len(g.Nodes))
	for i, n := range g.Nodes {
		b := &body{node: n}
		m.bodies[i] = b
		m.particles[i] = b
	}
}

// EffectiveStrength returns the per-node strength after count scaling.
func (m *ManyBody) EffectiveStrength() float64 {
	n := len(m.bodies)
	if !m.cfg.ScaleByCount || n == 0 {
		return m.cfg.Strength
	}
	return m.cfg.Strength * math.Sqrt(float64(m.cfg.ReferenceCount)/float64(n))
}

// Apply implements Force.
func (m *ManyBody) Apply(alpha float64) {
	if len(m.bodies) < 2 {
		return
	}
	strength := m.EffectiveStrength()
	minD2 := m.cfg.DistanceMin * m.cfg.DistanceMin
	maxD2 := math.Inf(1)
	if m.cfg.DistanceMax > 0 {
		maxD2 = m.cfg.DistanceMax * m.cfg.DistanceMax
	}

	// v points from p1 towards p2 (or towards an aggregate centre of mass).
	force := func(p1, p2 barneshut.Particle2, _, m2 float64, v r2.Vec) r2.Vec {
		if p2 != nil && p1 == p2 {
			return r2.Vec{}
		}
		d2 := v.X*v.X + v.Y*v.Y
		if d2 >= maxD2 {
			return r2.Vec{}
		}
		if v.X == 0 {
			v.X = m.jitter.Next()
			d2 += v.X * v.X
		}
		if v.Y == 0 {
			v.Y = m.jitter.Next()
			d2 += v.Y * v.Y
		}
		if d2 < minD2 {
			d2 = math.Sqrt(minD2 * d2)
		}
		return r2.Scale(strength*m2*alpha/d2, v)
	}

	plane, err := barneshut.NewPlane(m.particles)
	if err != nil {
		// Coincident or extremely close particles defeat the tree; fall
		// back to the exact sum, whose jitter separates them.
		m.applyExact(force)
		return
	}
	for _, b := range m.bodies {
		f := plane.ForceOn(b, m.cfg.Theta, force)
		b.node.VX += f.X
		b.node.VY += f.Y
	}
}

func (m *ManyBody) applyExact(force barneshut.Force2) {
	deltas := make([]r2.Vec, len(m.bodies))
	for i, b := range m.bodies {
		p := b.Coord2()
		for j, other := range m.bodies {
			if i == j {
				continue
			}
			deltas[i] = r2.Add(deltas[i], force(b, other, 1, 1, r2.Sub(other.Coord2(), p)))
		}
	}
	for i, b := range m.bodies {
		b.node.VX += deltas[i].X
		b.node.VY += deltas[i].Y
	}
}
