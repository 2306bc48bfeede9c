package physics

import (
	"fmt"
	"math"
	"sort"

	"github.com/TFMV/pubmap/graph"
)

// CollideConfig configures the collision force.
type CollideConfig struct {
	Strength     float64 `toml:"strength" yaml:"strength" json:"strength"`
	Iterations   int     `toml:"iterations" yaml:"iterations" json:"iterations"`
	RadiusFactor float64 `toml:"radius_factor" yaml:"radius_factor" json:"radius_factor"` // collision radius / drawn radius
}

// Validate checks parameter ranges.
func (c CollideConfig) Validate() error {
	if c.Strength < 0 || c.Strength > 1 {
		return fmt.Errorf("collide strength must be in [0,1], got %v", c.Strength)
	}
	if c.Iterations < 1 {
		return fmt.Errorf("collide iterations must be at least 1, got %d", c.Iterations)
	}
	if c.RadiusFactor <= 0 {
		return fmt.Errorf("collide radius_factor must be positive, got %v", c.RadiusFactor)
	}
	return nil
}

// NodeFunc computes a per-node parameter.
type NodeFunc func(n *graph.Node) float64

// Collide treats nodes as circles and pushes overlapping pairs apart.
// Candidate pairs come from a sweep over the nodes' predicted x extents.
type Collide struct {
	cfg    CollideConfig
	radius NodeFunc
	nodes  []*graph.Node
	radii  []float64
	order  []int
	lefts  []float64
	jitter *Jitter
}

// NewCollide creates a collision force. radius returns the collision radius
// of a node; it is sampled on Initialize.
func NewCollide(cfg CollideConfig, radius NodeFunc) *Collide {
	return &Collide{cfg: cfg, radius: radius}
}

// SetRadius replaces the radius accessor. The caller must re-initialize the
// force for the change to take effect.
func (c *Collide) SetRadius(radius NodeFunc) {
	c.radius = radius
}

// Initialize implements Force.
func (c *Collide) Initialize(g *graph.Graph, jitter *Jitter) {
	c.jitter = jitter
	c.nodes = g.Nodes
	c.radii = make([]float64, len(c.nodes))
	c.order = make([]int, len(c.nodes))
	c.lefts = make([]float64, len(c.nodes))
	for i, n := range c.nodes {
		if c.radius != nil {
			c.radii[i] = c.radius(n)
		} else {
			c.radii[i] = 1
		}
		c.order[i] = i
	}
}

// Radius returns the cached collision radius of node i.
func (c *Collide) Radius(i int) float64 { return c.radii[i] }

// Apply implements Force.
func (c *Collide) Apply(float64) {
	for range c.cfg.Iterations {
		c.iterate()
	}
}

func (c *Collide) iterate() {
	for i, n := range c.nodes {
		c.lefts[i] = n.X + n.VX - c.radii[i]
	}
	sort.Slice(c.order, func(a, b int) bool { return c.lefts[c.order[a]] < c.lefts[c.order[b]] })

	for a, i := range c.order {
		ni := c.nodes[i]
		ri := c.radii[i]
		ri2 := ri * ri
		xi := ni.X + ni.VX
		yi := ni.Y + ni.VY

		for _, j := range c.order[a+1:] {
			if c.lefts[j] > xi+ri {
				break
			}
			nj := c.nodes[j]
			rj := c.radii[j]
			r := ri + rj

			x := xi - nj.X - nj.VX
			y := yi - nj.Y - nj.VY
			l := x*x + y*y
			if l >= r*r {
				continue
			}
			if x == 0 {
				x = c.jitter.Next()
				l += x * x
			}
			if y == 0 {
				y = c.jitter.Next()
				l += y * y
			}
			l = math.Sqrt(l)
			k := (r - l) / l * c.cfg.Strength
			x *= k
			y *= k

			share := rj * rj / (ri2 + rj*rj)
			ni.VX += x * share
			ni.VY += y * share
			nj.VX -= x * (1 - share)
			nj.VY -= y * (1 - share)
		}
	}
}
