package physics

import (
	"fmt"

	"github.com/TFMV/pubmap/graph"
)

// CenterConfig configures the centering force. The target point is the
// canvas centre and is supplied by the engine.
type CenterConfig struct {
	Strength float64 `toml:"strength" yaml:"strength" json:"strength"`
}

// Validate checks parameter ranges.
func (c CenterConfig) Validate() error {
	if c.Strength <= 0 || c.Strength > 1 {
		return fmt.Errorf("center strength must be in (0,1], got %v", c.Strength)
	}
	return nil
}

// Center translates all unpinned nodes so that their centroid moves towards
// a fixed point. It corrects drift of the whole layout and does not change
// relative positions.
type Center struct {
	X, Y     float64
	Strength float64
	nodes    []*graph.Node
}

// NewCenter creates a centering force towards (x, y).
func NewCenter(x, y float64, cfg CenterConfig) *Center {
	return &Center{X: x, Y: y, Strength: cfg.Strength}
}

// Initialize implements Force.
func (c *Center) Initialize(g *graph.Graph, _ *Jitter) {
	c.nodes = g.Nodes
}

// Apply implements Force.
func (c *Center) Apply(float64) {
	var sx, sy float64
	var n int
	for _, node := range c.nodes {
		if node.Pinned() {
			continue
		}
		sx += node.X
		sy += node.Y
		n++
	}
	if n == 0 {
		return
	}

	dx := (sx/float64(n) - c.X) * c.Strength
	dy := (sy/float64(n) - c.Y) * c.Strength
	for _, node := range c.nodes {
		if node.Pinned() {
			continue
		}
		node.X -= dx
		node.Y -= dy
	}
}
