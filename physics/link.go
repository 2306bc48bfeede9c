package physics

import (
	"fmt"
	"math"

	"github.com/TFMV/pubmap/graph"
)

// LinkConfig configures the spring force. Distance and strength are
// supplied per edge by accessor functions.
type LinkConfig struct {
	Iterations int `toml:"iterations" yaml:"iterations" json:"iterations"`
}

// Validate checks parameter ranges.
func (c LinkConfig) Validate() error {
	if c.Iterations < 1 {
		return fmt.Errorf("link iterations must be at least 1, got %d", c.Iterations)
	}
	return nil
}

// EdgeFunc computes a per-edge parameter.
type EdgeFunc func(e *graph.Edge) float64

// Link pulls connected nodes towards a rest distance. The correction is
// split between the endpoints in inverse proportion to their degree, so
// hubs move less than leaves.
type Link struct {
	cfg       LinkConfig
	distance  EdgeFunc
	strength  EdgeFunc
	edges     []*graph.Edge
	distances []float64
	strengths []float64
	bias      []float64
	jitter    *Jitter
}

// NewLink creates a link force. Nil accessors default to a distance of 30
// and a strength of 1/min(degree(source), degree(target)).
func NewLink(cfg LinkConfig, distance, strength EdgeFunc) *Link {
	return &Link{cfg: cfg, distance: distance, strength: strength}
}

// SetAccessors replaces the distance and strength accessors. The caller must
// re-initialize the force for the change to take effect.
func (l *Link) SetAccessors(distance, strength EdgeFunc) {
	l.distance = distance
	l.strength = strength
}

// Initialize implements Force.
func (l *Link) Initialize(g *graph.Graph, jitter *Jitter) {
	l.jitter = jitter
	l.edges = g.Edges

	degree := make(map[*graph.Node]int, len(g.Nodes))
	for _, e := range l.edges {
		degree[e.Source]++
		degree[e.Target]++
	}

	l.bias = make([]float64, len(l.edges))
	l.distances = make([]float64, len(l.edges))
	l.strengths = make([]float64, len(l.edges))
	for i, e := range l.edges {
		ds, dt := float64(degree[e.Source]), float64(degree[e.Target])
		l.bias[i] = ds / (ds + dt)

		if l.distance != nil {
			l.distances[i] = l.distance(e)
		} else {
			l.distances[i] = 30
		}
		if l.strength != nil {
			l.strengths[i] = l.strength(e)
		} else {
			l.strengths[i] = 1 / math.Min(ds, dt)
		}
	}
}

// Apply implements Force.
func (l *Link) Apply(alpha float64) {
	for range l.cfg.Iterations {
		for i, e := range l.edges {
			s, t := e.Source, e.Target
			x := t.X + t.VX - s.X - s.VX
			if x == 0 {
				x = l.jitter.Next()
			}
			y := t.Y + t.VY - s.Y - s.VY
			if y == 0 {
				y = l.jitter.Next()
			}
			d := math.Sqrt(x*x + y*y)
			k := (d - l.distances[i]) / d * alpha * l.strengths[i]
			x *= k
			y *= k

			b := l.bias[i]
			t.VX -= x * b
			t.VY -= y * b
			s.VX += x * (1 - b)
			s.VY += y * (1 - b)
		}
	}
}

// Distance returns the cached rest distance of edge i.
func (l *Link) Distance(i int) float64 { return l.distances[i] }

// Strength returns the cached strength of edge i.
func (l *Link) Strength(i int) float64 { return l.strengths[i] }
