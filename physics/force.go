package physics

import "github.com/TFMV/pubmap/graph"

// Force contributes velocity deltas to the nodes of a graph.
//
// Initialize is called whenever the node set or any accessor output (radius,
// link distance, link strength) changes; Apply is called once per tick.
type Force interface {
	Initialize(g *graph.Graph, jitter *Jitter)
	Apply(alpha float64)
}

type namedForce struct {
	name  string
	force Force
}

// SetForce registers f under name, replacing any force with that name while
// keeping its position in the application order. A nil f removes the force.
func (s *Simulation) SetForce(name string, f Force) {
	for i, nf := range s.forces {
		if nf.name != name {
			continue
		}
		if f == nil {
			s.forces = append(s.forces[:i], s.forces[i+1:]...)
			return
		}
		s.forces[i].force = f
		f.Initialize(s.graph, s.jitter)
		return
	}
	if f == nil {
		return
	}
	s.forces = append(s.forces, namedForce{name: name, force: f})
	f.Initialize(s.graph, s.jitter)
}

// Force returns the force registered under name.
func (s *Simulation) Force(name string) (Force, bool) {
	for _, nf := range s.forces {
		if nf.name == name {
			return nf.force, true
		}
	}
	return nil, false
}

// ForceNames returns registered force names in application order.
func (s *Simulation) ForceNames() []string {
	names := make([]string, len(s.forces))
	for i, nf := range s.forces {
		names[i] = nf.name
	}
	return names
}

// ForcesConfig configures the four standard forces.
type ForcesConfig struct {
	ManyBody ManyBodyConfig `toml:"many_body" yaml:"many_body" json:"many_body"`
	Link     LinkConfig     `toml:"link" yaml:"link" json:"link"`
	Center   CenterConfig   `toml:"center" yaml:"center" json:"center"`
	Collide  CollideConfig  `toml:"collide" yaml:"collide" json:"collide"`
}

// DefaultForcesConfig is the stock publication-map tuning.
func DefaultForcesConfig() ForcesConfig {
	return ForcesConfig{
		ManyBody: ManyBodyConfig{Strength: -25, Theta: 0.9, DistanceMin: 1, ReferenceCount: 100},
		Link:     LinkConfig{Iterations: 1},
		Center:   CenterConfig{Strength: 1},
		Collide:  CollideConfig{Strength: 1, Iterations: 1, RadiusFactor: 1.3},
	}
}

// Validate checks every force section.
func (c ForcesConfig) Validate() error {
	if err := c.ManyBody.Validate(); err != nil {
		return err
	}
	if err := c.Link.Validate(); err != nil {
		return err
	}
	if err := c.Center.Validate(); err != nil {
		return err
	}
	return c.Collide.Validate()
}
