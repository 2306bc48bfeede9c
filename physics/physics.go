// Package physics implements the incremental force-directed layout: a
// stepping simulation with an alpha cooling schedule, a registry of
// composable forces and the drag state machine that pins nodes.
package physics

import (
	"fmt"
	"math"

	"github.com/TFMV/pubmap/graph"
)

// State is the activity state of a Simulation.
type State int

const (
	// Idle means alpha has cooled below alphaMin and Step does nothing.
	Idle State = iota
	// Active means every Step integrates one tick.
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "idle"
}

// Config holds the cooling schedule and friction of a Simulation.
type Config struct {
	AlphaMin        float64 `toml:"alpha_min" yaml:"alpha_min" json:"alpha_min"`
	AlphaDecay      float64 `toml:"alpha_decay" yaml:"alpha_decay" json:"alpha_decay"`
	VelocityDecay   float64 `toml:"velocity_decay" yaml:"velocity_decay" json:"velocity_decay"`
	WarmAlphaTarget float64 `toml:"warm_alpha_target" yaml:"warm_alpha_target" json:"warm_alpha_target"`
	Seed            int64   `toml:"seed" yaml:"seed" json:"seed"`
}

// DefaultConfig cools from 1 to alphaMin in roughly 300 ticks.
func DefaultConfig() Config {
	return Config{
		AlphaMin:        0.001,
		AlphaDecay:      1 - math.Pow(0.001, 1.0/300),
		VelocityDecay:   0.4,
		WarmAlphaTarget: 0.3,
		Seed:            1,
	}
}

// Validate checks parameter ranges.
func (c Config) Validate() error {
	if c.AlphaMin < 0 || c.AlphaMin > 1 {
		return fmt.Errorf("alpha_min must be in [0,1], got %v", c.AlphaMin)
	}
	if c.AlphaDecay <= 0 || c.AlphaDecay >= 1 {
		return fmt.Errorf("alpha_decay must be in (0,1), got %v", c.AlphaDecay)
	}
	if c.VelocityDecay < 0 || c.VelocityDecay > 1 {
		return fmt.Errorf("velocity_decay must be in [0,1], got %v", c.VelocityDecay)
	}
	if c.WarmAlphaTarget < 0 || c.WarmAlphaTarget > 1 {
		return fmt.Errorf("warm_alpha_target must be in [0,1], got %v", c.WarmAlphaTarget)
	}
	return nil
}

// Simulation is a pure stepping function over a node set. It has no timer:
// the caller drives Step once per frame.
type Simulation struct {
	graph  *graph.Graph
	forces []namedForce
	jitter *Jitter

	alpha         float64
	alphaMin      float64
	alphaDecay    float64
	alphaTarget   float64
	velocityDecay float64
	state         State
	ticks         uint64
}

// NewSimulation creates an active simulation over an empty graph.
func NewSimulation(cfg Config) *Simulation {
	return &Simulation{
		graph:         graph.NewGraph(),
		jitter:        NewJitter(cfg.Seed),
		alpha:         1,
		alphaMin:      cfg.AlphaMin,
		alphaDecay:    cfg.AlphaDecay,
		velocityDecay: cfg.VelocityDecay,
		state:         Active,
	}
}

// Initialize replaces the node set and re-initializes every force against it.
func (s *Simulation) Initialize(g *graph.Graph) {
	s.graph = g
	for _, f := range s.forces {
		f.force.Initialize(g, s.jitter)
	}
}

// Reinitialize re-runs force initialization on the current graph, e.g.
// after radius or link parameters changed.
func (s *Simulation) Reinitialize() {
	s.Initialize(s.graph)
}

// Graph returns the graph being simulated.
func (s *Simulation) Graph() *graph.Graph { return s.graph }

// Step advances one tick when active. It returns true when the simulation
// is idle after the call.
func (s *Simulation) Step() bool {
	if s.state == Idle {
		return true
	}
	s.tick()
	if s.alpha < s.alphaMin && s.alphaTarget < s.alphaMin {
		s.state = Idle
	}
	return s.state == Idle
}

// Tick runs n ticks regardless of state, leaving the state unchanged.
func (s *Simulation) Tick(n int) {
	for range n {
		s.tick()
	}
}

func (s *Simulation) tick() {
	for _, f := range s.forces {
		f.force.Apply(s.alpha)
	}

	friction := 1 - s.velocityDecay
	for _, n := range s.graph.Nodes {
		if n.FX != nil {
			n.X = *n.FX
			n.VX = 0
		} else {
			n.VX *= friction
			n.X += n.VX
		}
		if n.FY != nil {
			n.Y = *n.FY
			n.VY = 0
		} else {
			n.VY *= friction
			n.Y += n.VY
		}
	}

	s.alpha += (s.alphaTarget - s.alpha) * s.alphaDecay
	s.ticks++
}

// Restart reheats the simulation to alpha 1 and makes it active.
func (s *Simulation) Restart() {
	s.alpha = 1
	s.state = Active
}

// Resume makes the simulation active without touching alpha.
func (s *Simulation) Resume() {
	s.state = Active
}

// Stop makes the simulation idle.
func (s *Simulation) Stop() {
	s.state = Idle
}

// SetAlpha sets the current temperature, clamped to [0,1].
func (s *Simulation) SetAlpha(a float64) {
	s.alpha = math.Max(0, math.Min(1, a))
}

// SetAlphaTarget sets the resting temperature, clamped to [0,1].
func (s *Simulation) SetAlphaTarget(t float64) {
	s.alphaTarget = math.Max(0, math.Min(1, t))
}

func (s *Simulation) Alpha() float64       { return s.alpha }
func (s *Simulation) AlphaMin() float64    { return s.alphaMin }
func (s *Simulation) AlphaDecay() float64  { return s.alphaDecay }
func (s *Simulation) AlphaTarget() float64 { return s.alphaTarget }
func (s *Simulation) State() State         { return s.state }
func (s *Simulation) Ticks() uint64        { return s.ticks }
