// Package engine ties the simulation, the force registry, the scales and
// the drag controller into one value that owns the live graph. An Engine is
// driven by a single goroutine and is not safe for concurrent use.
package engine

import (
	"fmt"

	"github.com/TFMV/pubmap/graph"
	"github.com/TFMV/pubmap/models"
	"github.com/TFMV/pubmap/physics"
	"github.com/TFMV/pubmap/reconcile"
	"github.com/TFMV/pubmap/scale"
)

// Registered force names, in application order.
const (
	ForceCharge  = "charge"
	ForceLink    = "link"
	ForceCenter  = "center"
	ForceCollide = "collide"
)

// Config gathers everything an Engine needs.
type Config struct {
	Width      float64
	Height     float64
	Placement  reconcile.Placement
	Seed       uint64
	Simulation physics.Config
	Forces     physics.ForcesConfig
	Scales     scale.Config
}

// DefaultConfig returns a 960x600 canvas with the default tuning.
func DefaultConfig() Config {
	return Config{
		Width:      960,
		Height:     600,
		Placement:  reconcile.PlaceRandom,
		Seed:       1,
		Simulation: physics.DefaultConfig(),
		Forces:     physics.DefaultForcesConfig(),
		Scales:     scale.DefaultConfig(),
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("canvas %vx%v is empty", c.Width, c.Height)
	}
	if _, err := reconcile.ParsePlacement(string(c.Placement)); err != nil {
		return err
	}
	if err := c.Simulation.Validate(); err != nil {
		return fmt.Errorf("simulation: %w", err)
	}
	if err := c.Forces.Validate(); err != nil {
		return fmt.Errorf("forces: %w", err)
	}
	if err := c.Scales.Validate(); err != nil {
		return fmt.Errorf("scales: %w", err)
	}
	return nil
}

// Engine is the layout engine for one canvas.
type Engine struct {
	cfg        Config
	sim        *physics.Simulation
	mapper     *scale.Mapper
	reconciler *reconcile.Reconciler
	drag       *physics.DragController
	year       int
	loaded     bool
}

// New creates an engine with an empty graph and the four standard forces.
func New(cfg Config) *Engine {
	e := &Engine{
		cfg:        cfg,
		sim:        physics.NewSimulation(cfg.Simulation),
		mapper:     scale.NewMapper(cfg.Scales),
		reconciler: reconcile.New(cfg.Placement, cfg.Width, cfg.Height, cfg.Seed),
	}
	e.drag = physics.NewDragController(e.sim, cfg.Simulation.WarmAlphaTarget)

	e.sim.SetForce(ForceCharge, physics.NewManyBody(cfg.Forces.ManyBody))
	e.sim.SetForce(ForceLink, physics.NewLink(cfg.Forces.Link, e.linkDistance, e.linkStrength))
	e.sim.SetForce(ForceCenter, physics.NewCenter(cfg.Width/2, cfg.Height/2, cfg.Forces.Center))
	e.sim.SetForce(ForceCollide, physics.NewCollide(cfg.Forces.Collide, e.collideRadius))
	return e
}

func (e *Engine) linkDistance(edge *graph.Edge) float64 {
	return e.mapper.LinkDistance(edge.Weight, e.mapper.Radius(edge.Source.Power), e.mapper.Radius(edge.Target.Power))
}

func (e *Engine) linkStrength(edge *graph.Edge) float64 {
	return e.mapper.LinkStrength(edge.Weight)
}

func (e *Engine) collideRadius(n *graph.Node) float64 {
	return e.mapper.Radius(n.Power) * e.cfg.Forces.Collide.RadiusFactor
}

// Outcome describes one snapshot load.
type Outcome struct {
	Report *reconcile.Report
	// CancelledDrags lists held nodes that did not survive the merge.
	CancelledDrags []string
}

// Load merges snap into the live graph, re-derives the scale domains from
// the merged data, re-initializes every force and reheats the simulation.
// The swap happens between ticks, so no tick sees a partial merge.
func (e *Engine) Load(snap *models.Snapshot) *Outcome {
	g, report := e.reconciler.Merge(e.sim.Graph(), snap)

	powers := make([]float64, len(g.Nodes))
	for i, n := range g.Nodes {
		powers[i] = n.Power
	}
	weights := make([]float64, len(g.Edges))
	for i, edge := range g.Edges {
		weights[i] = edge.Weight
	}
	e.mapper.Update(powers, weights)

	e.sim.Initialize(g)
	cancelled := e.drag.Sync(g)
	e.sim.Restart()

	e.year = snap.Year
	e.loaded = true
	return &Outcome{Report: report, CancelledDrags: cancelled}
}

// Step advances the simulation by one tick if it is active and reports
// whether it is idle afterwards.
func (e *Engine) Step() bool {
	return e.sim.Step()
}

// Settle steps until the simulation goes idle or maxTicks have run, and
// returns the number of ticks taken.
func (e *Engine) Settle(maxTicks int) int {
	for i := 0; i < maxTicks; i++ {
		if e.sim.State() == physics.Idle {
			return i
		}
		e.sim.Step()
	}
	return maxTicks
}

// PinNode starts dragging id at (x, y).
func (e *Engine) PinNode(id string, x, y float64) error {
	n, ok := e.sim.Graph().Node(id)
	if !ok {
		return fmt.Errorf("pin %q: %w", id, models.ErrNodeNotFound)
	}
	e.drag.Start(n, x, y)
	return nil
}

// MoveNode moves a node being dragged.
func (e *Engine) MoveNode(id string, x, y float64) error {
	if _, ok := e.sim.Graph().Node(id); !ok {
		return fmt.Errorf("move %q: %w", id, models.ErrNodeNotFound)
	}
	if err := e.drag.Move(id, x, y); err != nil {
		return fmt.Errorf("move %q: %w", id, err)
	}
	return nil
}

// UnpinNode ends the drag of id.
func (e *Engine) UnpinNode(id string) error {
	if _, ok := e.sim.Graph().Node(id); !ok {
		return fmt.Errorf("unpin %q: %w", id, models.ErrNodeNotFound)
	}
	if err := e.drag.End(id); err != nil {
		return fmt.Errorf("unpin %q: %w", id, err)
	}
	return nil
}

// Year returns the year of the last loaded snapshot and whether any
// snapshot has been loaded.
func (e *Engine) Year() (int, bool) { return e.year, e.loaded }

func (e *Engine) Graph() *graph.Graph             { return e.sim.Graph() }
func (e *Engine) Simulation() *physics.Simulation { return e.sim }
func (e *Engine) Mapper() *scale.Mapper           { return e.mapper }
func (e *Engine) Drag() *physics.DragController   { return e.drag }
func (e *Engine) Canvas() (width, height float64) { return e.cfg.Width, e.cfg.Height }
