package physics

import (
	"errors"
	"sort"

	"github.com/TFMV/pubmap/graph"
)

// ErrNotDragging is returned when a move or end event names a node that has
// no active drag.
var ErrNotDragging = errors.New("node is not being dragged")

// DragController turns abstract pointer events into pins and keeps the
// simulation warm while at least one node is held.
type DragController struct {
	sim    *Simulation
	warm   float64
	active map[string]*graph.Node
}

// NewDragController creates a controller that raises alphaTarget to warm
// while dragging.
func NewDragController(sim *Simulation, warm float64) *DragController {
	return &DragController{
		sim:    sim,
		warm:   warm,
		active: make(map[string]*graph.Node),
	}
}

// Start handles pointer-down on n at (x, y).
func (d *DragController) Start(n *graph.Node, x, y float64) {
	d.sim.SetAlphaTarget(d.warm)
	if d.sim.State() == Idle {
		d.sim.Resume()
	}
	n.Pin(x, y)
	d.active[n.ID] = n
}

// Move handles pointer-move for the node being dragged under id.
func (d *DragController) Move(id string, x, y float64) error {
	n, ok := d.active[id]
	if !ok {
		return ErrNotDragging
	}
	n.Pin(x, y)
	return nil
}

// End handles pointer-up. The simulation resumes natural cooling once the
// last drag ends.
func (d *DragController) End(id string) error {
	n, ok := d.active[id]
	if !ok {
		return ErrNotDragging
	}
	n.Unpin()
	delete(d.active, id)
	if len(d.active) == 0 {
		d.sim.SetAlphaTarget(0)
	}
	return nil
}

// Dragging reports whether id is held.
func (d *DragController) Dragging(id string) bool {
	_, ok := d.active[id]
	return ok
}

// Active returns the ids of held nodes in sorted order.
func (d *DragController) Active() []string {
	ids := make([]string, 0, len(d.active))
	for id := range d.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Sync rebinds drags to the nodes of g after a reconciliation. Drags whose
// node did not survive are cancelled and their ids returned.
func (d *DragController) Sync(g *graph.Graph) []string {
	var cancelled []string
	for id := range d.active {
		n, ok := g.Node(id)
		if !ok {
			cancelled = append(cancelled, id)
			delete(d.active, id)
			continue
		}
		d.active[id] = n
	}
	if len(d.active) == 0 && len(cancelled) > 0 {
		d.sim.SetAlphaTarget(0)
	}
	sort.Strings(cancelled)
	return cancelled
}
