package engine

import (
	"errors"
	"math"
	"testing"

	"github.com/TFMV/pubmap/models"
	"github.com/TFMV/pubmap/physics"
)

func scenario(year int) *models.Snapshot {
	s := models.NewSnapshot(year)
	s.AddNode("A", "Ada", 10)
	s.AddNode("B", "Bob", 3000)
	s.AddEdge("A", "B", 5)
	return s
}

func TestLoadScenarioRadii(t *testing.T) {
	e := New(DefaultConfig())
	out := e.Load(scenario(1990))
	if err := out.Report.Err(); err != nil {
		t.Fatal(err)
	}

	f := e.Frame()
	a, _ := f.Node("A")
	b, _ := f.Node("B")
	if a.Radius != 5 || b.Radius != 74 {
		t.Errorf("radii = %v, %v; want 5, 74", a.Radius, b.Radius)
	}
	if b.LabelSize != 50 {
		t.Errorf("label size of B = %v, want 50", b.LabelSize)
	}
	if len(f.Edges) != 1 || f.Edges[0].Source != "A" || f.Edges[0].Target != "B" {
		t.Fatalf("edges = %+v", f.Edges)
	}
	if f.Year != 1990 || f.State != "active" || f.Alpha != 1 {
		t.Errorf("frame header = %d %s %v", f.Year, f.State, f.Alpha)
	}

	col, _ := e.Simulation().Force(ForceCollide)
	if r := col.(*physics.Collide).Radius(1); math.Abs(r-74*1.3) > 1e-9 {
		t.Errorf("collide radius of B = %v, want %v", r, 74*1.3)
	}
}

func TestLoadDanglingEdgeKeepsNodes(t *testing.T) {
	e := New(DefaultConfig())
	s := models.NewSnapshot(1990)
	s.AddNode("A", "", 10)
	s.AddNode("B", "", 3000)
	s.AddEdge("A", "Z", 1)

	out := e.Load(s)
	if !errors.Is(out.Report.Err(), models.ErrDanglingReference) {
		t.Fatalf("report = %v", out.Report.Err())
	}
	f := e.Frame()
	if len(f.Nodes) != 2 || len(f.Edges) != 0 {
		t.Errorf("frame has %d nodes, %d edges", len(f.Nodes), len(f.Edges))
	}
}

func TestLoadPreservesContinuingNodes(t *testing.T) {
	e := New(DefaultConfig())
	e.Load(scenario(1990))
	e.Settle(50)
	a, _ := e.Graph().Node("A")
	before := [4]float64{a.X, a.Y, a.VX, a.VY}

	next := scenario(1991)
	next.AddNode("C", "Cy", 500)
	e.Load(next)

	a, _ = e.Graph().Node("A")
	if got := [4]float64{a.X, a.Y, a.VX, a.VY}; got != before {
		t.Errorf("A state %v, want %v", got, before)
	}
	if e.Simulation().Alpha() != 1 {
		t.Errorf("load should reheat the simulation")
	}
	if y, ok := e.Year(); !ok || y != 1991 {
		t.Errorf("year = %d", y)
	}
}

func TestSettleReachesIdle(t *testing.T) {
	e := New(DefaultConfig())
	e.Load(scenario(1990))
	n := e.Settle(10000)
	if e.Simulation().State() != physics.Idle {
		t.Fatalf("not idle after %d ticks", n)
	}
	if n < 250 || n > 350 {
		t.Errorf("settled in %d ticks", n)
	}
	for _, node := range e.Frame().Nodes {
		if math.IsNaN(node.X) || math.IsNaN(node.Y) {
			t.Fatalf("node %s has NaN position", node.ID)
		}
	}
}

func TestInteraction(t *testing.T) {
	e := New(DefaultConfig())
	e.Load(scenario(1990))
	e.Settle(10000)

	if err := e.PinNode("Z", 0, 0); !errors.Is(err, models.ErrNodeNotFound) {
		t.Errorf("pin unknown: %v", err)
	}
	if err := e.MoveNode("A", 1, 1); !errors.Is(err, physics.ErrNotDragging) {
		t.Errorf("move without pin: %v", err)
	}

	if err := e.PinNode("A", 100, 200); err != nil {
		t.Fatal(err)
	}
	if e.Simulation().State() != physics.Active {
		t.Fatal("pin should wake the simulation")
	}
	if err := e.MoveNode("A", 300, 150); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 20; i++ {
		e.Step()
	}
	a, _ := e.Frame().Node("A")
	if a.X != 300 || a.Y != 150 || !a.Pinned {
		t.Errorf("dragged node at (%v,%v) pinned=%v", a.X, a.Y, a.Pinned)
	}

	if err := e.UnpinNode("A"); err != nil {
		t.Fatal(err)
	}
	if e.Simulation().AlphaTarget() != 0 {
		t.Errorf("alpha target = %v after unpin", e.Simulation().AlphaTarget())
	}
}

func TestLoadCancelsDragOfDroppedNode(t *testing.T) {
	e := New(DefaultConfig())
	e.Load(scenario(1990))
	e.PinNode("A", 10, 10)
	e.PinNode("B", 20, 20)

	next := models.NewSnapshot(1991)
	next.AddNode("A", "Ada", 10)
	out := e.Load(next)
	if len(out.CancelledDrags) != 1 || out.CancelledDrags[0] != "B" {
		t.Fatalf("cancelled = %v", out.CancelledDrags)
	}

	e.Step()
	a, _ := e.Frame().Node("A")
	if a.X != 10 || a.Y != 10 {
		t.Errorf("surviving drag lost its pin: (%v,%v)", a.X, a.Y)
	}
	if err := e.MoveNode("A", 15, 15); err != nil {
		t.Errorf("surviving drag not rebound: %v", err)
	}
}

func TestFrameIsDetached(t *testing.T) {
	e := New(DefaultConfig())
	e.Load(scenario(1990))
	f := e.Frame()
	x := f.Nodes[0].X
	e.Step()
	e.Step()
	if f.Nodes[0].X != x {
		t.Errorf("frame changed after stepping")
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatal(err)
	}
	cfg := DefaultConfig()
	cfg.Width = 0
	if cfg.Validate() == nil {
		t.Error("empty canvas accepted")
	}
	cfg = DefaultConfig()
	cfg.Placement = "spiral"
	if cfg.Validate() == nil {
		t.Error("unknown placement accepted")
	}
}
