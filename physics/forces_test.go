package physics

import (
	"math"
	"math/rand"
	"testing"

	"github.com/TFMV/pubmap/graph"
)

func onlyForce(t *testing.T, g *graph.Graph, name string, f Force) *Simulation {
	t.Helper()
	sim := NewSimulation(DefaultConfig())
	sim.SetForce(name, f)
	sim.Initialize(g)
	return sim
}

func TestManyBodyRepels(t *testing.T) {
	g := newGraph(t, [2]float64{0, 0}, [2]float64{2, 0}, [2]float64{0, 3})
	sim := onlyForce(t, g, "charge", NewManyBody(DefaultForcesConfig().ManyBody))

	before := dist(g.Nodes[0], g.Nodes[1])
	sim.Tick(20)
	if after := dist(g.Nodes[0], g.Nodes[1]); after <= before {
		t.Errorf("distance %v -> %v, want growth", before, after)
	}
}

func TestManyBodySeparatesCoincidentNodes(t *testing.T) {
	g := newGraph(t, [2]float64{5, 5}, [2]float64{5, 5}, [2]float64{5, 5})
	sim := onlyForce(t, g, "charge", NewManyBody(DefaultForcesConfig().ManyBody))

	sim.Tick(10)
	for i := range g.Nodes {
		n := g.Nodes[i]
		if math.IsNaN(n.X) || math.IsNaN(n.Y) {
			t.Fatalf("node %s has NaN position", n.ID)
		}
		for _, m := range g.Nodes[i+1:] {
			if dist(n, m) == 0 {
				t.Errorf("nodes %s and %s still coincide", n.ID, m.ID)
			}
		}
	}
}

func TestManyBodyScaleByCount(t *testing.T) {
	cfg := DefaultForcesConfig().ManyBody
	cfg.ScaleByCount = true
	cfg.ReferenceCount = 4
	mb := NewManyBody(cfg)

	pts := make([][2]float64, 16)
	for i := range pts {
		pts[i] = [2]float64{float64(i), float64(i * i)}
	}
	mb.Initialize(newGraph(t, pts...), NewJitter(1))
	if got, want := mb.EffectiveStrength(), cfg.Strength*0.5; math.Abs(got-want) > 1e-12 {
		t.Errorf("strength = %v, want %v", got, want)
	}
}

func TestLinkPullsToRestDistance(t *testing.T) {
	g := newGraph(t, [2]float64{0, 0}, [2]float64{100, 0})
	link(t, g, "a", "b", 1)
	l := NewLink(DefaultForcesConfig().Link, func(*graph.Edge) float64 { return 30 }, func(*graph.Edge) float64 { return 1 })
	sim := onlyForce(t, g, "link", l)
	sim.SetAlphaTarget(0.3)

	sim.Tick(300)
	if d := dist(g.Nodes[0], g.Nodes[1]); math.Abs(d-30) > 1 {
		t.Errorf("distance = %v, want about 30", d)
	}
}

func TestLinkDefaultStrengthUsesDegree(t *testing.T) {
	g := newGraph(t, [2]float64{0, 0}, [2]float64{1, 0}, [2]float64{2, 0}, [2]float64{3, 0})
	link(t, g, "a", "b", 1)
	link(t, g, "a", "c", 1)
	link(t, g, "a", "d", 1)
	l := NewLink(DefaultForcesConfig().Link, nil, nil)
	l.Initialize(g, NewJitter(1))

	// Every edge touches a leaf of degree 1.
	for i := range g.Edges {
		if l.Strength(i) != 1 || l.Distance(i) != 30 {
			t.Errorf("edge %d: strength=%v distance=%v", i, l.Strength(i), l.Distance(i))
		}
	}
}

func TestCenterShiftsUnpinnedCentroid(t *testing.T) {
	g := newGraph(t, [2]float64{10, 10}, [2]float64{20, 30}, [2]float64{-50, -50})
	g.Nodes[2].Pin(-50, -50)
	c := NewCenter(0, 0, CenterConfig{Strength: 1})
	c.Initialize(g, nil)
	c.Apply(1)

	cx := (g.Nodes[0].X + g.Nodes[1].X) / 2
	cy := (g.Nodes[0].Y + g.Nodes[1].Y) / 2
	if math.Abs(cx) > 1e-9 || math.Abs(cy) > 1e-9 {
		t.Errorf("centroid = (%v,%v), want origin", cx, cy)
	}
	if d := dist(g.Nodes[0], g.Nodes[1]); math.Abs(d-math.Hypot(10, 20)) > 1e-9 {
		t.Errorf("relative positions changed: %v", d)
	}
	if g.Nodes[2].X != -50 {
		t.Errorf("pinned node moved")
	}
}

func TestCollideConvergesWithoutOverlap(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	pts := make([][2]float64, 40)
	for i := range pts {
		pts[i] = [2]float64{rng.Float64() * 40, rng.Float64() * 40}
	}
	pts[1] = pts[0] // coincident pair
	g := newGraph(t, pts...)

	radius := func(n *graph.Node) float64 { return 3 + float64(n.Index%4) }
	col := NewCollide(DefaultForcesConfig().Collide, radius)
	sim := onlyForce(t, g, "collide", col)

	sim.Tick(1000)

	const eps = 0.5
	for i, a := range g.Nodes {
		for j := i + 1; j < len(g.Nodes); j++ {
			b := g.Nodes[j]
			if d, r := dist(a, b), col.Radius(i)+col.Radius(j); d < r-eps {
				t.Errorf("nodes %d,%d overlap: distance %v < %v", i, j, d, r)
			}
		}
	}
}

func TestCollideRadiusResampledOnInitialize(t *testing.T) {
	g := newGraph(t, [2]float64{0, 0})
	r := 2.0
	col := NewCollide(DefaultForcesConfig().Collide, func(*graph.Node) float64 { return r })
	col.Initialize(g, NewJitter(1))
	r = 9
	if col.Radius(0) != 2 {
		t.Fatalf("radius changed before re-initialize")
	}
	col.Initialize(g, NewJitter(1))
	if col.Radius(0) != 9 {
		t.Errorf("radius = %v, want 9", col.Radius(0))
	}
}
