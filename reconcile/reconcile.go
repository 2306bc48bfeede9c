// Package reconcile merges a freshly loaded snapshot into the live graph,
// carrying the physical state of continuing nodes across the swap.
package reconcile

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/TFMV/pubmap/graph"
	"github.com/TFMV/pubmap/models"
)

// Placement decides where nodes seen for the first time appear.
type Placement string

const (
	PlaceRandom Placement = "random"
	PlaceCenter Placement = "center"
)

// ParsePlacement validates a placement name.
func ParsePlacement(s string) (Placement, error) {
	switch p := Placement(s); p {
	case PlaceRandom, PlaceCenter:
		return p, nil
	default:
		return "", fmt.Errorf("unknown placement %q", s)
	}
}

// Report collects the anomalies found during one merge.
type Report struct {
	Year      int
	Nodes     int
	Edges     int
	Anomalies []*models.Anomaly
}

func (r *Report) add(kind error, id, detail string) {
	r.Anomalies = append(r.Anomalies, models.NewAnomaly(kind, id, detail))
}

// Err joins all anomalies, or returns nil for a clean merge.
func (r *Report) Err() error {
	if r == nil || len(r.Anomalies) == 0 {
		return nil
	}
	errs := make([]error, len(r.Anomalies))
	for i, a := range r.Anomalies {
		errs[i] = a
	}
	return errors.Join(errs...)
}

// Count returns the number of anomalies wrapping kind.
func (r *Report) Count(kind error) int {
	n := 0
	for _, a := range r.Anomalies {
		if errors.Is(a, kind) {
			n++
		}
	}
	return n
}

// Reconciler merges snapshots into live graphs. It is not safe for
// concurrent use.
type Reconciler struct {
	placement     Placement
	width, height float64
	rng           *rand.Rand
}

// New creates a reconciler placing new nodes on a width x height canvas.
func New(placement Placement, width, height float64, seed uint64) *Reconciler {
	return &Reconciler{
		placement: placement,
		width:     width,
		height:    height,
		rng:       rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Merge builds the live graph for snap. Nodes whose id exists in old keep
// position, velocity and pin; name and power come from snap. Nodes missing
// from snap are dropped. Edges are rebuilt from scratch against the merged
// node set. old may be nil. Merge never fails: every problem is recorded in
// the report and the offending entity is skipped.
func (r *Reconciler) Merge(old *graph.Graph, snap *models.Snapshot) (*graph.Graph, *Report) {
	report := &Report{Year: snap.Year}
	g := graph.NewGraph()

	for _, spec := range snap.Nodes {
		id := spec.ID.String()
		if id == "" {
			report.add(models.ErrDuplicateNodeID, id, "empty id")
			continue
		}
		n := &graph.Node{ID: id, Name: spec.Name, Power: max(spec.Power, 0)}
		if prev, ok := lookup(old, id); ok {
			n.X, n.Y = prev.X, prev.Y
			n.VX, n.VY = prev.VX, prev.VY
			n.FX, n.FY = prev.FX, prev.FY
		} else {
			n.X, n.Y = r.place()
		}
		if !g.AddNode(n) {
			report.add(models.ErrDuplicateNodeID, id, "later occurrence ignored")
		}
	}

	for _, spec := range snap.Edges {
		src, tgt := spec.Source.String(), spec.Target.String()
		key := src + "->" + tgt
		s, ok := g.Node(src)
		if !ok {
			report.add(models.ErrDanglingReference, key, fmt.Sprintf("source %q not in node set", src))
			continue
		}
		t, ok := g.Node(tgt)
		if !ok {
			report.add(models.ErrDanglingReference, key, fmt.Sprintf("target %q not in node set", tgt))
			continue
		}
		if s == t {
			report.add(models.ErrSelfLoop, key, "")
			continue
		}
		e := &graph.Edge{ID: graph.EdgeID(src, tgt), Source: s, Target: t, Weight: max(spec.Weight, 0)}
		if !g.AddEdge(e) {
			report.add(models.ErrDuplicateEdge, key, "later occurrence ignored")
		}
	}

	report.Nodes = len(g.Nodes)
	report.Edges = len(g.Edges)
	return g, report
}

func (r *Reconciler) place() (float64, float64) {
	if r.placement == PlaceCenter {
		return r.width / 2, r.height / 2
	}
	return r.rng.Float64() * r.width, r.rng.Float64() * r.height
}

func lookup(g *graph.Graph, id string) (*graph.Node, bool) {
	if g == nil {
		return nil, false
	}
	return g.Node(id)
}
