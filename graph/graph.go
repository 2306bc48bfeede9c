// Package graph holds the live simulation entities. A Graph is owned by a
// single goroutine (the engine's run loop) and is not safe for concurrent use.
package graph

import (
	"github.com/google/uuid"
)

// edgeNamespace seeds the name-based UUIDs used as edge identities.
var edgeNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/TFMV/pubmap/edge"))

type Node struct {
	ID     string
	Name   string
	Power  float64
	Index  int     // position in Graph.Nodes
	X, Y   float64 // position for rendering
	VX, VY float64 // velocity used in physics simulation
	FX, FY *float64
}

// Pinned reports whether either coordinate is fixed.
func (n *Node) Pinned() bool {
	return n.FX != nil || n.FY != nil
}

// Pin fixes the node at (x, y).
func (n *Node) Pin(x, y float64) {
	n.FX = &x
	n.FY = &y
}

// Unpin releases both coordinates.
func (n *Node) Unpin() {
	n.FX = nil
	n.FY = nil
}

type Edge struct {
	ID     string
	Source *Node
	Target *Node
	Weight float64
	Index  int
}

type Graph struct {
	Nodes []*Node
	Edges []*Edge
	index map[string]*Node
	edges map[string]*Edge
}

// NewGraph creates an empty Graph.
func NewGraph() *Graph {
	return &Graph{
		Nodes: make([]*Node, 0),
		Edges: make([]*Edge, 0),
		index: make(map[string]*Node),
		edges: make(map[string]*Edge),
	}
}

// AddNode inserts a node and assigns its index. It returns false, leaving
// the graph unchanged, when the id is already present.
func (g *Graph) AddNode(n *Node) bool {
	if _, ok := g.index[n.ID]; ok {
		return false
	}
	n.Index = len(g.Nodes)
	g.Nodes = append(g.Nodes, n)
	g.index[n.ID] = n
	return true
}

// AddEdge appends an edge and assigns its index. It returns false when an
// edge with the same id is already present.
func (g *Graph) AddEdge(e *Edge) bool {
	if _, ok := g.edges[e.ID]; ok {
		return false
	}
	e.Index = len(g.Edges)
	g.Edges = append(g.Edges, e)
	g.edges[e.ID] = e
	return true
}

// Node looks up a node by id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.index[id]
	return n, ok
}

// Edge looks up an edge by id.
func (g *Graph) Edge(id string) (*Edge, bool) {
	e, ok := g.edges[id]
	return e, ok
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.Nodes)
}

// IDs returns node ids in graph order.
func (g *Graph) IDs() []string {
	ids := make([]string, len(g.Nodes))
	for i, n := range g.Nodes {
		ids[i] = n.ID
	}
	return ids
}

// EdgeID derives the identity of the undirected edge between a and b. The
// result does not depend on argument order and is stable across snapshots.
func EdgeID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return uuid.NewSHA1(edgeNamespace, []byte(a+"\x00"+b)).String()
}
