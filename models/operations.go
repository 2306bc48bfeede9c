package models

// NewSnapshot creates an empty snapshot for the given year.
func NewSnapshot(year int) *Snapshot {
	return &Snapshot{
		Year:  year,
		Nodes: []NodeSpec{},
		Edges: []EdgeSpec{},
	}
}

// AddNode appends a node to the snapshot. Uniqueness is checked when the
// snapshot is reconciled, not here.
func (s *Snapshot) AddNode(id ID, name string, power float64) {
	s.Nodes = append(s.Nodes, NodeSpec{ID: id, Name: name, Power: power})
}

// AddEdge appends an edge to the snapshot.
func (s *Snapshot) AddEdge(source, target ID, weight float64) {
	s.Edges = append(s.Edges, EdgeSpec{Source: source, Target: target, Weight: weight})
}

// RefreshInfo recomputes the statistics block from the current nodes and edges.
func (s *Snapshot) RefreshInfo() {
	s.Info = SnapshotInfo{
		Nodes: Describe(s.Powers()),
		Links: Describe(s.Weights()),
	}
}
