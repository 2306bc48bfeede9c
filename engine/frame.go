package engine

// FrameNode is the render state of one node.
type FrameNode struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Power        float64 `json:"power"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	Radius       float64 `json:"radius"`
	LabelSize    float64 `json:"labelSize"`
	LabelVisible bool    `json:"labelVisible"`
	Pinned       bool    `json:"pinned,omitempty"`
}

// FrameEdge is the render state of one edge.
type FrameEdge struct {
	ID          string  `json:"id"`
	Source      string  `json:"source"`
	Target      string  `json:"target"`
	Weight      float64 `json:"weight"`
	X1          float64 `json:"x1"`
	Y1          float64 `json:"y1"`
	X2          float64 `json:"x2"`
	Y2          float64 `json:"y2"`
	StrokeWidth float64 `json:"strokeWidth"`
	Visible     bool    `json:"visible"`
}

// Frame is an immutable copy of everything a renderer needs for one tick.
// It shares no memory with the engine and may cross goroutines.
type Frame struct {
	Year   int         `json:"year"`
	Tick   uint64      `json:"tick"`
	Alpha  float64     `json:"alpha"`
	State  string      `json:"state"`
	Width  float64     `json:"width"`
	Height float64     `json:"height"`
	Nodes  []FrameNode `json:"nodes"`
	Edges  []FrameEdge `json:"edges"`
}

// Frame captures the current render state.
func (e *Engine) Frame() *Frame {
	g := e.sim.Graph()
	f := &Frame{
		Year:   e.year,
		Tick:   e.sim.Ticks(),
		Alpha:  e.sim.Alpha(),
		State:  e.sim.State().String(),
		Width:  e.cfg.Width,
		Height: e.cfg.Height,
		Nodes:  make([]FrameNode, len(g.Nodes)),
		Edges:  make([]FrameEdge, len(g.Edges)),
	}
	for i, n := range g.Nodes {
		f.Nodes[i] = FrameNode{
			ID:           n.ID,
			Name:         n.Name,
			Power:        n.Power,
			X:            n.X,
			Y:            n.Y,
			Radius:       e.mapper.Radius(n.Power),
			LabelSize:    e.mapper.LabelSize(n.Power),
			LabelVisible: e.mapper.LabelVisible(n.Power),
			Pinned:       n.Pinned(),
		}
	}
	for i, edge := range g.Edges {
		f.Edges[i] = FrameEdge{
			ID:          edge.ID,
			Source:      edge.Source.ID,
			Target:      edge.Target.ID,
			Weight:      edge.Weight,
			X1:          edge.Source.X,
			Y1:          edge.Source.Y,
			X2:          edge.Target.X,
			Y2:          edge.Target.Y,
			StrokeWidth: e.mapper.StrokeWidth(edge.Weight),
			Visible:     e.mapper.EdgeVisible(edge.Weight),
		}
	}
	return f
}

// Node returns the frame node with the given id.
func (f *Frame) Node(id string) (FrameNode, bool) {
	for _, n := range f.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return FrameNode{}, false
}
