package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/TFMV/pubmap/engine"
)

// OutputOptions defines rendering configuration options
type OutputOptions struct {
	Format     string  // Output format (svg, ascii, json)
	Width      float64 // Width of the output, defaults to the frame canvas
	Height     float64 // Height of the output, defaults to the frame canvas
	Background string  // Background color
	NodeColor  string  // Fill for unpinned nodes
	PinColor   string  // Fill for pinned nodes
	EdgeColor  string  // Stroke for edges
	Timestamp  bool    // Include timestamp in visualization
	ShowLabels bool    // Show node labels that pass the visibility cutoff
	ShowHidden bool    // Draw edges below the visibility cutoff
	Title      bool    // Draw the year in a corner
}

// Renderer interface defines methods that all rendering backends must implement
type Renderer interface {
	// Render creates a visualization of the frame using the provided options
	Render(frame *engine.Frame, options *OutputOptions) ([]byte, error)

	// Name returns the name of the renderer
	Name() string

	// Description returns a description of the renderer
	Description() string

	// Extension is the file extension used when writing to disk.
	Extension() string
}

// NewDefaultOptions creates a default set of output options
func NewDefaultOptions(format string) *OutputOptions {
	return &OutputOptions{
		Format:     format,
		Background: "#ffffff",
		NodeColor:  "#4285f4",
		PinColor:   "#db4437",
		EdgeColor:  "#999999",
		ShowLabels: true,
		Title:      true,
	}
}

// Formats lists the supported output formats.
func Formats() []string { return []string{"svg", "json", "ascii"} }

// GetRenderer returns the appropriate renderer based on format
func GetRenderer(format string) (Renderer, error) {
	switch strings.ToLower(format) {
	case "svg":
		return &SVGRenderer{}, nil
	case "ascii", "txt":
		return &ASCIIRenderer{}, nil
	case "json":
		return &JSONRenderer{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// Render renders the frame in the given format with default options.
func Render(frame *engine.Frame, format string) ([]byte, error) {
	r, err := GetRenderer(format)
	if err != nil {
		return nil, err
	}
	return r.Render(frame, NewDefaultOptions(format))
}

func dims(frame *engine.Frame, options *OutputOptions) (float64, float64) {
	w, h := options.Width, options.Height
	if w <= 0 {
		w = frame.Width
	}
	if h <= 0 {
		h = frame.Height
	}
	return w, h
}

// SVGRenderer outputs SVG format
type SVGRenderer struct{}

// Name returns the name of the renderer
func (r *SVGRenderer) Name() string {
	return "SVG Renderer"
}

// Description returns a description of the renderer
func (r *SVGRenderer) Description() string {
	return "Renders co-authorship frames as Scalable Vector Graphics"
}

func (r *SVGRenderer) Extension() string { return "svg" }

// Render creates an SVG representation of the frame. The viewBox is the
// frame canvas so output size only scales the drawing.
func (r *SVGRenderer) Render(frame *engine.Frame, options *OutputOptions) ([]byte, error) {
	if frame == nil {
		return nil, fmt.Errorf("svg: nil frame")
	}
	var buf bytes.Buffer
	w, h := dims(frame, options)

	fmt.Fprintf(&buf, `<?xml version="1.0" encoding="UTF-8" standalone="no"?>
<svg width="%g" height="%g" viewBox="0 0 %g %g" xmlns="http://www.w3.org/2000/svg">
<rect width="100%%" height="100%%" fill="%s"/>
`, w, h, frame.Width, frame.Height, options.Background)

	buf.WriteString(`<g class="links">` + "\n")
	for _, e := range frame.Edges {
		if !e.Visible && !options.ShowHidden {
			continue
		}
		fmt.Fprintf(&buf, `<line id="%s" x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s" stroke-opacity="0.6" stroke-width="%.2f"/>
`, e.ID, e.X1, e.Y1, e.X2, e.Y2, options.EdgeColor, e.StrokeWidth)
	}
	buf.WriteString("</g>\n")

	buf.WriteString(`<g class="nodes">` + "\n")
	for _, n := range frame.Nodes {
		fill := options.NodeColor
		if n.Pinned {
			fill = options.PinColor
		}
		fmt.Fprintf(&buf, `<circle id="n%s" cx="%.2f" cy="%.2f" r="%.2f" fill="%s" fill-opacity="0.8" stroke="#ffffff" stroke-width="1"/>
`, n.ID, n.X, n.Y, n.Radius, fill)
	}
	buf.WriteString("</g>\n")

	if options.ShowLabels {
		buf.WriteString(`<g class="labels" font-family="sans-serif" text-anchor="middle">` + "\n")
		for _, n := range frame.Nodes {
			if !n.LabelVisible {
				continue
			}
			fmt.Fprintf(&buf, `<text x="%.2f" y="%.2f" font-size="%.2f" fill="#333333">%s</text>
`, n.X, n.Y+n.LabelSize/3, n.LabelSize, html.EscapeString(n.Name))
		}
		buf.WriteString("</g>\n")
	}

	if options.Title && frame.Year != 0 {
		fmt.Fprintf(&buf, `<text x="10" y="30" font-family="sans-serif" font-size="24" fill="#808080">%d</text>
`, frame.Year)
	}

	if options.Timestamp {
		fmt.Fprintf(&buf, `<text x="5" y="%g" font-family="sans-serif" font-size="8" fill="#808080">%s</text>
`, frame.Height-5, time.Now().Format("2006-01-02 15:04:05"))
	}

	buf.WriteString(`</svg>`)
	return buf.Bytes(), nil
}

// ASCIIRenderer outputs ASCII art format
type ASCIIRenderer struct{}

// Name returns the name of the renderer
func (r *ASCIIRenderer) Name() string {
	return "ASCII Renderer"
}

// Description returns a description of the renderer
func (r *ASCIIRenderer) Description() string {
	return "Renders frames as ASCII art for terminal output"
}

func (r *ASCIIRenderer) Extension() string { return "txt" }

// Render creates an ASCII representation of the frame
func (r *ASCIIRenderer) Render(frame *engine.Frame, options *OutputOptions) ([]byte, error) {
	if frame == nil {
		return nil, fmt.Errorf("ascii: nil frame")
	}
	w, h := dims(frame, options)
	width := max(int(w/10), 40)
	height := max(int(h/20), 20)

	grid := make([][]rune, height)
	for i := range grid {
		grid[i] = []rune(strings.Repeat(" ", width))
	}
	for i := 0; i < width; i++ {
		grid[0][i] = '-'
		grid[height-1][i] = '-'
	}
	for i := 0; i < height; i++ {
		grid[i][0] = '|'
		grid[i][width-1] = '|'
	}
	grid[0][0], grid[0][width-1] = '+', '+'
	grid[height-1][0], grid[height-1][width-1] = '+', '+'

	cell := func(x, y float64) (int, int) {
		cx := int(x*float64(width-2)/frame.Width) + 1
		cy := int(y*float64(height-2)/frame.Height) + 1
		return clamp(cx, 1, width-2), clamp(cy, 1, height-2)
	}

	for _, e := range frame.Edges {
		if !e.Visible && !options.ShowHidden {
			continue
		}
		x1, y1 := cell(e.X1, e.Y1)
		x2, y2 := cell(e.X2, e.Y2)
		drawLine(grid, x1, y1, x2, y2)
	}

	for _, n := range frame.Nodes {
		x, y := cell(n.X, n.Y)
		grid[y][x] = nodeSymbol(n)
	}

	if options.ShowLabels {
		for _, n := range frame.Nodes {
			if !n.LabelVisible {
				continue
			}
			x, y := cell(n.X, n.Y)
			if y+1 >= height-1 {
				continue
			}
			for i, c := range []rune(n.Name) {
				if x+i >= width-1 {
					break
				}
				grid[y+1][x+i] = c
			}
		}
	}

	if options.Title && frame.Year != 0 {
		for i, c := range fmt.Sprintf("pubmap %d", frame.Year) {
			if i+2 < width-1 {
				grid[1][i+2] = c
			}
		}
	}

	if options.Timestamp && height > 4 {
		for i, c := range time.Now().Format("2006-01-02 15:04") {
			if i+2 < width-1 {
				grid[height-2][i+2] = c
			}
		}
	}

	var result strings.Builder
	for _, row := range grid {
		result.WriteString(string(row))
		result.WriteRune('\n')
	}
	return []byte(result.String()), nil
}

func nodeSymbol(n engine.FrameNode) rune {
	switch {
	case n.Pinned:
		return 'X'
	case n.Radius >= 40:
		return '@'
	case n.Radius >= 15:
		return 'O'
	default:
		return 'o'
	}
}

func isNodeSymbol(r rune) bool {
	switch r {
	case 'X', '@', 'O', 'o':
		return true
	}
	return false
}

// JSONRenderer outputs raw JSON format
type JSONRenderer struct{}

// Name returns the name of the renderer
func (r *JSONRenderer) Name() string {
	return "JSON Renderer"
}

// Description returns a description of the renderer
func (r *JSONRenderer) Description() string {
	return "Renders frames as JSON for external renderers"
}

func (r *JSONRenderer) Extension() string { return "json" }

// Render marshals the frame. Hidden edges are kept with visible=false unless
// the options ask to drop them.
func (r *JSONRenderer) Render(frame *engine.Frame, options *OutputOptions) ([]byte, error) {
	if frame == nil {
		return nil, fmt.Errorf("json: nil frame")
	}
	out := *frame
	if !options.ShowHidden {
		out.Edges = make([]engine.FrameEdge, 0, len(frame.Edges))
		for _, e := range frame.Edges {
			if e.Visible {
				out.Edges = append(out.Edges, e)
			}
		}
	}
	return json.MarshalIndent(out, "", "  ")
}

// Clamp a value between lo and hi
func clamp(val, lo, hi int) int {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}

// Draw a line on the ASCII grid using Bresenham's algorithm
func drawLine(grid [][]rune, x1, y1, x2, y2 int) {
	dx := abs(x2 - x1)
	dy := -abs(y2 - y1)
	sx := 1
	if x1 >= x2 {
		sx = -1
	}
	sy := 1
	if y1 >= y2 {
		sy = -1
	}
	err := dx + dy

	for {
		if y1 >= 0 && y1 < len(grid) && x1 >= 0 && x1 < len(grid[y1]) && !isNodeSymbol(grid[y1][x1]) {
			grid[y1][x1] = '.'
		}
		if x1 == x2 && y1 == y2 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x1 += sx
		}
		if e2 <= dx {
			err += dx
			y1 += sy
		}
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
