// Package models provides the wire-level data structures for pubmap: the
// per-year graph snapshots, the global summary resource and the publication
// records the snapshot builder aggregates.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is a node identifier. Snapshot producers emit ids either as JSON strings
// or as integers; both decode to the same textual form.
type ID string

// UnmarshalJSON accepts a JSON string, a JSON number or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*id = ""
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", data, err)
	}
	// Integral floats such as 12.0 normalise to "12".
	if f, err := n.Float64(); err == nil && f == float64(int64(f)) {
		*id = ID(strconv.FormatInt(int64(f), 10))
		return nil
	}
	*id = ID(n.String())
	return nil
}

// String returns the id as a plain string.
func (id ID) String() string { return string(id) }

// NodeSpec is a node as it appears in a snapshot.
type NodeSpec struct {
	ID    ID      `json:"id"`
	Name  string  `json:"name"`
	Power float64 `json:"power"`
	Last  int     `json:"last,omitempty"`  // last year of appearance
	Group int     `json:"group,omitempty"` // colour group
}

// EdgeSpec is an edge as it appears in a snapshot. Endpoints reference node
// ids of the same snapshot.
type EdgeSpec struct {
	Source ID      `json:"source"`
	Target ID      `json:"target"`
	Weight float64 `json:"weight"`
}

// Stats is a descriptive statistics block over a power or weight column.
type Stats struct {
	Count float64 `json:"count"`
	Mean  float64 `json:"mean,omitempty"`
	Std   float64 `json:"std,omitempty"`
	Min   float64 `json:"min"`
	P25   float64 `json:"25%,omitempty"`
	P50   float64 `json:"50%"`
	P75   float64 `json:"75%"`
	Max   float64 `json:"max"`
}

// UnmarshalJSON accepts the statistics either as an object or as a string
// holding the JSON-encoded object.
func (s *Stats) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return err
		}
		data = []byte(inner)
	}
	type plain Stats
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("invalid stats block: %w", err)
	}
	*s = Stats(p)
	return nil
}

// SnapshotInfo carries the statistics of one snapshot.
type SnapshotInfo struct {
	Nodes Stats `json:"nodes"`
	Links Stats `json:"links"`
}

// Snapshot is the complete node and edge set for one year.
type Snapshot struct {
	Year  int          `json:"year,omitempty"`
	Nodes []NodeSpec   `json:"nodes"`
	Edges []EdgeSpec   `json:"edges"`
	Info  SnapshotInfo `json:"info"`
}

// Summary is the global resource describing the available year range.
type Summary struct {
	Year  [2]int `json:"year"`
	Nodes Stats  `json:"nodes"`
	Links Stats  `json:"links"`
}

// MinYear returns the first available year.
func (s *Summary) MinYear() int { return s.Year[0] }

// MaxYear returns the last available year.
func (s *Summary) MaxYear() int { return s.Year[1] }

// Publication is one bibliographic record used to build snapshots.
type Publication struct {
	Title   string   `json:"title"`
	Year    int      `json:"year"`
	Authors []string `json:"authors"`
}
