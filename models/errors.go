package models

import (
	"errors"
	"fmt"
)

var (
	// ErrSnapshotNotFound is returned when no snapshot exists for a year.
	ErrSnapshotNotFound = errors.New("snapshot not found")
	// ErrDanglingReference marks an edge whose endpoint is not in the node set.
	ErrDanglingReference = errors.New("dangling reference")
	// ErrDuplicateNodeID marks an empty or repeated node id within a snapshot.
	ErrDuplicateNodeID = errors.New("duplicate node id")
	// ErrDuplicateEdge marks a repeated endpoint pair within a snapshot.
	ErrDuplicateEdge = errors.New("duplicate edge")
	// ErrSelfLoop marks an edge whose endpoints are the same node.
	ErrSelfLoop = errors.New("self loop")
	// ErrNodeNotFound is returned by interaction calls on ids absent from the live graph.
	ErrNodeNotFound = errors.New("node not found")
)

// Anomaly is a recoverable, per-entity problem found while loading a
// snapshot. It unwraps to one of the sentinel errors above.
type Anomaly struct {
	Kind   error
	ID     string
	Detail string
}

// NewAnomaly creates an anomaly of the given kind.
func NewAnomaly(kind error, id, detail string) *Anomaly {
	return &Anomaly{Kind: kind, ID: id, Detail: detail}
}

func (a *Anomaly) Error() string {
	if a.Detail == "" {
		return fmt.Sprintf("%v: %q", a.Kind, a.ID)
	}
	return fmt.Sprintf("%v: %q (%s)", a.Kind, a.ID, a.Detail)
}

func (a *Anomaly) Unwrap() error { return a.Kind }

// KindName returns a stable snake_case label for the anomaly kind, suitable
// for metric labels and log fields.
func (a *Anomaly) KindName() string {
	switch a.Kind {
	case ErrDanglingReference:
		return "dangling_reference"
	case ErrDuplicateNodeID:
		return "duplicate_node_id"
	case ErrDuplicateEdge:
		return "duplicate_edge"
	case ErrSelfLoop:
		return "self_loop"
	default:
		return "other"
	}
}
