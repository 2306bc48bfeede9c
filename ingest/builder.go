package ingest

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strconv"

	"github.com/TFMV/pubmap/models"
	"golang.org/x/sync/errgroup"
)

// ErrNoCoauthors is returned when no publication has two or more authors.
var ErrNoCoauthors = errors.New("no co-authored publications")

// BuildConfig controls how publications are aggregated into snapshots.
type BuildConfig struct {
	PastYears    int     `toml:"past_years" yaml:"past_years" json:"past_years"`
	MinPower     float64 `toml:"min_power" yaml:"min_power" json:"min_power"`
	MinWeight    float64 `toml:"min_weight" yaml:"min_weight" json:"min_weight"`
	MaxNodes     int     `toml:"max_nodes" yaml:"max_nodes" json:"max_nodes"` // 0 means unlimited
	MaxEdges     int     `toml:"max_edges" yaml:"max_edges" json:"max_edges"` // 0 means unlimited
	RemoveStumps bool    `toml:"remove_stumps" yaml:"remove_stumps" json:"remove_stumps"`
	Workers      int     `toml:"workers" yaml:"workers" json:"workers"`
}

// DefaultBuildConfig looks back 25 years and drops unlinked authors.
func DefaultBuildConfig() BuildConfig {
	return BuildConfig{
		PastYears:    25,
		MinPower:     1,
		MinWeight:    1,
		RemoveStumps: true,
		Workers:      runtime.NumCPU(),
	}
}

// Validate checks parameter ranges.
func (c BuildConfig) Validate() error {
	if c.PastYears < 0 {
		return fmt.Errorf("past_years must be non-negative, got %d", c.PastYears)
	}
	if c.MaxNodes < 0 || c.MaxEdges < 0 {
		return fmt.Errorf("max_nodes and max_edges must be non-negative")
	}
	return nil
}

// coauthorship is one unordered pair of distinct authors on a publication,
// with A < B.
type coauthorship struct {
	A, B string
	Year int
}

type pairKey struct{ A, B string }

// Builder aggregates publications into per-year co-authorship snapshots.
// Each year's snapshot covers a sliding window of PastYears ending at that
// year. Node ids come from the all-time power ranking so they are stable
// across years.
type Builder struct {
	cfg BuildConfig
}

// NewBuilder creates a builder.
func NewBuilder(cfg BuildConfig) *Builder {
	return &Builder{cfg: cfg}
}

// Build produces one snapshot per distinct publication year plus a summary.
// Years are aggregated concurrently.
func (b *Builder) Build(ctx context.Context, pubs []models.Publication) (*Dataset, error) {
	pairs := coauthorships(pubs)
	if len(pairs) == 0 {
		return nil, ErrNoCoauthors
	}

	ranking := rankNodes(pairs)
	ids := make(map[string]models.ID, len(ranking))
	for i, n := range ranking {
		ids[n.name] = models.ID(strconv.Itoa(i))
	}

	var years []int
	seen := make(map[int]bool)
	for _, p := range pairs {
		if !seen[p.Year] {
			seen[p.Year] = true
			years = append(years, p.Year)
		}
	}
	sort.Ints(years)

	snaps := make([]*models.Snapshot, len(years))
	g, ctx := errgroup.WithContext(ctx)
	workers := b.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)
	for i, year := range years {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			snaps[i] = b.snapshot(pairs, ids, year)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Global statistics use the unfiltered all-time graph.
	all := b.aggregate(pairs, ids, BuildConfig{MinPower: 1, MinWeight: 1, RemoveStumps: true})
	all.RefreshInfo()
	summary := &models.Summary{
		Year:  [2]int{years[0], years[len(years)-1]},
		Nodes: all.Info.Nodes,
		Links: all.Info.Links,
	}
	return &Dataset{Summary: summary, Snapshots: snaps}, nil
}

func (b *Builder) snapshot(pairs []coauthorship, ids map[string]models.ID, year int) *models.Snapshot {
	from := year - b.cfg.PastYears
	window := make([]coauthorship, 0, len(pairs))
	for _, p := range pairs {
		if p.Year >= from && p.Year <= year {
			window = append(window, p)
		}
	}
	snap := b.aggregate(window, ids, b.cfg)
	snap.Year = year
	snap.RefreshInfo()
	return snap
}

// aggregate turns co-authorships into a filtered snapshot.
func (b *Builder) aggregate(pairs []coauthorship, ids map[string]models.ID, cfg BuildConfig) *models.Snapshot {
	nodes := rankNodes(pairs)
	kept := make(map[string]nodeStat, len(nodes))
	var order []nodeStat
	for _, n := range nodes {
		if n.power < cfg.MinPower {
			continue
		}
		if cfg.MaxNodes > 0 && len(order) == cfg.MaxNodes {
			break
		}
		kept[n.name] = n
		order = append(order, n)
	}

	weights := make(map[pairKey]float64)
	for _, p := range pairs {
		weights[pairKey{p.A, p.B}]++
	}
	type edge struct {
		pairKey
		weight float64
	}
	var edges []edge
	for k, w := range weights {
		if w < cfg.MinWeight {
			continue
		}
		if _, ok := kept[k.A]; !ok {
			continue
		}
		if _, ok := kept[k.B]; !ok {
			continue
		}
		edges = append(edges, edge{k, w})
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].weight != edges[j].weight {
			return edges[i].weight > edges[j].weight
		}
		if edges[i].A != edges[j].A {
			return edges[i].A < edges[j].A
		}
		return edges[i].B < edges[j].B
	})
	if cfg.MaxEdges > 0 && len(edges) > cfg.MaxEdges {
		edges = edges[:cfg.MaxEdges]
	}

	linked := make(map[string]bool)
	for _, e := range edges {
		linked[e.A] = true
		linked[e.B] = true
	}

	snap := models.NewSnapshot(0)
	for _, n := range order {
		if cfg.RemoveStumps && !linked[n.name] {
			continue
		}
		snap.Nodes = append(snap.Nodes, models.NodeSpec{
			ID:    ids[n.name],
			Name:  n.name,
			Power: n.power,
			Last:  n.last,
			Group: 1,
		})
	}
	for _, e := range edges {
		snap.AddEdge(ids[e.A], ids[e.B], e.weight)
	}
	return snap
}

type nodeStat struct {
	name  string
	power float64
	last  int
}

// rankNodes counts, per author, the co-authorship entries they take part in
// and orders them by power descending, then name ascending.
func rankNodes(pairs []coauthorship) []nodeStat {
	stats := make(map[string]*nodeStat)
	touch := func(name string, year int) {
		s, ok := stats[name]
		if !ok {
			s = &nodeStat{name: name, last: year}
			stats[name] = s
		}
		s.power++
		s.last = max(s.last, year)
	}
	for _, p := range pairs {
		touch(p.A, p.Year)
		touch(p.B, p.Year)
	}

	out := make([]nodeStat, 0, len(stats))
	for _, s := range stats {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].power != out[j].power {
			return out[i].power > out[j].power
		}
		return out[i].name < out[j].name
	})
	return out
}

// coauthorships expands every publication into its distinct unordered
// author pairs.
func coauthorships(pubs []models.Publication) []coauthorship {
	var out []coauthorship
	for _, pub := range pubs {
		seen := make(map[pairKey]bool)
		for i, a := range pub.Authors {
			for _, b := range pub.Authors[i+1:] {
				if a == b {
					continue
				}
				k := pairKey{a, b}
				if b < a {
					k = pairKey{b, a}
				}
				if seen[k] {
					continue
				}
				seen[k] = true
				out = append(out, coauthorship{A: k.A, B: k.B, Year: pub.Year})
			}
		}
	}
	return out
}
