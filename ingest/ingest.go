// Package ingest loads publication-map data: per-year snapshots from a
// directory or an HTTP server, and publication lists that the Builder turns
// into snapshots.
package ingest

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/TFMV/pubmap/models"
)

// Dataset is the output of a processor: every snapshot plus the global
// summary derived from them.
type Dataset struct {
	Summary   *models.Summary
	Snapshots []*models.Snapshot
}

// DataProcessor defines the interface that all data processors must implement
type DataProcessor interface {
	// ProcessData takes raw bytes and returns the snapshots they describe
	ProcessData(ctx context.Context, data []byte) (*Dataset, error)

	// GetName returns the name of the processor
	GetName() string
}

// JSONProcessor decodes snapshot JSON: either one snapshot object or an
// array of them.
type JSONProcessor struct{}

// NewJSONProcessor creates a new JSON processor
func NewJSONProcessor() *JSONProcessor {
	return &JSONProcessor{}
}

// GetName returns the name of the processor
func (p *JSONProcessor) GetName() string {
	return "JSON Processor"
}

// ProcessData decodes one or many snapshots. Every snapshot needs a year.
func (p *JSONProcessor) ProcessData(_ context.Context, data []byte) (*Dataset, error) {
	data = bytes.TrimSpace(data)
	var snaps []*models.Snapshot
	if len(data) > 0 && data[0] == '[' {
		if err := json.Unmarshal(data, &snaps); err != nil {
			return nil, fmt.Errorf("error parsing JSON: %w", err)
		}
	} else {
		snap, err := DecodeSnapshot(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		snaps = []*models.Snapshot{snap}
	}

	for i, s := range snaps {
		if s == nil || s.Year == 0 {
			return nil, fmt.Errorf("snapshot %d has no year", i)
		}
	}
	if len(snaps) == 0 {
		return nil, errors.New("no snapshots in input")
	}
	return &Dataset{Summary: Summarize(snaps), Snapshots: snaps}, nil
}

// DecodeSnapshot reads one snapshot document.
func DecodeSnapshot(r io.Reader) (*models.Snapshot, error) {
	var snap models.Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("error parsing snapshot JSON: %w", err)
	}
	if snap.Nodes == nil {
		snap.Nodes = []models.NodeSpec{}
	}
	if snap.Edges == nil {
		snap.Edges = []models.EdgeSpec{}
	}
	return &snap, nil
}

// DecodeSummary reads the global summary document.
func DecodeSummary(r io.Reader) (*models.Summary, error) {
	var sum models.Summary
	if err := json.NewDecoder(r).Decode(&sum); err != nil {
		return nil, fmt.Errorf("error parsing summary JSON: %w", err)
	}
	if sum.Year[0] > sum.Year[1] {
		return nil, fmt.Errorf("summary year range [%d,%d] is empty", sum.Year[0], sum.Year[1])
	}
	return &sum, nil
}

// Summarize derives a summary from a set of snapshots: the year range and
// statistics over the last-seen power of every node and every edge weight.
func Summarize(snaps []*models.Snapshot) *models.Summary {
	sorted := append([]*models.Snapshot(nil), snaps...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Year < sorted[j].Year })

	powers := make(map[models.ID]float64)
	weights := make(map[string]float64)
	for _, s := range sorted {
		for _, n := range s.Nodes {
			powers[n.ID] = n.Power
		}
		for _, e := range s.Edges {
			weights[e.Source.String()+"\x00"+e.Target.String()] = e.Weight
		}
	}

	sum := &models.Summary{}
	if len(sorted) > 0 {
		sum.Year = [2]int{sorted[0].Year, sorted[len(sorted)-1].Year}
	}
	sum.Nodes = models.Describe(values(powers))
	sum.Links = models.Describe(values(weights))
	return sum
}

func values[K comparable](m map[K]float64) []float64 {
	out := make([]float64, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Float64s(out)
	return out
}

// CSVProcessor reads a publication list and builds yearly snapshots from it.
type CSVProcessor struct {
	builder *Builder
}

// NewCSVProcessor creates a new CSV processor that aggregates with b
func NewCSVProcessor(b *Builder) *CSVProcessor {
	if b == nil {
		b = NewBuilder(DefaultBuildConfig())
	}
	return &CSVProcessor{builder: b}
}

// GetName returns the name of the processor
func (p *CSVProcessor) GetName() string {
	return "CSV Processor"
}

// ProcessData parses publications and aggregates them into snapshots.
func (p *CSVProcessor) ProcessData(ctx context.Context, data []byte) (*Dataset, error) {
	pubs, err := ReadPublications(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return p.builder.Build(ctx, pubs)
}

// ReadPublications parses a CSV or TSV publication list. The header must
// name a title column (title, name), a year column (year, date,
// publication_date) and an authors column (authors, author). Authors are
// separated by ';' or given as a bracketed list of quoted names.
func ReadPublications(r io.Reader) ([]models.Publication, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("error reading publications: %w", err)
	}
	reader := csv.NewReader(bytes.NewReader(raw))
	if first, _, _ := bytes.Cut(raw, []byte("\n")); bytes.Contains(first, []byte("\t")) {
		reader.Comma = '\t'
	}
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("error reading CSV header: %w", err)
	}

	titleIdx, yearIdx, authorsIdx := -1, -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "title", "name":
			titleIdx = i
		case "year", "date", "publication_date":
			yearIdx = i
		case "authors", "author":
			authorsIdx = i
		}
	}
	if yearIdx == -1 || authorsIdx == -1 {
		return nil, fmt.Errorf("CSV must contain year and authors columns")
	}

	var pubs []models.Publication
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV row: %w", err)
		}
		if yearIdx >= len(row) || authorsIdx >= len(row) {
			return nil, fmt.Errorf("line %d: too few columns", line)
		}
		year, err := ParseYear(row[yearIdx])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		pub := models.Publication{Year: year, Authors: SplitAuthors(row[authorsIdx])}
		if titleIdx >= 0 && titleIdx < len(row) {
			pub.Title = row[titleIdx]
		}
		pubs = append(pubs, pub)
	}
	return pubs, nil
}

var dateLayouts = []string{"2006-01-02", "2006-01", "2006/01/02", time.RFC3339}

// ParseYear accepts a bare year or a date in a few common layouts.
func ParseYear(s string) (int, error) {
	s = strings.TrimSpace(s)
	if y, err := strconv.Atoi(s); err == nil {
		return y, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Year(), nil
		}
	}
	return 0, fmt.Errorf("cannot parse year from %q", s)
}

var quotedName = regexp.MustCompile(`'([^']*)'|"([^"]*)"`)

// SplitAuthors splits an author cell into trimmed, non-empty names.
func SplitAuthors(s string) []string {
	s = strings.TrimSpace(s)
	var parts []string
	if strings.HasPrefix(s, "[") {
		for _, m := range quotedName.FindAllStringSubmatch(s, -1) {
			parts = append(parts, m[1]+m[2])
		}
	} else {
		parts = strings.Split(s, ";")
	}

	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			names = append(names, p)
		}
	}
	return names
}

// GetProcessor returns the appropriate processor for the given format
func GetProcessor(format string, b *Builder) (DataProcessor, error) {
	switch strings.ToLower(format) {
	case "json":
		return NewJSONProcessor(), nil
	case "csv", "tsv":
		return NewCSVProcessor(b), nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}
