package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/TFMV/pubmap/models"
)

// SummaryFile is the file name of the global summary resource.
const SummaryFile = "info.json"

// SnapshotFile returns the file name of the snapshot for year.
func SnapshotFile(year int) string {
	return fmt.Sprintf("pubmap%d.json", year)
}

// Source provides the summary and the per-year snapshots. Implementations
// return an error wrapping models.ErrSnapshotNotFound for unknown years.
type Source interface {
	Summary(ctx context.Context) (*models.Summary, error)
	Snapshot(ctx context.Context, year int) (*models.Snapshot, error)
}

// Sink stores a dataset.
type Sink interface {
	PutSummary(ctx context.Context, s *models.Summary) error
	PutSnapshot(ctx context.Context, s *models.Snapshot) error
}

// WriteDataset stores every snapshot and the summary in sink.
func WriteDataset(ctx context.Context, sink Sink, ds *Dataset) error {
	for _, s := range ds.Snapshots {
		if err := sink.PutSnapshot(ctx, s); err != nil {
			return fmt.Errorf("store snapshot %d: %w", s.Year, err)
		}
	}
	if err := sink.PutSummary(ctx, ds.Summary); err != nil {
		return fmt.Errorf("store summary: %w", err)
	}
	return nil
}

// DirSource reads and writes a directory of info.json and pubmap{year}.json.
type DirSource struct {
	dir string
}

// NewDirSource creates a directory-backed source.
func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

func (d *DirSource) Summary(ctx context.Context) (*models.Summary, error) {
	f, err := d.open(ctx, SummaryFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeSummary(f)
}

func (d *DirSource) Snapshot(ctx context.Context, year int) (*models.Snapshot, error) {
	f, err := d.open(ctx, SnapshotFile(year))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("year %d: %w", year, models.ErrSnapshotNotFound)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	snap, err := DecodeSnapshot(f)
	if err != nil {
		return nil, fmt.Errorf("year %d: %w", year, err)
	}
	snap.Year = year
	return snap, nil
}

func (d *DirSource) open(ctx context.Context, name string) (*os.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.Open(filepath.Join(d.dir, name))
}

func (d *DirSource) PutSummary(ctx context.Context, s *models.Summary) error {
	return d.write(ctx, SummaryFile, s)
}

func (d *DirSource) PutSnapshot(ctx context.Context, s *models.Snapshot) error {
	return d.write(ctx, SnapshotFile(s.Year), s)
}

func (d *DirSource) write(ctx context.Context, name string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(d.dir, name), data, 0o644)
}

// HTTPSource fetches info.json and pubmap{year}.json below a base URL.
type HTTPSource struct {
	base   string
	client *http.Client
}

// NewHTTPSource creates an HTTP source. A nil client gets a 10s timeout.
func NewHTTPSource(base string, client *http.Client) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPSource{base: strings.TrimRight(base, "/"), client: client}
}

func (h *HTTPSource) Summary(ctx context.Context) (*models.Summary, error) {
	body, err := h.get(ctx, SummaryFile)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return DecodeSummary(body)
}

func (h *HTTPSource) Snapshot(ctx context.Context, year int) (*models.Snapshot, error) {
	body, err := h.get(ctx, SnapshotFile(year))
	if errors.Is(err, errHTTPNotFound) {
		return nil, fmt.Errorf("year %d: %w", year, models.ErrSnapshotNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("year %d: %w", year, err)
	}
	defer body.Close()

	snap, err := DecodeSnapshot(body)
	if err != nil {
		return nil, fmt.Errorf("year %d: %w", year, err)
	}
	snap.Year = year
	return snap, nil
}

var errHTTPNotFound = errors.New("not found")

func (h *HTTPSource) get(ctx context.Context, name string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.base+"/"+name, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, errHTTPNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: %s", name, resp.Status)
	}
	return resp.Body, nil
}

// MemorySource keeps a dataset in memory. It is safe for concurrent use.
type MemorySource struct {
	mu        sync.RWMutex
	summary   *models.Summary
	snapshots map[int]*models.Snapshot
}

// NewMemorySource creates a source holding ds, which may be nil.
func NewMemorySource(ds *Dataset) *MemorySource {
	m := &MemorySource{snapshots: make(map[int]*models.Snapshot)}
	if ds != nil {
		m.summary = ds.Summary
		for _, s := range ds.Snapshots {
			m.snapshots[s.Year] = s
		}
	}
	return m
}

func (m *MemorySource) Summary(ctx context.Context) (*models.Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.summary != nil {
		s := *m.summary
		return &s, nil
	}
	years := make([]int, 0, len(m.snapshots))
	for y := range m.snapshots {
		years = append(years, y)
	}
	if len(years) == 0 {
		return nil, models.ErrSnapshotNotFound
	}
	sort.Ints(years)
	return &models.Summary{Year: [2]int{years[0], years[len(years)-1]}}, nil
}

// Snapshot returns a copy of the stored snapshot.
func (m *MemorySource) Snapshot(ctx context.Context, year int) (*models.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.snapshots[year]
	if !ok {
		return nil, fmt.Errorf("year %d: %w", year, models.ErrSnapshotNotFound)
	}
	c := *s
	c.Nodes = append([]models.NodeSpec(nil), s.Nodes...)
	c.Edges = append([]models.EdgeSpec(nil), s.Edges...)
	return &c, nil
}

func (m *MemorySource) PutSummary(_ context.Context, s *models.Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summary = s
	return nil
}

func (m *MemorySource) PutSnapshot(_ context.Context, s *models.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[s.Year] = s
	return nil
}
