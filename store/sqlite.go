// Package store persists snapshot datasets in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/TFMV/pubmap/ingest"
	"github.com/TFMV/pubmap/models"

	_ "modernc.org/sqlite"
)

const summaryKey = "summary"

// SQLite stores one JSON document per year plus the global summary. It
// implements ingest.Source and ingest.Sink.
type SQLite struct {
	db *sql.DB
}

var (
	_ ingest.Source = (*SQLite)(nil)
	_ ingest.Sink   = (*SQLite)(nil)
)

// Open opens or creates the database at path. ":memory:" gives a private
// in-memory database.
func Open(path string) (*SQLite, error) {
	dsn := path
	if path != ":memory:" {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		dsn = path + sep + "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every connection to :memory: is its own database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		year INTEGER PRIMARY KEY,
		node_count INTEGER NOT NULL,
		edge_count INTEGER NOT NULL,
		data JSON NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value JSON NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Summary returns the stored summary, or one derived from the stored years
// when none was written.
func (s *SQLite) Summary(ctx context.Context) (*models.Summary, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, summaryKey).Scan(&data)
	if err == nil {
		sum, err := ingest.DecodeSummary(strings.NewReader(string(data)))
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal summary: %w", err)
		}
		return sum, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to query summary: %w", err)
	}

	var lo, hi sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MIN(year), MAX(year) FROM snapshots`).Scan(&lo, &hi); err != nil {
		return nil, fmt.Errorf("failed to query year range: %w", err)
	}
	if !lo.Valid {
		return nil, fmt.Errorf("empty store: %w", models.ErrSnapshotNotFound)
	}
	return &models.Summary{Year: [2]int{int(lo.Int64), int(hi.Int64)}}, nil
}

// Snapshot loads the snapshot for year.
func (s *SQLite) Snapshot(ctx context.Context, year int) (*models.Snapshot, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM snapshots WHERE year = ?`, year).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("year %d: %w", year, models.ErrSnapshotNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot %d: %w", year, err)
	}

	snap, err := ingest.DecodeSnapshot(strings.NewReader(string(data)))
	if err != nil {
		return nil, fmt.Errorf("year %d: %w", year, err)
	}
	snap.Year = year
	return snap, nil
}

// Years lists stored years in ascending order.
func (s *SQLite) Years(ctx context.Context) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT year FROM snapshots ORDER BY year`)
	if err != nil {
		return nil, fmt.Errorf("failed to query years: %w", err)
	}
	defer rows.Close()

	var years []int
	for rows.Next() {
		var y int
		if err := rows.Scan(&y); err != nil {
			return nil, fmt.Errorf("failed to scan year: %w", err)
		}
		years = append(years, y)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating years: %w", err)
	}
	return years, nil
}

// PutSummary upserts the summary.
func (s *SQLite) PutSummary(ctx context.Context, sum *models.Summary) error {
	return putSummary(ctx, s.db, sum)
}

// PutSnapshot upserts one snapshot.
func (s *SQLite) PutSnapshot(ctx context.Context, snap *models.Snapshot) error {
	return putSnapshot(ctx, s.db, snap)
}

// ImportDataset replaces the stored dataset in one transaction.
func (s *SQLite) ImportDataset(ctx context.Context, ds *ingest.Dataset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshots`); err != nil {
		return fmt.Errorf("failed to clear snapshots: %w", err)
	}
	for _, snap := range ds.Snapshots {
		if err := putSnapshot(ctx, tx, snap); err != nil {
			return err
		}
	}
	if ds.Summary != nil {
		if err := putSummary(ctx, tx, ds.Summary); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func putSnapshot(ctx context.Context, db execer, snap *models.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot %d: %w", snap.Year, err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO snapshots (year, node_count, edge_count, data, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(year) DO UPDATE SET
			node_count = excluded.node_count,
			edge_count = excluded.edge_count,
			data = excluded.data,
			updated_at = CURRENT_TIMESTAMP
	`, snap.Year, len(snap.Nodes), len(snap.Edges), string(data))
	if err != nil {
		return fmt.Errorf("failed to store snapshot %d: %w", snap.Year, err)
	}
	return nil
}

func putSummary(ctx context.Context, db execer, sum *models.Summary) error {
	data, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO metadata (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, summaryKey, string(data))
	if err != nil {
		return fmt.Errorf("failed to store summary: %w", err)
	}
	return nil
}
