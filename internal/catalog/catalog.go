// Package catalog records extraction runs in a SQLite database.
//
// Re-running an extraction overwrites the previous map file, so the
// catalog is the only place the history survives: one row per run with
// the input and output digests, the selected class, and the counts.
package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/GrantMcConachie/FlyWireInitialScrape/internal/digest"
)

// ErrRunNotFound indicates a run id absent from the catalog.
var ErrRunNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	region TEXT NOT NULL,
	class TEXT NOT NULL,
	neurons INTEGER NOT NULL,
	connections INTEGER NOT NULL,
	map_path TEXT NOT NULL,
	map_digest TEXT NOT NULL,
	classification_digest TEXT NOT NULL,
	connections_digest TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_region ON runs(region);
`

// Run is one recorded extraction.
type Run struct {
	ID                   string
	Region               string
	Class                string
	Neurons              int
	Connections          int
	MapPath              string
	MapDigest            string
	ClassificationDigest string
	ConnectionsDigest    string
	CreatedAt            int64
}

// Catalog wraps the SQLite connection.
type Catalog struct {
	db *sql.DB
}

// Open opens or creates the catalog database at {dir}/catalog.db.
func Open(dir string) (*Catalog, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating catalog directory: %w", err)
	}

	dbPath := filepath.Join(dir, "catalog.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	db.Exec("PRAGMA busy_timeout=5000")

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Catalog{db: db}, nil
}

// Close closes the catalog database.
func (c *Catalog) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// RecordRun inserts a run and returns its generated id.
func (c *Catalog) RecordRun(r Run) (string, error) {
	r.ID = uuid.NewString()
	r.CreatedAt = digest.NowMs()

	_, err := c.db.Exec(`
		INSERT INTO runs (id, region, class, neurons, connections, map_path, map_digest,
			classification_digest, connections_digest, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Region, r.Class, r.Neurons, r.Connections, r.MapPath, r.MapDigest,
		r.ClassificationDigest, r.ConnectionsDigest, r.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}

	return r.ID, nil
}

// GetRun retrieves a run by id.
func (c *Catalog) GetRun(id string) (*Run, error) {
	var r Run
	err := c.db.QueryRow(`
		SELECT id, region, class, neurons, connections, map_path, map_digest,
			classification_digest, connections_digest, created_at
		FROM runs WHERE id = ?
	`, id).Scan(&r.ID, &r.Region, &r.Class, &r.Neurons, &r.Connections, &r.MapPath,
		&r.MapDigest, &r.ClassificationDigest, &r.ConnectionsDigest, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying run: %w", err)
	}
	return &r, nil
}

// ListRuns returns all runs, newest first.
func (c *Catalog) ListRuns() ([]Run, error) {
	rows, err := c.db.Query(`
		SELECT id, region, class, neurons, connections, map_path, map_digest,
			classification_digest, connections_digest, created_at
		FROM runs ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Region, &r.Class, &r.Neurons, &r.Connections,
			&r.MapPath, &r.MapDigest, &r.ClassificationDigest, &r.ConnectionsDigest,
			&r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		runs = append(runs, r)
	}

	return runs, rows.Err()
}
