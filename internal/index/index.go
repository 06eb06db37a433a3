// Package index records runs and their artifacts in a SQLite database so
// that extracted tables can be looked up across runs.
package index

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hyperifyio/tablefunnel/internal/artifact"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    entity TEXT NOT NULL,
    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP,
    documents INTEGER NOT NULL DEFAULT 0,
    timed_out INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS artifacts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    document TEXT NOT NULL,
    source_url TEXT NOT NULL,
    page INTEGER NOT NULL,
    tbl INTEGER NOT NULL,
    path TEXT NOT NULL,
    format TEXT NOT NULL,
    n_rows INTEGER NOT NULL,
    n_cols INTEGER NOT NULL,
    padded INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (run_id, document, page, tbl),
    FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_artifacts_run ON artifacts(run_id);
`

// ErrDuplicate is returned when a run already indexed an artifact for the
// same document, page and table.
var ErrDuplicate = errors.New("artifact already indexed")

// Run is one indexed run.
type Run struct {
	ID         string
	Entity     string
	StartedAt  time.Time
	FinishedAt time.Time
	Documents  int
	TimedOut   bool
}

// Entry is one indexed artifact.
type Entry struct {
	RunID     string
	SourceURL string
	artifact.Artifact
}

// DB wraps the SQLite connection.
type DB struct {
	conn *sql.DB
}

// Open creates or opens the index at path and applies the schema.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create index directory: %w", err)
		}
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// StartRun inserts a run row.
func (db *DB) StartRun(r Run) error {
	_, err := db.conn.Exec(`INSERT INTO runs (id, entity, started_at) VALUES (?, ?, ?)`,
		r.ID, r.Entity, r.StartedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun records the outcome of a run.
func (db *DB) FinishRun(id string, finished time.Time, documents int, timedOut bool) error {
	res, err := db.conn.Exec(`UPDATE runs SET finished_at = ?, documents = ?, timed_out = ? WHERE id = ?`,
		finished.UTC(), documents, boolInt(timedOut), id)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

// Add indexes one artifact. A second artifact for the same (run, document,
// page, table) yields ErrDuplicate; later runs over the same document index
// their own rows.
func (db *DB) Add(runID, sourceURL string, a artifact.Artifact) error {
	res, err := db.conn.Exec(`INSERT INTO artifacts (run_id, document, source_url, page, tbl, path, format, n_rows, n_cols, padded)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT (run_id, document, page, tbl) DO NOTHING`,
		runID, a.DocumentID, sourceURL, a.Page, a.Table, a.Path, a.Format, a.Rows, a.Cols, boolInt(a.Padded))
	if err != nil {
		return fmt.Errorf("insert artifact: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s p%d t%d: %w", a.DocumentID, a.Page, a.Table, ErrDuplicate)
	}
	return nil
}

// Artifacts lists the artifacts of a run ordered by document, page and table.
func (db *DB) Artifacts(runID string) ([]Entry, error) {
	rows, err := db.conn.Query(`SELECT run_id, source_url, document, page, tbl, path, format, n_rows, n_cols, padded
		FROM artifacts WHERE run_id = ? ORDER BY document, page, tbl`, runID)
	if err != nil {
		return nil, fmt.Errorf("query artifacts: %w", err)
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		var padded int
		if err := rows.Scan(&e.RunID, &e.SourceURL, &e.DocumentID, &e.Page, &e.Table, &e.Path, &e.Format, &e.Rows, &e.Cols, &padded); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		e.Padded = padded != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetRun loads a run by id.
func (db *DB) GetRun(id string) (Run, error) {
	var r Run
	var finished sql.NullTime
	var timedOut int
	err := db.conn.QueryRow(`SELECT id, entity, started_at, finished_at, documents, timed_out FROM runs WHERE id = ?`, id).
		Scan(&r.ID, &r.Entity, &r.StartedAt, &finished, &r.Documents, &timedOut)
	if err != nil {
		return Run{}, fmt.Errorf("get run: %w", err)
	}
	if finished.Valid {
		r.FinishedAt = finished.Time
	}
	r.TimedOut = timedOut != 0
	return r, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
