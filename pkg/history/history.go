// Package history records which schools were opened in the panel so the
// browser can offer a recent list and resume where the user left off.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Visit is one school as it appears in the recent list.
type Visit struct {
	SchoolID  string
	Name      string
	LastVisit time.Time
	Count     int
}

// Store wraps the visit database.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// DefaultPath is $XDG_STATE_HOME/pv/history.db.
func DefaultPath() string {
	dir := os.Getenv("XDG_STATE_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".", "pv-history.db")
		}
		dir = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(dir, "pv", "history.db")
}

// Open creates or opens the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("opening history: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging history: %w", err)
	}
	return newStore(db, path)
}

// OpenMemory creates an in-memory history (useful for testing).
func OpenMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory history: %w", err)
	}
	// Every pooled connection would otherwise get its own empty database.
	db.SetMaxOpenConns(1)
	return newStore(db, ":memory:")
}

func newStore(db *sql.DB, path string) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return &Store{db: db, path: path, now: time.Now}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS visits (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    school_id TEXT NOT NULL,
    name TEXT NOT NULL DEFAULT '',
    visited_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_visits_school ON visits(school_id);
CREATE INDEX IF NOT EXISTS idx_visits_time ON visits(visited_at);
`

// Record appends a visit of schoolID.
func (s *Store) Record(ctx context.Context, schoolID, name string) error {
	if schoolID == "" {
		return errors.New("record visit: empty school id")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO visits (school_id, name, visited_at) VALUES (?, ?, ?)`,
		schoolID, name, s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("record visit %s: %w", schoolID, err)
	}
	return nil
}

// Recent returns up to limit distinct schools, most recently visited first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Visit, error) {
	if limit <= 0 {
		limit = 10
	}
	// SQLite takes bare columns from the row that produced MAX().
	rows, err := s.db.QueryContext(ctx, `
		SELECT school_id, name, MAX(visited_at) AS last_visit, COUNT(*)
		FROM visits
		GROUP BY school_id
		ORDER BY last_visit DESC, school_id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent visits: %w", err)
	}
	defer rows.Close()

	var out []Visit
	for rows.Next() {
		var v Visit
		var ms int64
		if err := rows.Scan(&v.SchoolID, &v.Name, &ms, &v.Count); err != nil {
			return nil, fmt.Errorf("scan visit: %w", err)
		}
		v.LastVisit = time.UnixMilli(ms)
		out = append(out, v)
	}
	return out, rows.Err()
}

// Last returns the most recent visit; ok is false when there is none.
func (s *Store) Last(ctx context.Context) (Visit, bool, error) {
	visits, err := s.Recent(ctx, 1)
	if err != nil || len(visits) == 0 {
		return Visit{}, false, err
	}
	return visits[0], true, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }
