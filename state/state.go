// Package state keeps ingestion bookkeeping in SQLite: per-source fetch
// outcomes and the police update anchor. The corpus files themselves stay
// plain JSON; this store only holds metadata about runs.
package state

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ErrSourceNotFound is returned when a source has no recorded state.
var ErrSourceNotFound = errors.New("source not found")

// anchorKey is where the police update anchor lives in the anchors table.
const anchorKey = "police_last_fetched"

// Store manages ingestion state using SQLite.
type Store struct {
	db *sql.DB
}

// SourceState is the recorded outcome history for one source.
type SourceState struct {
	SourceID      uuid.UUID  `json:"source_id"`
	Name          string     `json:"name"`
	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
	LastSuccessAt *time.Time `json:"last_success_at,omitempty"`
	LastError     *string    `json:"last_error,omitempty"`
	ErrorCount    int        `json:"error_count"`
	Fetched       int        `json:"fetched"`
	Added         int        `json:"added"`
	Skipped       int        `json:"skipped"`
}

// Open opens (and if needed creates) the state database at the given path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS source_state (
		source_id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		last_run_at TEXT,
		last_success_at TEXT,
		last_error TEXT,
		error_count INTEGER NOT NULL DEFAULT 0,
		fetched INTEGER NOT NULL DEFAULT 0,
		added INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS anchors (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordSuccess records a completed run for a source, resetting its error
// streak.
func (s *Store) RecordSuccess(name string, fetched, added, skipped int) error {
	now := time.Now()
	query := `
		INSERT INTO source_state (
			source_id, name, last_run_at, last_success_at,
			last_error, error_count, fetched, added, skipped
		) VALUES (?, ?, ?, ?, NULL, 0, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			last_run_at = excluded.last_run_at,
			last_success_at = excluded.last_success_at,
			last_error = NULL,
			error_count = 0,
			fetched = excluded.fetched,
			added = excluded.added,
			skipped = excluded.skipped
	`
	_, err := s.db.Exec(query,
		uuid.New().String(), name,
		formatTime(&now), formatTime(&now),
		fetched, added, skipped,
	)
	if err != nil {
		return fmt.Errorf("failed to record success for %s: %w", name, err)
	}
	return nil
}

// RecordFailure records a failed run for a source, incrementing its
// consecutive error count.
func (s *Store) RecordFailure(name string, runErr error) error {
	now := time.Now()
	msg := runErr.Error()
	query := `
		INSERT INTO source_state (
			source_id, name, last_run_at, last_error, error_count
		) VALUES (?, ?, ?, ?, 1)
		ON CONFLICT(name) DO UPDATE SET
			last_run_at = excluded.last_run_at,
			last_error = excluded.last_error,
			error_count = source_state.error_count + 1
	`
	_, err := s.db.Exec(query, uuid.New().String(), name, formatTime(&now), msg)
	if err != nil {
		return fmt.Errorf("failed to record failure for %s: %w", name, err)
	}
	return nil
}

// GetSource retrieves the recorded state for one source by name.
func (s *Store) GetSource(name string) (*SourceState, error) {
	row := s.db.QueryRow(`
		SELECT source_id, name, last_run_at, last_success_at,
		       last_error, error_count, fetched, added, skipped
		FROM source_state WHERE name = ?
	`, name)

	st, err := scanSourceState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSourceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query source state: %w", err)
	}
	return st, nil
}

// ListSources lists recorded source states, most recently run first.
func (s *Store) ListSources() ([]SourceState, error) {
	rows, err := s.db.Query(`
		SELECT source_id, name, last_run_at, last_success_at,
		       last_error, error_count, fetched, added, skipped
		FROM source_state
		ORDER BY last_run_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query source states: %w", err)
	}
	defer rows.Close()

	var states []SourceState
	for rows.Next() {
		st, err := scanSourceState(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source state: %w", err)
		}
		states = append(states, *st)
	}
	return states, rows.Err()
}

// UpdateAnchor persists the date through which police news has been
// successfully fetched. Update mode resumes from this date instead of
// inferring it from corpus list position.
func (s *Store) UpdateAnchor(t time.Time) error {
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO anchors (key, value) VALUES (?, ?)",
		anchorKey, t.UTC().Format("2006-01-02"),
	)
	if err != nil {
		return fmt.Errorf("failed to update anchor: %w", err)
	}
	return nil
}

// Anchor returns the persisted police update anchor, if any.
func (s *Store) Anchor() (time.Time, bool, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM anchors WHERE key = ?", anchorKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query anchor: %w", err)
	}

	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to parse anchor %q: %w", value, err)
	}
	return t, true, nil
}

// scanner covers both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSourceState(row scanner) (*SourceState, error) {
	var idStr, name string
	var lastRunAt, lastSuccessAt, lastError sql.NullString
	var errorCount, fetched, added, skipped int

	err := row.Scan(
		&idStr, &name, &lastRunAt, &lastSuccessAt,
		&lastError, &errorCount, &fetched, &added, &skipped,
	)
	if err != nil {
		return nil, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse source ID: %w", err)
	}

	st := &SourceState{
		SourceID:   id,
		Name:       name,
		ErrorCount: errorCount,
		Fetched:    fetched,
		Added:      added,
		Skipped:    skipped,
	}
	if lastRunAt.Valid {
		t := parseTime(lastRunAt.String)
		st.LastRunAt = &t
	}
	if lastSuccessAt.Valid {
		t := parseTime(lastSuccessAt.String)
		st.LastSuccessAt = &t
	}
	if lastError.Valid {
		st.LastError = &lastError.String
	}
	return st, nil
}

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	// Strip monotonic clock for consistent storage and comparisons
	return t.Truncate(0).Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t.Truncate(0)
}
