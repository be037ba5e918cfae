// Package store persists cleanup registrations in SQLite. A registration is
// keyed by (volume_name, path); registering the same pair again replaces the
// policy while preserving created_at. The store is the only shared state
// between the scheduler and the control plane, and every operation touches a
// single row.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"storman/internal/algorithms"
)

// Registration is a configured cleanup target.
type Registration struct {
	VolumeName          string            `json:"volume_name"`
	Path                string            `json:"path"`
	Algorithm           string            `json:"algorithm"`
	Params              algorithms.Params `json:"params"`
	Description         string            `json:"description,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
	LastCleaned         *time.Time        `json:"last_cleaned"`
	FilesRemovedLastRun int               `json:"files_removed_last_run"`
}

// Store is a SQLite-backed registration store.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS registrations (
    volume_name TEXT NOT NULL,
    path TEXT NOT NULL,
    algorithm TEXT NOT NULL,
    params_json TEXT NOT NULL,
    description TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    last_cleaned TEXT,
    files_removed_last_run INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (volume_name, path)
)`

// Open opens (creating if needed) the registration database at dbPath.
func Open(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert inserts or replaces the registration for (volumeName, path). On
// replace, algorithm, params and description are overwritten and updated_at
// is bumped; created_at keeps its original value.
func (s *Store) Upsert(ctx context.Context, volumeName, path, algorithm string, params algorithms.Params, description string) error {
	if params == nil {
		params = algorithms.Params{}
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to encode params: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO registrations (
		    volume_name, path, algorithm, params_json, description, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (volume_name, path)
		DO UPDATE SET
		    algorithm = excluded.algorithm,
		    params_json = excluded.params_json,
		    description = excluded.description,
		    updated_at = excluded.updated_at`,
		volumeName, path, algorithm, string(paramsJSON), nullable(description), now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert registration %s:%s: %w", volumeName, path, err)
	}
	return nil
}

// Delete removes the registration for (volumeName, path) and returns how many
// rows were removed (0 or 1).
func (s *Store) Delete(ctx context.Context, volumeName, path string) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM registrations WHERE volume_name = ? AND path = ?`,
		volumeName, path)
	if err != nil {
		return 0, fmt.Errorf("failed to delete registration %s:%s: %w", volumeName, path, err)
	}
	return result.RowsAffected()
}

// List returns every registration ordered by volume name, then path.
func (s *Store) List(ctx context.Context) ([]Registration, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT volume_name, path, algorithm, params_json, description,
		       created_at, updated_at, last_cleaned, files_removed_last_run
		FROM registrations
		ORDER BY volume_name, path`)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}
	defer rows.Close()

	var out []Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, reg)
	}
	return out, rows.Err()
}

// ListByVolume returns registrations grouped by volume name.
func (s *Store) ListByVolume(ctx context.Context) (map[string][]Registration, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	grouped := make(map[string][]Registration)
	for _, reg := range all {
		grouped[reg.VolumeName] = append(grouped[reg.VolumeName], reg)
	}
	return grouped, nil
}

// MarkRunResult records the outcome of a scheduler run on the registration.
// A registration deleted since the tick snapshot is a no-op, not an error.
func (s *Store) MarkRunResult(ctx context.Context, volumeName, path string, filesRemoved int) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
		UPDATE registrations
		SET last_cleaned = ?, files_removed_last_run = ?, updated_at = ?
		WHERE volume_name = ? AND path = ?`,
		now, filesRemoved, now, volumeName, path)
	if err != nil {
		return fmt.Errorf("failed to mark run result for %s:%s: %w", volumeName, path, err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func scanRegistration(rows *sql.Rows) (Registration, error) {
	var (
		reg         Registration
		paramsJSON  string
		description sql.NullString
		createdAt   string
		updatedAt   string
		lastCleaned sql.NullString
	)
	if err := rows.Scan(&reg.VolumeName, &reg.Path, &reg.Algorithm, &paramsJSON,
		&description, &createdAt, &updatedAt, &lastCleaned, &reg.FilesRemovedLastRun); err != nil {
		return Registration{}, fmt.Errorf("failed to scan registration: %w", err)
	}

	reg.Params = algorithms.Params{}
	if paramsJSON != "" {
		if err := json.Unmarshal([]byte(paramsJSON), &reg.Params); err != nil {
			return Registration{}, fmt.Errorf("failed to decode params for %s:%s: %w", reg.VolumeName, reg.Path, err)
		}
	}
	reg.Description = description.String

	var err error
	if reg.CreatedAt, err = parseStoredTime(createdAt); err != nil {
		return Registration{}, err
	}
	if reg.UpdatedAt, err = parseStoredTime(updatedAt); err != nil {
		return Registration{}, err
	}
	if lastCleaned.Valid {
		cleaned, err := parseStoredTime(lastCleaned.String)
		if err != nil {
			return Registration{}, err
		}
		reg.LastCleaned = &cleaned
	}
	return reg, nil
}

func parseStoredTime(value string) (time.Time, error) {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed stored timestamp %q: %w", value, err)
	}
	return parsed, nil
}
