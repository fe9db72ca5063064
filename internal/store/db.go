package store

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Local run index. The status document in the object store is the
// source of truth; this sqlite mirror exists for operational queries
// (run history, logs, recorded artifacts) without round-trips to the
// store. Every helper is a no-op until InitDB has been called, so the
// index is strictly optional bookkeeping.

var db *sql.DB

// InitDB opens (or creates) the run index database.
func InitDB(dbPath string) error {
	var err error
	db, err = sql.Open("sqlite3", dbPath)
	if err != nil {
		return err
	}

	runTable := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		status TEXT,
		created_at DATETIME,
		updated_at DATETIME
	);
	`
	errorTable := `
	CREATE TABLE IF NOT EXISTS run_errors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT,
		error_message TEXT,
		created_at DATETIME
	);
	`
	artifactTable := `
	CREATE TABLE IF NOT EXISTS run_artifacts (
		run_id TEXT,
		role TEXT,
		storage_key TEXT,
		created_at DATETIME,
		PRIMARY KEY (run_id, role)
	);
	`
	logTable := `
	CREATE TABLE IF NOT EXISTS run_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT,
		stage TEXT,
		level TEXT,
		message TEXT,
		details TEXT,
		created_at DATETIME
	);
	`

	for _, ddl := range []string{runTable, errorTable, artifactTable, logTable} {
		if _, err := db.Exec(ddl); err != nil {
			return err
		}
	}
	return nil
}

// CloseDB closes the index; mainly for tests.
func CloseDB() error {
	if db == nil {
		return nil
	}
	err := db.Close()
	db = nil
	return err
}

// SaveRun registers a run, ignoring duplicates so that an operation
// extending an existing run does not error.
func SaveRun(runID string) error {
	if db == nil {
		return nil
	}
	now := time.Now().UTC()
	_, err := db.Exec(`INSERT OR IGNORE INTO runs (id, status, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		runID, "pending", now, now)
	return err
}

// UpdateRunStatus updates a run's status string.
func UpdateRunStatus(runID string, status string) error {
	if db == nil {
		return nil
	}
	now := time.Now().UTC()
	_, err := db.Exec(`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`, status, now, runID)
	return err
}

// SaveRunError records an error for a run.
func SaveRunError(runID string, runErr error) error {
	if db == nil || runErr == nil {
		return nil
	}
	now := time.Now().UTC()
	_, err := db.Exec(`INSERT INTO run_errors (run_id, error_message, created_at) VALUES (?, ?, ?)`,
		runID, runErr.Error(), now)
	return err
}

// SaveRunArtifact records a role→key mapping; same role overwrites.
func SaveRunArtifact(runID, role, storageKey string) error {
	if db == nil {
		return nil
	}
	now := time.Now().UTC()
	_, err := db.Exec(`INSERT OR REPLACE INTO run_artifacts (run_id, role, storage_key, created_at) VALUES (?, ?, ?, ?)`,
		runID, role, storageKey, now)
	return err
}

// SaveRunLog appends a structured log entry for a pipeline stage.
func SaveRunLog(runID, stage, level, message string, details map[string]interface{}) error {
	if db == nil {
		return nil
	}
	var detailsJSON []byte
	if details != nil {
		detailsJSON, _ = json.Marshal(details)
	}
	now := time.Now().UTC()
	_, err := db.Exec(`INSERT INTO run_logs (run_id, stage, level, message, details, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, stage, level, message, string(detailsJSON), now)
	return err
}

// ListRuns returns all runs with basic info, newest first.
func ListRuns() ([]map[string]interface{}, error) {
	if db == nil {
		return nil, nil
	}
	rows, err := db.Query(`SELECT id, status, created_at, updated_at FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []map[string]interface{}
	for rows.Next() {
		var id, status string
		var createdAt, updatedAt time.Time
		if err := rows.Scan(&id, &status, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, map[string]interface{}{
			"id":        id,
			"status":    status,
			"createdAt": createdAt,
			"updatedAt": updatedAt,
		})
	}
	return runs, rows.Err()
}

// GetRunArtifacts returns the recorded role→key mapping for a run.
func GetRunArtifacts(runID string) (map[string]string, error) {
	if db == nil {
		return nil, nil
	}
	rows, err := db.Query(`SELECT role, storage_key FROM run_artifacts WHERE run_id = ?`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	artifacts := make(map[string]string)
	for rows.Next() {
		var role, key string
		if err := rows.Scan(&role, &key); err != nil {
			return nil, err
		}
		artifacts[role] = key
	}
	return artifacts, rows.Err()
}
