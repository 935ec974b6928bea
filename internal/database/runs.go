package database

import (
	"database/sql"
	"fmt"
)

// Run is one stored scan run. Report holds the full briefing artifact as
// JSON, exactly as written to the output directory.
type Run struct {
	ID            string
	CreatedAt     string
	HoldingsCount int
	Report        []byte
}

// InsertRun stores a completed scan run.
func (db *DB) InsertRun(run Run) error {
	_, err := db.conn.Exec(
		"INSERT INTO runs (id, created_at, holdings_count, report) VALUES (?, ?, ?, ?)",
		run.ID, run.CreatedAt, run.HoldingsCount, string(run.Report),
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", run.ID, err)
	}
	return nil
}

// GetLatestRun returns the most recent run, or sql.ErrNoRows if none exist.
func (db *DB) GetLatestRun() (Run, error) {
	var run Run
	var report string
	err := db.conn.QueryRow(
		"SELECT id, created_at, holdings_count, report FROM runs ORDER BY created_at DESC LIMIT 1",
	).Scan(&run.ID, &run.CreatedAt, &run.HoldingsCount, &report)
	if err != nil {
		return Run{}, err
	}
	run.Report = []byte(report)
	return run, nil
}

// GetRun returns one run by id, or sql.ErrNoRows if it does not exist.
func (db *DB) GetRun(id string) (Run, error) {
	var run Run
	var report string
	err := db.conn.QueryRow(
		"SELECT id, created_at, holdings_count, report FROM runs WHERE id = ?", id,
	).Scan(&run.ID, &run.CreatedAt, &run.HoldingsCount, &report)
	if err != nil {
		return Run{}, err
	}
	run.Report = []byte(report)
	return run, nil
}

// ListRuns returns run metadata for the most recent limit runs, newest first.
// The Report payload is not loaded.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	rows, err := db.conn.Query(
		"SELECT id, created_at, holdings_count FROM runs ORDER BY created_at DESC LIMIT ?", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.CreatedAt, &run.HoldingsCount); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Stats summarizes the run history.
type Stats struct {
	Runs     int
	FirstRun string
	LastRun  string
}

// GetStats returns counts and the time span of stored runs.
func (db *DB) GetStats() (Stats, error) {
	var stats Stats
	var first, last sql.NullString
	err := db.conn.QueryRow(
		"SELECT COUNT(*), MIN(created_at), MAX(created_at) FROM runs",
	).Scan(&stats.Runs, &first, &last)
	if err != nil {
		return Stats{}, fmt.Errorf("reading stats: %w", err)
	}
	stats.FirstRun = first.String
	stats.LastRun = last.String
	return stats, nil
}
