// Package history records the outcome of every processed upload in
// SQLite. It is write-mostly: the server never exposes it over the
// network, the history CLI command reads it locally.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// History manages upload history in SQLite.
type History struct {
	db *sql.DB
}

// New opens (or creates) the history database at dbPath.
func New(dbPath string) (*History, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite is a single-writer store.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	h := &History{db: db}
	if err := h.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return h, nil
}

// Close closes the database connection.
func (h *History) Close() error {
	return h.db.Close()
}

func (h *History) initSchema() error {
	_, err := h.db.Exec(`
		CREATE TABLE IF NOT EXISTS uploads (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			archive TEXT NOT NULL,
			release_dir TEXT NOT NULL,
			size_bytes INTEGER NOT NULL,
			status TEXT NOT NULL,
			started_at TEXT NOT NULL,
			duration_seconds REAL,
			error_message TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	_, err = h.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_uploads_started
		ON uploads(started_at DESC)
	`)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// RecordUpload inserts one upload outcome and returns its row ID. A zero
// StartedAt is filled with the current time.
func (h *History) RecordUpload(ctx context.Context, rec *UploadRecord) (int64, error) {
	startedAt := rec.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}

	result, err := h.db.ExecContext(ctx, `
		INSERT INTO uploads
		(archive, release_dir, size_bytes, status, started_at, duration_seconds, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		rec.Archive,
		rec.Release,
		rec.SizeBytes,
		rec.Status,
		startedAt.UTC().Format(time.RFC3339),
		rec.DurationSeconds,
		rec.ErrorMessage,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert upload record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	return id, nil
}

// LatestUpload returns the most recent upload, or nil if there is none.
func (h *History) LatestUpload(ctx context.Context) (*UploadRecord, error) {
	row := h.db.QueryRowContext(ctx, `
		SELECT id, archive, release_dir, size_bytes, status, started_at,
		       duration_seconds, error_message
		FROM uploads
		ORDER BY id DESC
		LIMIT 1
	`)

	rec, err := scanUploadRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest upload: %w", err)
	}

	return rec, nil
}

// RecentUploads returns up to limit uploads, newest first.
func (h *History) RecentUploads(ctx context.Context, limit int) ([]UploadRecord, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT id, archive, release_dir, size_bytes, status, started_at,
		       duration_seconds, error_message
		FROM uploads
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query upload history: %w", err)
	}
	defer rows.Close()

	var records []UploadRecord
	for rows.Next() {
		rec, err := scanUploadRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan upload record: %w", err)
		}
		records = append(records, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return records, nil
}

// scanner is an interface that both *sql.Row and *sql.Rows implement.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanUploadRecord(s scanner) (*UploadRecord, error) {
	var rec UploadRecord
	var startedAtStr string

	err := s.Scan(
		&rec.ID,
		&rec.Archive,
		&rec.Release,
		&rec.SizeBytes,
		&rec.Status,
		&startedAtStr,
		&rec.DurationSeconds,
		&rec.ErrorMessage,
	)
	if err != nil {
		return nil, err
	}

	startedAt, err := time.Parse(time.RFC3339, startedAtStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse started_at timestamp: %w", err)
	}
	rec.StartedAt = startedAt

	return &rec, nil
}
