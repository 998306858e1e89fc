package corrections

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/clinnote-engine/internal/domain"
)

// SQLiteStore implements domain.CorrectionStore on a local SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates the store, the database file and the schema if
// they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode so concurrent pipeline reads don't block the append path.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanCorrection scans a row into a Correction.
func scanCorrection(s scanner) (*domain.Correction, error) {
	c := &domain.Correction{}
	var fieldType string

	err := s.Scan(
		&c.ID, &c.RunID, &fieldType, &c.Original, &c.Corrected,
		&c.Notes, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.FieldType = domain.FieldType(fieldType)
	return c, nil
}

// createSchema creates the corrections table and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS corrections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL DEFAULT '',
		field_type TEXT NOT NULL,
		original TEXT NOT NULL,
		corrected TEXT NOT NULL,
		notes TEXT DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(field_type, original)
	);

	CREATE INDEX IF NOT EXISTS idx_corrections_field_type ON corrections(field_type);
	CREATE INDEX IF NOT EXISTS idx_corrections_created_at ON corrections(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// Append stores a correction, updating the existing row when the same
// field/original pair was corrected before.
func (s *SQLiteStore) Append(ctx context.Context, c *domain.Correction) error {
	now := time.Now().UTC()

	var existingID int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM corrections WHERE field_type = ? AND original = ?",
		string(c.FieldType), c.Original,
	).Scan(&existingID)

	if err == nil {
		c.ID = existingID
		c.UpdatedAt = now
		_, err = s.db.ExecContext(ctx, `
			UPDATE corrections SET
				run_id = ?,
				corrected = ?,
				notes = ?,
				updated_at = ?
			WHERE id = ?
		`, c.RunID, c.Corrected, c.Notes, now, existingID)
		if err != nil {
			return fmt.Errorf("failed to update correction: %w", err)
		}
		return nil
	}

	if err != sql.ErrNoRows {
		return fmt.Errorf("failed to check existing correction: %w", err)
	}

	c.CreatedAt = now
	c.UpdatedAt = now

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO corrections (
			run_id, field_type, original, corrected, notes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.RunID, string(c.FieldType), c.Original, c.Corrected, c.Notes, now, now)
	if err != nil {
		return fmt.Errorf("failed to insert correction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get insert ID: %w", err)
	}
	c.ID = id

	return nil
}

// ListForField returns the most recent corrections for one field type.
func (s *SQLiteStore) ListForField(ctx context.Context, ft domain.FieldType, limit int) ([]*domain.Correction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, field_type, original, corrected, notes, created_at, updated_at
		FROM corrections
		WHERE field_type = ?
		ORDER BY updated_at DESC
		LIMIT ?
	`, string(ft), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query corrections: %w", err)
	}
	defer rows.Close()

	var result []*domain.Correction
	for rows.Next() {
		c, err := scanCorrection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan correction: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// Count returns the total number of stored corrections.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM corrections").Scan(&count)
	return count, err
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
