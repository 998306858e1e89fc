package corrections

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/clinnote-engine/internal/domain"
)

// PostgresStore implements domain.CorrectionStore on PostgreSQL for
// deployments where multiple workers share one correction set.
type PostgresStore struct {
	db *sql.DB
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS corrections (
	id BIGSERIAL PRIMARY KEY,
	run_id TEXT NOT NULL DEFAULT '',
	field_type TEXT NOT NULL,
	original TEXT NOT NULL,
	corrected TEXT NOT NULL,
	notes TEXT DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE(field_type, original)
);

CREATE INDEX IF NOT EXISTS idx_corrections_field_type ON corrections(field_type);
`

// NewPostgresStore connects to Postgres and ensures the schema exists.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// newPostgresStoreFromDB wraps an existing connection; used by tests.
func newPostgresStoreFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Append upserts a correction keyed by field/original pair.
func (s *PostgresStore) Append(ctx context.Context, c *domain.Correction) error {
	now := time.Now().UTC()
	c.UpdatedAt = now
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO corrections (run_id, field_type, original, corrected, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (field_type, original) DO UPDATE SET
			run_id = EXCLUDED.run_id,
			corrected = EXCLUDED.corrected,
			notes = EXCLUDED.notes,
			updated_at = EXCLUDED.updated_at
		RETURNING id
	`, c.RunID, string(c.FieldType), c.Original, c.Corrected, c.Notes, c.CreatedAt, c.UpdatedAt).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert correction: %w", err)
	}

	return nil
}

// ListForField returns the most recent corrections for one field type.
func (s *PostgresStore) ListForField(ctx context.Context, ft domain.FieldType, limit int) ([]*domain.Correction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, field_type, original, corrected, notes, created_at, updated_at
		FROM corrections
		WHERE field_type = $1
		ORDER BY updated_at DESC
		LIMIT $2
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
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM corrections").Scan(&count)
	return count, err
}

// Close closes the underlying connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
