package vectorindex

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/amishk599/workmatch/internal/model"
)

const createVectors = `CREATE TABLE IF NOT EXISTS listing_vectors (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT '',
	dim        INTEGER NOT NULL,
	vector     BLOB NOT NULL,
	updated_at TEXT NOT NULL
)`

const upsertVector = `INSERT INTO listing_vectors (id, title, dim, vector, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	title      = excluded.title,
	dim        = excluded.dim,
	vector     = excluded.vector,
	updated_at = excluded.updated_at`

// SQLite keeps vectors as float32 blobs next to the listings table and ranks
// them with a Go-side cosine scan. Good for tens of thousands of listings.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLite creates the vector table on db if needed. db is usually the
// metadata store's handle.
func NewSQLite(db *sql.DB, logger *slog.Logger) (*SQLite, error) {
	if _, err := db.Exec(createVectors); err != nil {
		return nil, fmt.Errorf("creating listing_vectors table: %w", err)
	}
	return &SQLite{db: db, logger: logger}, nil
}

// Upsert replaces entries by id in a single transaction.
func (s *SQLite) Upsert(ctx context.Context, entries []model.VectorEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin vector upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertVector)
	if err != nil {
		return fmt.Errorf("prepare vector upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, e := range entries {
		if e.ID == "" || len(e.Vector) == 0 {
			continue
		}
		if _, err := stmt.ExecContext(ctx, string(e.ID), e.Title, len(e.Vector), encodeVector(e.Vector), now); err != nil {
			return fmt.Errorf("upserting vector %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit vector upsert: %w", err)
	}
	return nil
}

// Query scores every vector of matching dimension. Failures are logged and
// produce no hits.
func (s *SQLite) Query(ctx context.Context, vector []float32, k int) []model.ScoredID {
	if k <= 0 || len(vector) == 0 {
		return []model.ScoredID{}
	}
	hits, err := s.scan(ctx, vector)
	if err != nil {
		s.logger.Warn("vector query failed", "error", err)
		return []model.ScoredID{}
	}
	return topK(hits, k)
}

func (s *SQLite) scan(ctx context.Context, vector []float32) ([]model.ScoredID, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, vector FROM listing_vectors WHERE dim = ?", len(vector))
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var hits []model.ScoredID
	for rows.Next() {
		var (
			id   string
			blob []byte
		)
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("scanning vector: %w", err)
		}
		hits = append(hits, model.ScoredID{
			ID:    model.CanonicalID(id),
			Score: cosine(vector, decodeVector(blob)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vectors: %w", err)
	}
	return hits, nil
}

// Count reports the number of stored vectors.
func (s *SQLite) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM listing_vectors").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting vectors: %w", err)
	}
	return count, nil
}
