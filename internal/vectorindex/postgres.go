package vectorindex

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/amishk599/workmatch/internal/model"
)

// The embedding column has no fixed dimension so a model change does not
// need a migration; queries only compare vectors of equal length.
const createPgVectors = `CREATE TABLE IF NOT EXISTS listing_vectors (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT '',
	embedding  vector NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const upsertPgVector = `INSERT INTO listing_vectors (id, title, embedding, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (id) DO UPDATE SET
	title      = EXCLUDED.title,
	embedding  = EXCLUDED.embedding,
	updated_at = EXCLUDED.updated_at`

const queryPgVectors = `SELECT id, 1 - (embedding <=> $1) AS score
FROM listing_vectors
WHERE vector_dims(embedding) = $2
ORDER BY embedding <=> $1, id
LIMIT $3`

// Postgres stores vectors in a pgvector column and ranks them by cosine
// distance inside the database.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgres connects to dsn, enables the vector extension and creates the
// listing_vectors table if needed.
func NewPostgres(ctx context.Context, dsn string, logger *slog.Logger) (*Postgres, error) {
	// The extension must exist before the pool registers the vector type.
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	_, err = conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	conn.Close(ctx)
	if err != nil {
		return nil, fmt.Errorf("enabling vector extension: %w", err)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening postgres pool: %w", err)
	}
	if _, err := pool.Exec(ctx, createPgVectors); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating listing_vectors table: %w", err)
	}
	return &Postgres{pool: pool, logger: logger}, nil
}

// Upsert replaces entries by id in one batch.
func (p *Postgres) Upsert(ctx context.Context, entries []model.VectorEntry) error {
	batch := &pgx.Batch{}
	for _, e := range entries {
		if e.ID == "" || len(e.Vector) == 0 {
			continue
		}
		batch.Queue(upsertPgVector, string(e.ID), e.Title, pgvector.NewVector(e.Vector))
	}
	if batch.Len() == 0 {
		return nil
	}

	if err := p.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("postgres vector upsert: %w", err)
	}
	return nil
}

// Query returns the k nearest vectors of the same dimension. Failures are
// logged and produce no hits.
func (p *Postgres) Query(ctx context.Context, vector []float32, k int) []model.ScoredID {
	hits := []model.ScoredID{}
	if len(vector) == 0 || k <= 0 {
		return hits
	}

	rows, err := p.pool.Query(ctx, queryPgVectors, pgvector.NewVector(vector), len(vector), k)
	if err != nil {
		p.logger.Warn("vector query failed", "backend", "postgres", "error", err)
		return hits
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id    string
			score float64
		)
		if err := rows.Scan(&id, &score); err != nil {
			p.logger.Warn("vector query failed", "backend", "postgres", "error", err)
			return []model.ScoredID{}
		}
		hits = append(hits, model.ScoredID{ID: model.CanonicalID(id), Score: score})
	}
	if err := rows.Err(); err != nil {
		p.logger.Warn("vector query failed", "backend", "postgres", "error", err)
		return []model.ScoredID{}
	}
	return hits
}

// Count returns the number of stored vectors.
func (p *Postgres) Count(ctx context.Context) (int, error) {
	var n int
	if err := p.pool.QueryRow(ctx, "SELECT COUNT(*) FROM listing_vectors").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting vectors: %w", err)
	}
	return n, nil
}

// Close releases the pool.
func (p *Postgres) Close() {
	p.pool.Close()
}
