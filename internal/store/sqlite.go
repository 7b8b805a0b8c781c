package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/amishk599/workmatch/internal/model"
)

// fetchChunkSize bounds the number of placeholders in one IN (...) query.
const fetchChunkSize = 500

const createListings = `CREATE TABLE IF NOT EXISTS listings (
	id                  TEXT PRIMARY KEY,
	title               TEXT NOT NULL DEFAULT '',
	employer            TEXT NOT NULL DEFAULT '',
	location_raw        TEXT NOT NULL DEFAULT '',
	location_normalized TEXT NOT NULL DEFAULT '',
	salary_min          REAL,
	salary_max          REAL,
	salary_currency     TEXT NOT NULL DEFAULT '',
	salary_estimated    INTEGER NOT NULL DEFAULT 0,
	contract_type       TEXT NOT NULL DEFAULT '',
	contract_time       TEXT NOT NULL DEFAULT '',
	category            TEXT NOT NULL DEFAULT '',
	description         TEXT NOT NULL DEFAULT '',
	snippet             TEXT NOT NULL DEFAULT '',
	url                 TEXT NOT NULL DEFAULT '',
	country             TEXT NOT NULL DEFAULT '',
	posted_at           TEXT,
	ingested_at         TEXT NOT NULL,
	first_ingested_at   TEXT NOT NULL
)`

// upsertListing merges on conflict: empty strings and NULLs in the new row keep
// the stored value. first_ingested_at is only written on insert.
const upsertListing = `INSERT INTO listings (
	id, title, employer, location_raw, location_normalized,
	salary_min, salary_max, salary_currency, salary_estimated,
	contract_type, contract_time, category, description, snippet, url, country,
	posted_at, ingested_at, first_ingested_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	title               = COALESCE(NULLIF(excluded.title, ''), listings.title),
	employer            = COALESCE(NULLIF(excluded.employer, ''), listings.employer),
	location_raw        = COALESCE(NULLIF(excluded.location_raw, ''), listings.location_raw),
	location_normalized = COALESCE(NULLIF(excluded.location_normalized, ''), listings.location_normalized),
	salary_estimated    = CASE WHEN excluded.salary_min IS NULL AND excluded.salary_max IS NULL
	                           THEN listings.salary_estimated ELSE excluded.salary_estimated END,
	salary_min          = COALESCE(excluded.salary_min, listings.salary_min),
	salary_max          = COALESCE(excluded.salary_max, listings.salary_max),
	salary_currency     = COALESCE(NULLIF(excluded.salary_currency, ''), listings.salary_currency),
	contract_type       = COALESCE(NULLIF(excluded.contract_type, ''), listings.contract_type),
	contract_time       = COALESCE(NULLIF(excluded.contract_time, ''), listings.contract_time),
	category            = COALESCE(NULLIF(excluded.category, ''), listings.category),
	description         = COALESCE(NULLIF(excluded.description, ''), listings.description),
	snippet             = COALESCE(NULLIF(excluded.snippet, ''), listings.snippet),
	url                 = COALESCE(NULLIF(excluded.url, ''), listings.url),
	country             = COALESCE(NULLIF(excluded.country, ''), listings.country),
	posted_at           = COALESCE(excluded.posted_at, listings.posted_at),
	ingested_at         = excluded.ingested_at`

const selectListing = `SELECT
	id, title, employer, location_raw, location_normalized,
	salary_min, salary_max, salary_currency, salary_estimated,
	contract_type, contract_time, category, description, snippet, url, country,
	posted_at, ingested_at
FROM listings`

// SQLiteStore persists ListingRecords in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures the
// listings table exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// One writer at a time; the busy timeout covers other processes.
	db.SetMaxOpenConns(1)

	// Verify the connection is alive.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	if _, err := db.Exec(createListings); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating listings table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// DB exposes the connection pool so the SQLite vector index can share it.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// UpsertBatch writes all storable records in one transaction. Records without
// an id or description are skipped and counted; repeated ids are coalesced
// before the write.
func (s *SQLiteStore) UpsertBatch(ctx context.Context, records []model.ListingRecord) (model.UpsertStats, error) {
	batch, stats := prepareBatch(records)
	if len(batch) == 0 {
		return stats, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.UpsertStats{}, fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertListing)
	if err != nil {
		return model.UpsertStats{}, fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, r := range batch {
		ingested := r.IngestedAt
		if ingested.IsZero() {
			ingested = now
		}
		_, err := stmt.ExecContext(ctx,
			string(r.ID), r.Title, r.Employer, r.LocationRaw, r.LocationNormalized,
			nullFloat(r.Salary.Min), nullFloat(r.Salary.Max), r.Salary.Currency, boolInt(r.Salary.Estimated),
			r.ContractType, r.ContractTime, r.Category, r.Description, r.Snippet, r.URL, r.Country,
			nullTime(r.PostedAt), formatTime(ingested), formatTime(ingested),
		)
		if err != nil {
			return model.UpsertStats{}, fmt.Errorf("upserting listing %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return model.UpsertStats{}, fmt.Errorf("commit upsert: %w", err)
	}
	return stats, nil
}

// FetchByIDs returns stored records in the order of ids. Unknown ids are
// omitted, not reported.
func (s *SQLiteStore) FetchByIDs(ctx context.Context, ids []model.CanonicalID) ([]model.ListingRecord, error) {
	ids = uniqueIDs(ids)
	found := make(map[model.CanonicalID]model.ListingRecord, len(ids))

	for start := 0; start < len(ids); start += fetchChunkSize {
		end := min(start+fetchChunkSize, len(ids))
		chunk := ids[start:end]

		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = string(id)
		}
		query := selectListing + " WHERE id IN (" + placeholders(len(chunk)) + ")"

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("fetching listings: %w", err)
		}
		for rows.Next() {
			r, err := scanListing(rows)
			if err != nil {
				rows.Close()
				return nil, err
			}
			found[r.ID] = r
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("iterating listings: %w", err)
		}
	}

	out := make([]model.ListingRecord, 0, len(found))
	for _, id := range ids {
		if r, ok := found[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// Count returns the number of stored listings.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM listings").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting listings: %w", err)
	}
	return count, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanListing(rows *sql.Rows) (model.ListingRecord, error) {
	var (
		r                    model.ListingRecord
		id                   string
		salaryMin, salaryMax sql.NullFloat64
		estimated            int
		postedAt             sql.NullString
		ingestedAt           string
	)
	err := rows.Scan(
		&id, &r.Title, &r.Employer, &r.LocationRaw, &r.LocationNormalized,
		&salaryMin, &salaryMax, &r.Salary.Currency, &estimated,
		&r.ContractType, &r.ContractTime, &r.Category, &r.Description, &r.Snippet, &r.URL, &r.Country,
		&postedAt, &ingestedAt,
	)
	if err != nil {
		return model.ListingRecord{}, fmt.Errorf("scanning listing: %w", err)
	}

	r.ID = model.CanonicalID(id)
	if salaryMin.Valid {
		v := salaryMin.Float64
		r.Salary.Min = &v
	}
	if salaryMax.Valid {
		v := salaryMax.Float64
		r.Salary.Max = &v
	}
	r.Salary.Estimated = estimated != 0
	if postedAt.Valid {
		if t, err := time.Parse(time.RFC3339Nano, postedAt.String); err == nil {
			r.PostedAt = &t
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, ingestedAt); err == nil {
		r.IngestedAt = t
	}
	return r, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
