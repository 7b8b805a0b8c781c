// Package ingest persists raw provider listings: identity, metadata upsert,
// then best-effort embedding into the vector index.
package ingest

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/amishk599/workmatch/internal/identity"
	"github.com/amishk599/workmatch/internal/model"
)

// TextEmbedder reports false when text cannot be embedded.
type TextEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, bool)
}

// Stats summarizes one Ingest call.
type Stats struct {
	Received    int // raw listings passed in
	Incomplete  int // skipped for missing title, employer or location
	Duplicates  int // coalesced into an earlier listing with the same id
	Upserted    int // records written to the metadata store
	Skipped     int // rejected by the store (no description)
	Embedded    int // vectors written to the index
	EmbedFailed int // records whose description could not be embedded
	StoreFailed bool
	IndexFailed bool
}

// Config tunes a Pipeline. Zero values pick defaults.
type Config struct {
	Country          string        // fallback when a listing carries none
	StoreTimeout     time.Duration // per store or index write, 0 = none
	EmbedConcurrency int           // parallel embedding calls, default 4
}

// Pipeline writes listings to a MetadataStore and VectorIndex.
type Pipeline struct {
	store    model.MetadataStore
	index    model.VectorIndex
	embedder TextEmbedder
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
}

// NewPipeline creates an ingestion pipeline.
func NewPipeline(store model.MetadataStore, index model.VectorIndex, embedder TextEmbedder, cfg Config, logger *slog.Logger) *Pipeline {
	if cfg.EmbedConcurrency <= 0 {
		cfg.EmbedConcurrency = 4
	}
	return &Pipeline{
		store:    store,
		index:    index,
		embedder: embedder,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Ingest normalizes and identifies every listing, writes all records in one
// batch and indexes the ones whose description embeds. A failure on one
// listing never affects the others, and metadata is written even when no
// vector can be produced.
func (p *Pipeline) Ingest(ctx context.Context, raws []model.ListingRaw) Stats {
	stats := Stats{Received: len(raws)}
	if len(raws) == 0 {
		return stats
	}

	records := p.buildRecords(raws, &stats)
	if len(records) == 0 {
		p.logger.Info("ingest: nothing to store", "received", stats.Received, "incomplete", stats.Incomplete)
		return stats
	}

	upsert, err := p.upsert(ctx, records)
	if err != nil {
		// Vectors for unstored records would point at nothing.
		p.logger.Error("ingest: metadata upsert failed", "count", len(records), "error", err)
		stats.StoreFailed = true
		return stats
	}
	stats.Upserted = upsert.Upserted
	stats.Skipped = upsert.Skipped

	entries := p.embed(ctx, records, &stats)
	if len(entries) > 0 {
		if err := p.upsertVectors(ctx, entries); err != nil {
			p.logger.Error("ingest: vector upsert failed", "count", len(entries), "error", err)
			stats.IndexFailed = true
		} else {
			stats.Embedded = len(entries)
		}
	}

	p.logger.Info("ingest complete",
		"received", stats.Received,
		"incomplete", stats.Incomplete,
		"duplicates", stats.Duplicates,
		"upserted", stats.Upserted,
		"skipped", stats.Skipped,
		"embedded", stats.Embedded,
		"embed_failed", stats.EmbedFailed,
	)
	return stats
}

// buildRecords turns raw listings into records, dropping incomplete ones and
// merging repeats of the same identity into the first occurrence.
func (p *Pipeline) buildRecords(raws []model.ListingRaw, stats *Stats) []model.ListingRecord {
	now := p.now().UTC()
	index := make(map[model.CanonicalID]int, len(raws))
	records := make([]model.ListingRecord, 0, len(raws))

	for _, raw := range raws {
		id, err := identity.Identify(raw.Title, raw.Employer, raw.Location)
		if err != nil {
			stats.Incomplete++
			p.logger.Debug("ingest: skipping listing", "external_id", raw.ExternalID, "error", err)
			continue
		}
		rec := p.newRecord(id, raw, now)
		if i, ok := index[id]; ok {
			records[i] = records[i].Merge(rec)
			stats.Duplicates++
			continue
		}
		index[id] = len(records)
		records = append(records, rec)
	}
	return records
}

// Record builds the record a raw listing would be stored as, without writing
// anything. Returns model.ErrIncompleteIdentity for listings that cannot be
// identified.
func (p *Pipeline) Record(raw model.ListingRaw) (model.ListingRecord, error) {
	id, err := identity.Identify(raw.Title, raw.Employer, raw.Location)
	if err != nil {
		return model.ListingRecord{}, err
	}
	return p.newRecord(id, raw, p.now().UTC()), nil
}

func (p *Pipeline) newRecord(id model.CanonicalID, raw model.ListingRaw, now time.Time) model.ListingRecord {
	country := strings.ToLower(raw.Country)
	if country == "" {
		country = strings.ToLower(p.cfg.Country)
	}
	description := strings.TrimSpace(raw.Description)
	return model.ListingRecord{
		ID:                 id,
		Title:              strings.TrimSpace(raw.Title),
		Employer:           strings.TrimSpace(raw.Employer),
		LocationRaw:        strings.TrimSpace(raw.Location),
		LocationNormalized: identity.NormalizeLocation(raw.Location),
		Salary: model.Salary{
			Min:       raw.SalaryMin,
			Max:       raw.SalaryMax,
			Currency:  CurrencyFor(country),
			Estimated: raw.SalaryPredicted,
		},
		ContractType: raw.ContractType,
		ContractTime: raw.ContractTime,
		Category:     raw.Category,
		Description:  description,
		Snippet:      Snippet(description),
		URL:          raw.URL,
		Country:      country,
		PostedAt:     raw.PostedAt,
		IngestedAt:   now,
	}
}

// embed computes vectors for stored records concurrently. Each goroutine
// writes its own slot, so no locking is needed for the results.
func (p *Pipeline) embed(ctx context.Context, records []model.ListingRecord, stats *Stats) []model.VectorEntry {
	vectors := make([][]float32, len(records))

	var g errgroup.Group
	g.SetLimit(p.cfg.EmbedConcurrency)
	for i, rec := range records {
		if rec.Description == "" {
			continue
		}
		g.Go(func() error {
			if v, ok := p.embedder.Embed(ctx, rec.Description); ok {
				vectors[i] = v
			}
			return nil
		})
	}
	g.Wait()

	entries := make([]model.VectorEntry, 0, len(records))
	for i, rec := range records {
		if rec.Description == "" {
			continue
		}
		if vectors[i] == nil {
			stats.EmbedFailed++
			continue
		}
		entries = append(entries, model.VectorEntry{ID: rec.ID, Vector: vectors[i], Title: rec.Title})
	}
	return entries
}

func (p *Pipeline) upsert(ctx context.Context, records []model.ListingRecord) (model.UpsertStats, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	return p.store.UpsertBatch(ctx, records)
}

func (p *Pipeline) upsertVectors(ctx context.Context, entries []model.VectorEntry) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	return p.index.Upsert(ctx, entries)
}

func (p *Pipeline) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.cfg.StoreTimeout > 0 {
		return context.WithTimeout(ctx, p.cfg.StoreTimeout)
	}
	return context.WithCancel(ctx)
}
