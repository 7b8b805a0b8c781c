// Package retrieval answers "find listings for these terms" by combining
// concurrent live searches with a semantic fallback over previously
// ingested listings.
package retrieval

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/amishk599/workmatch/internal/ingest"
	"github.com/amishk599/workmatch/internal/model"
)

// Searcher runs one live search. It never fails; problems yield no listings.
type Searcher interface {
	Search(ctx context.Context, term string, f model.Filters) []model.ListingRaw
}

// Ingester shapes and persists raw listings.
type Ingester interface {
	Record(raw model.ListingRaw) (model.ListingRecord, error)
	Ingest(ctx context.Context, raws []model.ListingRaw) ingest.Stats
}

// Config tunes retrieval. Zero values pick defaults.
type Config struct {
	MinLive       int           // below this many live listings the fallback runs, default 5, NoFallback disables
	TopK          int           // neighbours requested from the vector index, default 5
	PageSize      int           // listings returned per call, default 10
	Fanout        int           // concurrent searches per call, default 4
	IngestTimeout time.Duration // budget for one background ingest, default 2m
	QueryTimeout  time.Duration // vector query, 0 = none
	StoreTimeout  time.Duration // metadata fetch, 0 = none
}

// NoFallback as Config.MinLive turns the semantic fallback off.
const NoFallback = -1

func (c Config) withDefaults() Config {
	if c.MinLive == 0 {
		c.MinLive = 5
	}
	if c.TopK <= 0 {
		c.TopK = 5
	}
	if c.PageSize <= 0 {
		c.PageSize = 10
	}
	if c.Fanout <= 0 {
		c.Fanout = 4
	}
	if c.IngestTimeout <= 0 {
		c.IngestTimeout = 2 * time.Minute
	}
	return c
}

// Service is the retrieval entry point. Construct once and share.
type Service struct {
	searcher Searcher
	ingester Ingester
	embedder ingest.TextEmbedder
	index    model.VectorIndex
	store    model.MetadataStore
	cfg      Config
	logger   *slog.Logger

	mu     sync.Mutex // guards closed and wg.Add
	closed bool
	wg     sync.WaitGroup
}

// NewService wires a retrieval service.
func NewService(
	searcher Searcher,
	ingester Ingester,
	embedder ingest.TextEmbedder,
	index model.VectorIndex,
	store model.MetadataStore,
	cfg Config,
	logger *slog.Logger,
) *Service {
	return &Service{
		searcher: searcher,
		ingester: ingester,
		embedder: embedder,
		index:    index,
		store:    store,
		cfg:      cfg.withDefaults(),
		logger:   logger,
	}
}

// Retrieve searches primary and every related term concurrently, merges the
// results by canonical id, persists them in the background and tops up sparse
// results from the vector index. It always returns a result, possibly empty.
func (s *Service) Retrieve(ctx context.Context, primary string, related []string, f model.Filters) model.RetrievalResult {
	logger := s.logger.With("retrieval_id", uuid.NewString())

	terms := uniqueTerms(primary, related)
	if len(terms) == 0 {
		return model.RetrievalResult{Listings: []model.ListingRecord{}}
	}

	perTerm := s.fanOut(ctx, terms, f)

	seen := make(map[model.CanonicalID]bool)
	var (
		raws     []model.ListingRaw
		listings []model.ListingRecord
	)
	for _, results := range perTerm {
		for _, raw := range results {
			rec, err := s.ingester.Record(raw)
			if err != nil {
				continue
			}
			if seen[rec.ID] {
				continue
			}
			seen[rec.ID] = true
			raws = append(raws, raw)
			listings = append(listings, rec)
		}
	}
	live := len(listings)

	s.ingestAsync(ctx, raws, logger)

	if min(live, s.cfg.PageSize) < s.cfg.MinLive {
		extra := s.fallback(ctx, terms[0], seen, logger)
		listings = append(listings, extra...)
	}

	if len(listings) > s.cfg.PageSize {
		listings = listings[:s.cfg.PageSize]
	}
	if listings == nil {
		listings = []model.ListingRecord{}
	}

	result := model.RetrievalResult{
		Listings:      listings,
		LiveCount:     min(live, len(listings)),
		FallbackCount: len(listings) - min(live, len(listings)),
	}
	logger.Info("retrieve complete",
		"terms", len(terms),
		"live", live,
		"returned", len(listings),
		"fallback", result.FallbackCount,
	)
	return result
}

// fanOut runs one search per term. Searches do not share cancellation, so a
// failing term cannot cut its siblings short.
func (s *Service) fanOut(ctx context.Context, terms []string, f model.Filters) [][]model.ListingRaw {
	perTerm := make([][]model.ListingRaw, len(terms))

	var g errgroup.Group
	g.SetLimit(s.cfg.Fanout)
	for i, term := range terms {
		g.Go(func() error {
			perTerm[i] = s.searcher.Search(ctx, term, f)
			return nil
		})
	}
	g.Wait()
	return perTerm
}

// fallback returns stored listings semantically close to term that are not
// already in seen. Each failure simply means no fallback.
func (s *Service) fallback(ctx context.Context, term string, seen map[model.CanonicalID]bool, logger *slog.Logger) []model.ListingRecord {
	vector, ok := s.embedder.Embed(ctx, term)
	if !ok {
		logger.Warn("fallback skipped: query not embeddable", "term", term)
		return nil
	}

	qctx, cancel := withTimeout(ctx, s.cfg.QueryTimeout)
	hits := s.index.Query(qctx, vector, s.cfg.TopK)
	cancel()
	if len(hits) == 0 {
		return nil
	}

	ids := make([]model.CanonicalID, 0, len(hits))
	for _, h := range hits {
		if !seen[h.ID] {
			ids = append(ids, h.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	fctx, cancel := withTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	records, err := s.store.FetchByIDs(fctx, ids)
	if err != nil {
		logger.Warn("fallback fetch failed", "count", len(ids), "error", err)
		return nil
	}

	var out []model.ListingRecord
	for _, r := range records {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		out = append(out, r)
	}
	logger.Debug("fallback hydrated", "hits", len(hits), "added", len(out))
	return out
}

// ingestAsync persists raws on a context detached from the caller's so the
// response does not wait for it. Wait blocks until all such runs finish.
func (s *Service) ingestAsync(ctx context.Context, raws []model.ListingRaw, logger *slog.Logger) {
	if len(raws) == 0 {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		logger.Warn("service closed, skipping background ingest", "listings", len(raws))
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		ictx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.IngestTimeout)
		defer cancel()

		stats := s.ingester.Ingest(ictx, raws)
		if stats.StoreFailed || stats.IndexFailed {
			logger.Warn("background ingest degraded",
				"store_failed", stats.StoreFailed,
				"index_failed", stats.IndexFailed,
			)
		}
	}()
}

// Ingest persists raws synchronously.
func (s *Service) Ingest(ctx context.Context, raws []model.ListingRaw) ingest.Stats {
	return s.ingester.Ingest(ctx, raws)
}

// ExploreTitles runs a live search for term and returns up to n distinct job
// titles in result order. The listings are ingested in the background.
func (s *Service) ExploreTitles(ctx context.Context, term string, f model.Filters, n int) []string {
	if n <= 0 {
		n = 5
	}
	raws := s.searcher.Search(ctx, term, f)
	s.ingestAsync(ctx, raws, s.logger.With("explore", term))

	seen := make(map[string]bool)
	titles := []string{}
	for _, raw := range raws {
		title := strings.TrimSpace(raw.Title)
		key := strings.ToLower(title)
		if title == "" || seen[key] {
			continue
		}
		seen[key] = true
		titles = append(titles, title)
		if len(titles) == n {
			break
		}
	}
	return titles
}

// Wait blocks until every background ingest started so far has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Close stops new background ingests and waits for the running ones. Calls
// still in flight keep answering; their listings are just not persisted.
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
}

// uniqueTerms returns primary followed by related terms, whitespace-collapsed,
// without blanks or case-insensitive repeats.
func uniqueTerms(primary string, related []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range append([]string{primary}, related...) {
		t = strings.Join(strings.Fields(t), " ")
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}
