// Package dispatch routes typed requests to the retrieval, ingestion and stats
// handlers. Every front end (CLI, MCP) builds a Request and calls Handle.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/amishk599/workmatch/internal/ingest"
	"github.com/amishk599/workmatch/internal/model"
)

// ErrUnknownRequest is returned for a nil or unrecognized Request.
var ErrUnknownRequest = errors.New("unknown request")

// Kind names the handler a request is routed to.
type Kind string

const (
	KindRetrieve      Kind = "retrieve"
	KindIngest        Kind = "ingest"
	KindExploreTitles Kind = "explore_titles"
	KindStats         Kind = "stats"
)

// Request is implemented only by the request types in this package.
type Request interface {
	request()
}

// RetrieveRequest asks for live listings for Primary and Related terms, topped
// up from the semantic index when live results are sparse.
type RetrieveRequest struct {
	Primary string
	Related []string
	Filters model.Filters
}

// IngestRequest searches each term and persists the results without
// returning them.
type IngestRequest struct {
	Terms   []string
	Filters model.Filters
}

// ExploreTitlesRequest asks for distinct job titles seen in a live search.
type ExploreTitlesRequest struct {
	Term    string
	Filters model.Filters
	Limit   int // default 5
}

// StatsRequest asks for store and index sizes.
type StatsRequest struct{}

func (RetrieveRequest) request()      {}
func (IngestRequest) request()        {}
func (ExploreTitlesRequest) request() {}
func (StatsRequest) request()         {}

// Route returns the handler kind for req.
func Route(req Request) (Kind, error) {
	switch req.(type) {
	case RetrieveRequest, *RetrieveRequest:
		return KindRetrieve, nil
	case IngestRequest, *IngestRequest:
		return KindIngest, nil
	case ExploreTitlesRequest, *ExploreTitlesRequest:
		return KindExploreTitles, nil
	case StatsRequest, *StatsRequest:
		return KindStats, nil
	}
	return "", fmt.Errorf("%w: %T", ErrUnknownRequest, req)
}

// IngestSummary totals an IngestRequest across its terms.
type IngestSummary struct {
	Terms    int
	Found    int
	Upserted int
	Embedded int
	Failed   int // terms whose store write failed
}

// IndexStats reports how many listings and vectors are held.
type IndexStats struct {
	Listings     int
	Vectors      int
	VectorsKnown bool // false when the index cannot count its entries
}

// Response carries the result of one handled request. Only the field that
// matches Kind is set.
type Response struct {
	Kind      Kind
	Retrieval *model.RetrievalResult
	Ingest    *IngestSummary
	Titles    []string
	Stats     *IndexStats
}

// Retriever answers retrieval and title exploration requests.
type Retriever interface {
	Retrieve(ctx context.Context, primary string, related []string, f model.Filters) model.RetrievalResult
	ExploreTitles(ctx context.Context, term string, f model.Filters, n int) []string
}

// Searcher runs one live search.
type Searcher interface {
	Search(ctx context.Context, term string, f model.Filters) []model.ListingRaw
}

// Ingester persists raw listings.
type Ingester interface {
	Ingest(ctx context.Context, raws []model.ListingRaw) ingest.Stats
}

// Counter is implemented by stores and indexes that can report their size.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// Dispatcher executes routed requests against injected services.
type Dispatcher struct {
	retriever Retriever
	searcher  Searcher
	ingester  Ingester
	store     Counter
	index     model.VectorIndex
	logger    *slog.Logger
}

// New creates a Dispatcher.
func New(retriever Retriever, searcher Searcher, ingester Ingester, store Counter, index model.VectorIndex, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		retriever: retriever,
		searcher:  searcher,
		ingester:  ingester,
		store:     store,
		index:     index,
		logger:    logger,
	}
}

// Handle routes req and runs it. Retrieval and ingestion never fail; only an
// unknown request or a stats count error is returned as an error.
func (d *Dispatcher) Handle(ctx context.Context, req Request) (Response, error) {
	kind, err := Route(req)
	if err != nil {
		return Response{}, err
	}
	d.logger.Debug("dispatching request", "kind", kind)

	switch kind {
	case KindRetrieve:
		r := deref[RetrieveRequest](req)
		result := d.retriever.Retrieve(ctx, r.Primary, r.Related, r.Filters)
		return Response{Kind: kind, Retrieval: &result}, nil
	case KindIngest:
		r := deref[IngestRequest](req)
		summary := d.ingest(ctx, r)
		return Response{Kind: kind, Ingest: &summary}, nil
	case KindExploreTitles:
		r := deref[ExploreTitlesRequest](req)
		titles := d.retriever.ExploreTitles(ctx, r.Term, r.Filters, r.Limit)
		return Response{Kind: kind, Titles: titles}, nil
	default:
		stats, err := d.stats(ctx)
		if err != nil {
			return Response{}, err
		}
		return Response{Kind: kind, Stats: &stats}, nil
	}
}

func (d *Dispatcher) ingest(ctx context.Context, r IngestRequest) IngestSummary {
	var summary IngestSummary
	seen := make(map[string]bool)
	for _, term := range r.Terms {
		term = strings.Join(strings.Fields(term), " ")
		key := strings.ToLower(term)
		if term == "" || seen[key] {
			continue
		}
		seen[key] = true
		if ctx.Err() != nil {
			break
		}

		raws := d.searcher.Search(ctx, term, r.Filters)
		stats := d.ingester.Ingest(ctx, raws)

		summary.Terms++
		summary.Found += len(raws)
		summary.Upserted += stats.Upserted
		summary.Embedded += stats.Embedded
		if stats.StoreFailed {
			summary.Failed++
		}
	}
	return summary
}

func (d *Dispatcher) stats(ctx context.Context) (IndexStats, error) {
	listings, err := d.store.Count(ctx)
	if err != nil {
		return IndexStats{}, fmt.Errorf("count listings: %w", err)
	}
	stats := IndexStats{Listings: listings}

	counter, ok := d.index.(Counter)
	if !ok {
		return stats, nil
	}
	vectors, err := counter.Count(ctx)
	if err != nil {
		d.logger.Warn("counting vectors failed", "error", err)
		return stats, nil
	}
	stats.Vectors = vectors
	stats.VectorsKnown = true
	return stats, nil
}

// deref accepts both value and pointer forms of a request.
func deref[T Request](req Request) T {
	var zero T
	if v, ok := req.(T); ok {
		return v
	}
	if v, ok := any(req).(*T); ok && v != nil {
		return *v
	}
	return zero
}
