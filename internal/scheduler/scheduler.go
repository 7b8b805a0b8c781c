package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/amishk599/workmatch/internal/ingest"
	"github.com/amishk599/workmatch/internal/model"
)

// Searcher runs one live search.
type Searcher interface {
	Search(ctx context.Context, term string, f model.Filters) []model.ListingRaw
}

// Ingester persists raw listings.
type Ingester interface {
	Ingest(ctx context.Context, raws []model.ListingRaw) ingest.Stats
}

// CycleStats summarizes one pass over all seed terms.
type CycleStats struct {
	Terms    int
	Found    int
	Upserted int
	Embedded int
	Failed   int // terms whose ingest hit a store failure
}

// Scheduler owns the warm loop: it periodically searches each seed term and
// ingests the results so the semantic fallback has something to return.
type Scheduler struct {
	searcher Searcher
	ingester Ingester
	terms    []string
	filters  model.Filters
	interval time.Duration
	minDelay time.Duration
	logger   *slog.Logger
}

// NewScheduler creates a scheduler that warms the given terms every interval.
// minDelay is the pause between two terms within one cycle.
func NewScheduler(searcher Searcher, ingester Ingester, terms []string, f model.Filters, interval, minDelay time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		searcher: searcher,
		ingester: ingester,
		terms:    terms,
		filters:  f,
		interval: interval,
		minDelay: minDelay,
		logger:   logger,
	}
}

// Run starts the warm loop. It runs one immediate cycle, then ticks on the
// configured interval. It returns nil when ctx is cancelled (graceful shutdown).
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("starting warm scheduler",
		"interval", s.interval.String(),
		"terms", len(s.terms),
	)

	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("shutting down warm scheduler")
			return nil
		case <-time.After(s.interval):
			s.RunOnce(ctx)
		}
	}
}

// RunOnce searches and ingests every term sequentially.
func (s *Scheduler) RunOnce(ctx context.Context) CycleStats {
	var cycle CycleStats
	start := time.Now()

	for i, term := range s.terms {
		if ctx.Err() != nil {
			break
		}

		raws := s.searcher.Search(ctx, term, s.filters)
		stats := s.ingester.Ingest(ctx, raws)

		cycle.Terms++
		cycle.Found += len(raws)
		cycle.Upserted += stats.Upserted
		cycle.Embedded += stats.Embedded
		if stats.StoreFailed {
			cycle.Failed++
			s.logger.Error("warm ingest failed", "term", term, "found", len(raws))
		} else {
			s.logger.Debug("warmed term",
				"term", term,
				"found", len(raws),
				"upserted", stats.Upserted,
				"embedded", stats.Embedded,
			)
		}

		// Stay polite to the provider between terms, except after the last one.
		if i < len(s.terms)-1 && s.minDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(s.minDelay):
			}
		}
	}

	s.logger.Info("warm cycle complete",
		"terms", cycle.Terms,
		"found", cycle.Found,
		"upserted", cycle.Upserted,
		"embedded", cycle.Embedded,
		"failed", cycle.Failed,
		"elapsed", time.Since(start).Round(time.Millisecond).String(),
	)
	return cycle
}
