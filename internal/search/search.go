// Package search turns the provider's page-at-a-time API into a flat,
// deduplicated listing slice per query term.
package search

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/amishk599/workmatch/internal/filter"
	"github.com/amishk599/workmatch/internal/model"
)

// maxPageSize is the provider's hard per-page maximum.
const maxPageSize = 50

// Config controls pagination and default limits.
type Config struct {
	Country       string        // used when Filters.Country is empty
	PageSize      int           // per-page request size, capped at 50
	MaxPages      int           // page cap per search
	DefaultLimit  int           // result cap when Filters.Limit is 0
	EmployerLimit int           // minimum cap when an employer filter is set
	MaxDaysOld    int           // default freshness window, 0 = none
	PageTimeout   time.Duration // per page request including any fetcher-side queueing, 0 = none
}

func (c Config) withDefaults() Config {
	if c.Country == "" {
		c.Country = "gb"
	}
	if c.PageSize <= 0 || c.PageSize > maxPageSize {
		c.PageSize = maxPageSize
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 3
	}
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = 25
	}
	if c.EmployerLimit <= 0 {
		c.EmployerLimit = 100
	}
	return c
}

// Client searches one provider through a PageFetcher.
type Client struct {
	fetcher model.PageFetcher
	filter  model.ListingFilter
	cfg     Config
	logger  *slog.Logger
}

// NewClient creates a search client. listingFilter may be nil.
func NewClient(fetcher model.PageFetcher, listingFilter model.ListingFilter, cfg Config, logger *slog.Logger) *Client {
	return &Client{
		fetcher: fetcher,
		filter:  listingFilter,
		cfg:     cfg.withDefaults(),
		logger:  logger,
	}
}

// Search returns up to the effective limit of listings for term. It never
// fails: provider errors are logged and yield whatever was collected, usually
// nothing. A location filter that finds nothing is dropped and the search
// retried exactly once.
func (c *Client) Search(ctx context.Context, term string, f model.Filters) []model.ListingRaw {
	term = strings.Join(strings.Fields(term), " ")
	if term == "" {
		return []model.ListingRaw{}
	}
	f = c.effectiveFilters(term, f)

	results := c.collect(ctx, term, f)
	if len(results) == 0 && f.Location != "" {
		c.logger.Info("no results with location, retrying without it",
			"term", term,
			"location", f.Location,
		)
		f.Location = ""
		results = c.collect(ctx, term, f)
	}

	if f.Employer == "" {
		rand.Shuffle(len(results), func(i, j int) {
			results[i], results[j] = results[j], results[i]
		})
	}

	c.logger.Debug("search complete", "term", term, "count", len(results))
	return results
}

// effectiveFilters resolves defaults and the employer and high-paying rules.
func (c *Client) effectiveFilters(term string, f model.Filters) model.Filters {
	f.Country = strings.ToLower(strings.TrimSpace(f.Country))
	if f.Country == "" {
		f.Country = c.cfg.Country
	}
	if f.Limit <= 0 {
		f.Limit = c.cfg.DefaultLimit
	}
	f = ApplySalaryThreshold(term, f)

	if f.Employer != "" {
		f.MaxDaysOld = 0
		f.Limit = max(f.Limit, c.cfg.EmployerLimit)
		return f
	}
	if f.MaxDaysOld <= 0 {
		f.MaxDaysOld = c.cfg.MaxDaysOld
	}
	return f
}

// collect pages through results until the limit, an empty page, the page cap
// or an error. The result holds at most f.Limit listings in provider order.
func (c *Client) collect(ctx context.Context, term string, f model.Filters) []model.ListingRaw {
	perPage := min(f.Limit, c.cfg.PageSize)
	seen := make(map[string]bool)
	out := make([]model.ListingRaw, 0, f.Limit)

	for page := 1; page <= c.cfg.MaxPages && len(out) < f.Limit; page++ {
		listings, err := c.fetchPage(ctx, model.PageQuery{Term: term, Filters: f, Page: page, PerPage: perPage})
		if err != nil {
			c.logger.Warn("search page failed",
				"term", term,
				"page", page,
				"collected", len(out),
				"error", err,
			)
			break
		}
		if len(listings) == 0 {
			break
		}

		for _, l := range filter.Apply(c.filter, listings) {
			if l.ExternalID == "" || seen[l.ExternalID] {
				continue
			}
			seen[l.ExternalID] = true
			out = append(out, l)
		}
	}

	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

func (c *Client) fetchPage(ctx context.Context, q model.PageQuery) ([]model.ListingRaw, error) {
	if c.cfg.PageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.PageTimeout)
		defer cancel()
	}
	return c.fetcher.FetchPage(ctx, q)
}
