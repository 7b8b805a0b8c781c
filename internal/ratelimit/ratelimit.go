package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/amishk599/workmatch/internal/model"
)

// ProviderLimiter throttles requests to one search provider. It combines a
// token bucket with a pause window set from Retry-After on 429 responses.
type ProviderLimiter struct {
	limiter *rate.Limiter

	mu          sync.Mutex
	pausedUntil time.Time
}

// NewProviderLimiter allows perSecond requests with the given burst.
// perSecond <= 0 disables throttling.
func NewProviderLimiter(perSecond float64, burst int) *ProviderLimiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &ProviderLimiter{limiter: rate.NewLimiter(limit, burst)}
}

// Wait blocks until a request may be sent, honoring any pause window first.
// Returns an error if the context is cancelled while waiting.
func (l *ProviderLimiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	remaining := time.Until(l.pausedUntil)
	l.mu.Unlock()

	if remaining > 0 {
		select {
		case <-ctx.Done():
			return fmt.Errorf("rate limiter pause: %w", ctx.Err())
		case <-time.After(remaining):
		}
	}

	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}
	return nil
}

// Pause stops all callers from proceeding for d. A shorter pause never
// shortens an existing one.
func (l *ProviderLimiter) Pause(d time.Duration) {
	if d <= 0 {
		return
	}
	until := time.Now().Add(d)
	l.mu.Lock()
	if until.After(l.pausedUntil) {
		l.pausedUntil = until
	}
	l.mu.Unlock()
}

// RateLimitedFetcher is a decorator that enforces provider-level rate
// limiting before delegating to the wrapped PageFetcher.
type RateLimitedFetcher struct {
	inner       model.PageFetcher
	limiter     *ProviderLimiter
	callTimeout time.Duration
}

// NewRateLimitedFetcher wraps a PageFetcher with provider-level rate limiting.
// All fetchers for the same provider account should share one limiter.
func NewRateLimitedFetcher(inner model.PageFetcher, limiter *ProviderLimiter) *RateLimitedFetcher {
	return &RateLimitedFetcher{
		inner:   inner,
		limiter: limiter,
	}
}

// WithCallTimeout bounds each delegated call to d. The clock starts once the
// limiter lets the call through, so queueing never eats into it.
func (f *RateLimitedFetcher) WithCallTimeout(d time.Duration) *RateLimitedFetcher {
	f.callTimeout = d
	return f
}

// FetchPage waits for the limiter, then delegates. A 429 carrying Retry-After
// pauses the limiter for everyone sharing it.
func (f *RateLimitedFetcher) FetchPage(ctx context.Context, q model.PageQuery) ([]model.ListingRaw, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	if f.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.callTimeout)
		defer cancel()
	}
	listings, err := f.inner.FetchPage(ctx, q)
	if err != nil {
		var httpErr *model.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusTooManyRequests {
			f.limiter.Pause(httpErr.RetryAfter)
		}
		return nil, err
	}
	return listings, nil
}
