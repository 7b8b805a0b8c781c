package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/amishk599/workmatch/internal/model"
)

// policy holds the shared backoff settings of the retry decorators.
type policy struct {
	maxRetries int
	baseDelay  time.Duration
	logger     *slog.Logger
}

// do runs call, retrying transient failures with exponential backoff and jitter.
func do[T any](ctx context.Context, p policy, op string, call func() (T, error)) (T, error) {
	var zero T
	out, err := call()
	if err == nil {
		return out, nil
	}

	if !isRetryable(err) {
		return zero, err
	}

	lastErr := err
	for attempt := 1; attempt <= p.maxRetries; attempt++ {
		delay := p.backoffDelay(attempt, lastErr)

		p.logger.Warn("retrying after transient error",
			"op", op,
			"attempt", attempt,
			"max_retries", p.maxRetries,
			"delay", delay,
			"error", lastErr,
		)

		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}

		out, err = call()
		if err == nil {
			return out, nil
		}

		if !isRetryable(err) {
			return zero, err
		}
		lastErr = err
	}

	return zero, lastErr
}

// RetryFetcher is a decorator that retries transient page failures before
// giving up on the wrapped PageFetcher.
type RetryFetcher struct {
	inner model.PageFetcher
	p     policy
}

// NewRetryFetcher wraps a PageFetcher with retry logic.
// maxRetries is the number of additional attempts after the first failure.
// baseDelay is the delay before the first retry, doubled on each subsequent retry.
func NewRetryFetcher(inner model.PageFetcher, maxRetries int, baseDelay time.Duration, logger *slog.Logger) *RetryFetcher {
	return &RetryFetcher{
		inner: inner,
		p:     policy{maxRetries: maxRetries, baseDelay: baseDelay, logger: logger},
	}
}

// FetchPage attempts to fetch a page, retrying on transient errors.
func (f *RetryFetcher) FetchPage(ctx context.Context, q model.PageQuery) ([]model.ListingRaw, error) {
	return do(ctx, f.p, "fetch_page", func() ([]model.ListingRaw, error) {
		return f.inner.FetchPage(ctx, q)
	})
}

// RetryEmbedder retries transient embedding backend failures.
type RetryEmbedder struct {
	inner model.Embedder
	p     policy
}

// NewRetryEmbedder wraps an Embedder with retry logic. With maxRetries 0 it
// behaves exactly like the wrapped backend.
func NewRetryEmbedder(inner model.Embedder, maxRetries int, baseDelay time.Duration, logger *slog.Logger) *RetryEmbedder {
	return &RetryEmbedder{
		inner: inner,
		p:     policy{maxRetries: maxRetries, baseDelay: baseDelay, logger: logger},
	}
}

func (e *RetryEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return do(ctx, e.p, "embed", func() ([]float32, error) {
		return e.inner.Embed(ctx, text)
	})
}

// backoffDelay computes the delay for a given attempt with ±30% jitter.
// If the error includes a Retry-After duration (HTTP 429), that takes precedence.
func (p policy) backoffDelay(attempt int, err error) time.Duration {
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 {
		return httpErr.RetryAfter
	}

	// Exponential: baseDelay * 2^(attempt-1)
	delay := p.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}

	jitter := float64(delay) * 0.3
	return time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter)
}

// isRetryable reports whether err is a transient failure worth retrying.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Cancellation and deadlines are final.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500
	}

	// Network, DNS and similar errors.
	return true
}
