// Package embedding maps free text to fixed-dimension vectors. Backend
// failures never reach callers as errors: Service.Embed reports them as
// "unavailable" so the caller skips indexing that record.
package embedding

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/amishk599/workmatch/internal/model"
)

// Service wraps an Embedder with input validation, a per-call timeout and a
// dimension check.
type Service struct {
	backend   model.Embedder
	dimension int           // 0 = accept any non-empty vector
	timeout   time.Duration // 0 = no per-call timeout
	logger    *slog.Logger
}

// NewService creates the embedding service.
func NewService(backend model.Embedder, dimension int, timeout time.Duration, logger *slog.Logger) *Service {
	return &Service{
		backend:   backend,
		dimension: dimension,
		timeout:   timeout,
		logger:    logger,
	}
}

// Embed returns the vector for text and true, or nil and false when the text
// is empty or the backend fails for any reason.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	v, err := s.backend.Embed(ctx, text)
	if err != nil {
		s.logger.Warn("embedding unavailable", "error", err)
		return nil, false
	}
	if len(v) == 0 || (s.dimension > 0 && len(v) != s.dimension) {
		s.logger.Warn("embedding unavailable",
			"error", model.ErrEmbeddingUnavailable,
			"got_dimension", len(v),
			"want_dimension", s.dimension,
		)
		return nil, false
	}
	return v, true
}
