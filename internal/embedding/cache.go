package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/amishk599/workmatch/internal/model"
)

const defaultCacheSize = 10000

// CachedEmbedder memoizes an Embedder by content hash. Repeated descriptions
// (the same listing returned for several terms) hit the backend once.
type CachedEmbedder struct {
	inner model.Embedder
	cache *lru.Cache[string, []float32]
}

// NewCachedEmbedder wraps inner with an LRU of the given size (default 10000).
func NewCachedEmbedder(inner model.Embedder, size int) *CachedEmbedder {
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		cache, _ = lru.New[string, []float32](defaultCacheSize)
	}
	return &CachedEmbedder{inner: inner, cache: cache}
}

// Embed returns a cached vector when available. Failures are not cached.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := contentHash(text)
	if v, ok := c.cache.Get(key); ok {
		return copyVector(v), nil
	}

	v, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, copyVector(v))
	return v, nil
}

// Len returns the number of cached vectors.
func (c *CachedEmbedder) Len() int {
	return c.cache.Len()
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func copyVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
