package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/amishk599/workmatch/internal/adapter"
	"github.com/amishk599/workmatch/internal/config"
	"github.com/amishk599/workmatch/internal/dispatch"
	"github.com/amishk599/workmatch/internal/embedding"
	"github.com/amishk599/workmatch/internal/filter"
	"github.com/amishk599/workmatch/internal/ingest"
	"github.com/amishk599/workmatch/internal/model"
	"github.com/amishk599/workmatch/internal/ratelimit"
	"github.com/amishk599/workmatch/internal/retrieval"
	"github.com/amishk599/workmatch/internal/retry"
	"github.com/amishk599/workmatch/internal/search"
	"github.com/amishk599/workmatch/internal/store"
	"github.com/amishk599/workmatch/internal/vectorindex"
)

const postgresConnectTimeout = 15 * time.Second

// app holds every long-lived component. Build it once per process.
type app struct {
	store      model.MetadataStore
	index      model.VectorIndex
	search     *search.Client
	pipeline   *ingest.Pipeline
	retrieval  *retrieval.Service
	dispatcher *dispatch.Dispatcher
	closers    []func() error
}

func buildApp(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) (*app, error) {
	a := &app{}

	switch cfg.Store.Type {
	case "memory":
		a.store = store.NewMemoryStore()
	default:
		sqlStore, err := store.NewSQLiteStore(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		a.closers = append(a.closers, sqlStore.Close)
		a.store = sqlStore
	}

	index, closeIndex, err := setupIndex(cfg.Vector, a.store, httpClient, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.index = index
	if closeIndex != nil {
		a.closers = append(a.closers, closeIndex)
	}

	a.search = search.NewClient(
		setupFetcher(cfg.Provider, httpClient, logger),
		filter.NewTitleExcludeFilter(cfg.Search.ExcludeTitleKeywords),
		search.Config{
			Country:       cfg.Provider.Country,
			PageSize:      cfg.Provider.PageSize,
			MaxPages:      cfg.Provider.MaxPages,
			DefaultLimit:  cfg.Search.DefaultLimit,
			EmployerLimit: cfg.Search.EmployerLimit,
			MaxDaysOld:    cfg.Search.MaxDaysOld,
		},
		logger,
	)

	embedder := setupEmbedder(cfg.Embedding, httpClient, logger)
	a.pipeline = ingest.NewPipeline(a.store, a.index, embedder, ingest.Config{
		Country:      cfg.Provider.Country,
		StoreTimeout: cfg.Store.Timeout,
	}, logger)

	minLive := cfg.Retrieval.MinLive
	if minLive == 0 {
		minLive = retrieval.NoFallback
	}
	a.retrieval = retrieval.NewService(a.search, a.pipeline, embedder, a.index, a.store, retrieval.Config{
		MinLive:       minLive,
		TopK:          cfg.Vector.TopK,
		PageSize:      cfg.Retrieval.PageSize,
		Fanout:        cfg.Retrieval.Fanout,
		IngestTimeout: cfg.Retrieval.IngestTimeout,
		QueryTimeout:  cfg.Vector.Timeout,
		StoreTimeout:  cfg.Store.Timeout,
	}, logger)

	a.dispatcher = dispatch.New(a.retrieval, a.search, a.pipeline, a.store, a.index, logger)
	return a, nil
}

// Close stops and drains background ingestion, then releases the store.
func (a *app) Close() {
	if a.retrieval != nil {
		a.retrieval.Close()
	}
	for _, c := range a.closers {
		_ = c()
	}
}

// setupFetcher wraps the Adzuna adapter with throttling and, when configured,
// retries. Each retry attempt waits on the limiter again.
func setupFetcher(cfg config.ProviderConfig, httpClient *http.Client, logger *slog.Logger) model.PageFetcher {
	var fetcher model.PageFetcher = adapter.NewAdzunaAdapter(adapter.AdzunaConfig{
		AppID:   cfg.AppID,
		AppKey:  cfg.AppKey,
		BaseURL: cfg.BaseURL,
		Country: cfg.Country,
	}, httpClient)

	// The page timeout starts after the limiter wait; retries get a fresh one.
	fetcher = ratelimit.NewRateLimitedFetcher(fetcher, ratelimit.NewProviderLimiter(cfg.RequestsPerSecond, 1)).
		WithCallTimeout(cfg.PageTimeout)
	if cfg.MaxRetries > 0 {
		fetcher = retry.NewRetryFetcher(fetcher, cfg.MaxRetries, cfg.RetryBaseDelay, logger)
	}
	return fetcher
}

func setupEmbedder(cfg config.EmbeddingConfig, httpClient *http.Client, logger *slog.Logger) *embedding.Service {
	var backend model.Embedder
	switch cfg.Type {
	case "ollama":
		backend = embedding.NewOllamaClient(cfg.BaseURL, cfg.Model, httpClient)
	default:
		backend = embedding.NewOpenAIClient(cfg.BaseURL, cfg.APIKey, cfg.Model, httpClient)
	}
	if cfg.MaxRetries > 0 {
		backend = retry.NewRetryEmbedder(backend, cfg.MaxRetries, cfg.RetryBaseDelay, logger)
	}
	if cfg.CacheSize > 0 {
		backend = embedding.NewCachedEmbedder(backend, cfg.CacheSize)
	}
	logger.Debug("embedding backend configured", "type", cfg.Type, "model", cfg.Model)
	return embedding.NewService(backend, cfg.Dimension, cfg.Timeout, logger)
}

// setupIndex returns the configured vector index and, for backends that own a
// connection, a func that releases it.
func setupIndex(cfg config.VectorConfig, metadata model.MetadataStore, httpClient *http.Client, logger *slog.Logger) (model.VectorIndex, func() error, error) {
	switch cfg.Type {
	case "memory":
		return vectorindex.NewMemory(), nil, nil
	case "qdrant":
		logger.Info("using qdrant vector index", "url", cfg.URL, "collection", cfg.Collection)
		return vectorindex.NewQdrant(vectorindex.QdrantConfig{
			URL:        cfg.URL,
			APIKey:     cfg.APIKey,
			Collection: cfg.Collection,
		}, httpClient, logger), nil, nil
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), postgresConnectTimeout)
		defer cancel()
		pg, err := vectorindex.NewPostgres(ctx, cfg.URL, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open vector index: %w", err)
		}
		logger.Info("using postgres vector index")
		return pg, func() error { pg.Close(); return nil }, nil
	default:
		sqlStore, ok := metadata.(*store.SQLiteStore)
		if !ok {
			return nil, nil, fmt.Errorf("vector.type sqlite needs the sqlite metadata store")
		}
		index, err := vectorindex.NewSQLite(sqlStore.DB(), logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open vector index: %w", err)
		}
		return index, nil, nil
	}
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}
