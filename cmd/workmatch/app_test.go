package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amishk599/workmatch/internal/config"
	"github.com/amishk599/workmatch/internal/dispatch"
	"github.com/amishk599/workmatch/internal/model"
	"github.com/amishk599/workmatch/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newFakeProviders serves one Adzuna result page and an OpenAI-style
// embeddings endpoint that maps every input to the same vector.
func newFakeProviders(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/jobs/gb/search/", func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/1") {
			_, _ = w.Write([]byte(`{"count": 2, "results": []}`))
			return
		}
		_, _ = w.Write([]byte(`{"count": 2, "results": [
			{"id": "101", "title": "UX Writer", "company": {"display_name": "Acme"},
			 "location": {"display_name": "London, UK"}, "description": "Write product copy.",
			 "redirect_url": "https://example.com/101", "created": "2026-09-01T10:00:00Z"},
			{"id": "102", "title": "Content Designer", "company": {"display_name": "Globex"},
			 "location": {"display_name": "Leeds"}, "description": "<p>Design content.</p>",
			 "redirect_url": "https://example.com/102", "created": "2026-09-02T10:00:00Z"}
		]}`))
	})
	mux.HandleFunc("/v1/embeddings", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"embedding": []float32{0.6, 0.8, 0}}},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		Provider: config.ProviderConfig{
			Type:     "adzuna",
			AppID:    "id",
			AppKey:   "key",
			BaseURL:  baseURL + "/jobs",
			Country:  "gb",
			PageSize: 50,
			MaxPages: 3,
		},
		Search: config.SearchConfig{DefaultLimit: 25, EmployerLimit: 100},
		Embedding: config.EmbeddingConfig{
			Type:      "openai",
			BaseURL:   baseURL + "/v1",
			Model:     "test-embed",
			APIKey:    "sk-test",
			Timeout:   5 * time.Second,
			CacheSize: 100,
		},
		Store:     config.StoreConfig{Type: "memory", Timeout: 5 * time.Second},
		Vector:    config.VectorConfig{Type: "memory", TopK: 5, Timeout: 5 * time.Second},
		Retrieval: config.RetrievalConfig{MinLive: 5, PageSize: 10, Fanout: 4, IngestTimeout: time.Minute},
		Warm:      config.WarmConfig{Interval: time.Hour, Country: "gb"},
	}
}

func TestBuildApp_RetrieveThenStats(t *testing.T) {
	srv := newFakeProviders(t)
	a, err := buildApp(testConfig(srv.URL), srv.Client(), discardLogger())
	require.NoError(t, err)
	ctx := context.Background()

	resp, err := a.dispatcher.Handle(ctx, dispatch.RetrieveRequest{Primary: "UX Writer"})
	require.NoError(t, err)
	require.NotNil(t, resp.Retrieval)
	assert.Len(t, resp.Retrieval.Listings, 2)
	assert.Equal(t, 2, resp.Retrieval.LiveCount)

	// Close waits for the background ingest started by Retrieve.
	a.Close()

	resp, err = a.dispatcher.Handle(ctx, dispatch.StatsRequest{})
	require.NoError(t, err)
	assert.Equal(t, dispatch.IndexStats{Listings: 2, Vectors: 2, VectorsKnown: true}, *resp.Stats)
}

func TestBuildApp_SQLiteIngest(t *testing.T) {
	srv := newFakeProviders(t)
	cfg := testConfig(srv.URL)
	cfg.Store = config.StoreConfig{Type: "sqlite", Path: filepath.Join(t.TempDir(), "workmatch.db"), Timeout: 5 * time.Second}
	cfg.Vector.Type = "sqlite"

	a, err := buildApp(cfg, srv.Client(), discardLogger())
	require.NoError(t, err)
	defer a.Close()
	ctx := context.Background()

	resp, err := a.dispatcher.Handle(ctx, dispatch.IngestRequest{Terms: []string{"writer"}})
	require.NoError(t, err)
	assert.Equal(t, dispatch.IngestSummary{Terms: 1, Found: 2, Upserted: 2, Embedded: 2}, *resp.Ingest)

	resp, err = a.dispatcher.Handle(ctx, dispatch.StatsRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Stats.Listings)
	assert.Equal(t, 2, resp.Stats.Vectors)

	// Both listings are reachable through the shared sqlite index.
	hits := a.index.Query(ctx, []float32{0.6, 0.8, 0}, 5)
	assert.Len(t, hits, 2)
}

func TestBuildApp_WarmOnce(t *testing.T) {
	srv := newFakeProviders(t)
	cfg := testConfig(srv.URL)
	a, err := buildApp(cfg, srv.Client(), discardLogger())
	require.NoError(t, err)
	defer a.Close()

	stats := newWarmScheduler(cfg, a, []string{"ux writer"}, discardLogger()).RunOnce(context.Background())
	assert.Equal(t, 1, stats.Terms)
	assert.Equal(t, 2, stats.Upserted)
}

func TestSetupIndex_SQLiteNeedsSQLiteStore(t *testing.T) {
	_, _, err := setupIndex(config.VectorConfig{Type: "sqlite"}, store.NewMemoryStore(), http.DefaultClient, discardLogger())
	assert.Error(t, err)
}

func TestFilterFlags(t *testing.T) {
	f := filterFlags{
		country:        " GB ",
		location:       " London ",
		salaryMin:      45000,
		employmentType: "Permanent",
		employer:       " Acme ",
		maxDaysOld:     7,
	}
	assert.Equal(t, model.Filters{
		Country:        "gb",
		Location:       "London",
		SalaryMin:      45000,
		EmploymentType: "permanent",
		Employer:       "Acme",
		MaxDaysOld:     7,
	}, f.filters())
}
