package vectorindex

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amishk599/workmatch/internal/model"
	"github.com/amishk599/workmatch/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type index interface {
	model.VectorIndex
	Count(ctx context.Context) (int, error)
}

func newSQLiteIndex(t *testing.T) *SQLite {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "vectors.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	idx, err := NewSQLite(s.DB(), discardLogger())
	require.NoError(t, err)
	return idx
}

func forEachIndex(t *testing.T, fn func(t *testing.T, idx index)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewMemory()) })
	t.Run("sqlite", func(t *testing.T) { fn(t, newSQLiteIndex(t)) })
	t.Run("postgres", func(t *testing.T) { fn(t, newPostgresIndex(t)) })
}

func TestQueryRanksByCosine(t *testing.T) {
	forEachIndex(t, func(t *testing.T, idx index) {
		ctx := context.Background()
		require.NoError(t, idx.Upsert(ctx, []model.VectorEntry{
			{ID: "near", Vector: []float32{1, 0.1, 0}, Title: "Go Developer"},
			{ID: "far", Vector: []float32{0, 0, 1}, Title: "Chef"},
			{ID: "mid", Vector: []float32{1, 1, 0}, Title: "Backend Engineer"},
		}))

		hits := idx.Query(ctx, []float32{1, 0, 0}, 2)
		require.Len(t, hits, 2)
		assert.Equal(t, model.CanonicalID("near"), hits[0].ID)
		assert.Equal(t, model.CanonicalID("mid"), hits[1].ID)
		assert.Greater(t, hits[0].Score, hits[1].Score)
	})
}

func TestQueryFewerThanK(t *testing.T) {
	forEachIndex(t, func(t *testing.T, idx index) {
		ctx := context.Background()
		require.NoError(t, idx.Upsert(ctx, []model.VectorEntry{{ID: "a", Vector: []float32{1, 2}}}))

		hits := idx.Query(ctx, []float32{1, 2}, 5)
		require.Len(t, hits, 1)
		assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	})
}

func TestQueryEmptyIndex(t *testing.T) {
	forEachIndex(t, func(t *testing.T, idx index) {
		hits := idx.Query(context.Background(), []float32{1, 0}, 5)
		assert.NotNil(t, hits)
		assert.Empty(t, hits)
	})
}

func TestUpsertReplacesByID(t *testing.T) {
	forEachIndex(t, func(t *testing.T, idx index) {
		ctx := context.Background()
		require.NoError(t, idx.Upsert(ctx, []model.VectorEntry{{ID: "a", Vector: []float32{0, 1}}}))
		require.NoError(t, idx.Upsert(ctx, []model.VectorEntry{{ID: "a", Vector: []float32{1, 0}}}))

		count, err := idx.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		hits := idx.Query(ctx, []float32{1, 0}, 1)
		require.Len(t, hits, 1)
		assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	})
}

func TestUpsertSkipsEmptyVectors(t *testing.T) {
	forEachIndex(t, func(t *testing.T, idx index) {
		ctx := context.Background()
		require.NoError(t, idx.Upsert(ctx, []model.VectorEntry{{ID: "a"}, {ID: "", Vector: []float32{1}}}))

		count, err := idx.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}

func TestQueryIgnoresOtherDimensions(t *testing.T) {
	forEachIndex(t, func(t *testing.T, idx index) {
		ctx := context.Background()
		require.NoError(t, idx.Upsert(ctx, []model.VectorEntry{
			{ID: "old-model", Vector: []float32{1, 0, 0}},
			{ID: "new-model", Vector: []float32{1, 0}},
		}))

		hits := idx.Query(ctx, []float32{1, 0}, 5)
		require.Len(t, hits, 1)
		assert.Equal(t, model.CanonicalID("new-model"), hits[0].ID)
		assert.InDelta(t, 1.0, hits[0].Score, 1e-6)

		hits = idx.Query(ctx, []float32{1, 0, 0}, 5)
		require.Len(t, hits, 1)
		assert.Equal(t, model.CanonicalID("old-model"), hits[0].ID)
	})
}

func TestEncodeDecodeVector(t *testing.T) {
	v := []float32{0.5, -1.25, 3}
	assert.Equal(t, v, decodeVector(encodeVector(v)))
}

func TestCosineEdgeCases(t *testing.T) {
	assert.Zero(t, cosine([]float32{1}, []float32{1, 2}))
	assert.Zero(t, cosine([]float32{0, 0}, []float32{1, 2}))
	assert.InDelta(t, -1.0, cosine([]float32{1, 0}, []float32{-1, 0}), 1e-9)
}

// fakeQdrant implements the handful of REST endpoints the client uses.
type fakeQdrant struct {
	mu      sync.Mutex
	created bool
	points  map[string]model.VectorEntry
	apiKeys []string
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apiKeys = append(f.apiKeys, r.Header.Get("api-key"))

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/collections/jobs":
		if !f.created {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"result":{}}`))
	case r.Method == http.MethodPut && r.URL.Path == "/collections/jobs":
		f.created = true
		w.Write([]byte(`{"result":true}`))
	case r.Method == http.MethodPut && r.URL.Path == "/collections/jobs/points":
		var body struct {
			Points []struct {
				ID      string    `json:"id"`
				Vector  []float32 `json:"vector"`
				Payload struct {
					ListingID string `json:"listing_id"`
					Title     string `json:"title"`
				} `json:"payload"`
			} `json:"points"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		for _, p := range body.Points {
			f.points[p.ID] = model.VectorEntry{ID: model.CanonicalID(p.Payload.ListingID), Vector: p.Vector, Title: p.Payload.Title}
		}
		w.Write([]byte(`{"result":{"status":"completed"}}`))
	case r.Method == http.MethodPost && r.URL.Path == "/collections/jobs/points/search":
		var body struct {
			Vector []float32 `json:"vector"`
			Limit  int       `json:"limit"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		var hits []model.ScoredID
		for _, p := range f.points {
			hits = append(hits, model.ScoredID{ID: p.ID, Score: cosine(body.Vector, p.Vector)})
		}
		hits = topK(hits, body.Limit)
		type result struct {
			Score   float64           `json:"score"`
			Payload map[string]string `json:"payload"`
		}
		out := make([]result, 0, len(hits))
		for _, h := range hits {
			out = append(out, result{Score: h.Score, Payload: map[string]string{"listing_id": string(h.ID)}})
		}
		json.NewEncoder(w).Encode(map[string]any{"result": out})
	case r.Method == http.MethodPost && r.URL.Path == "/collections/jobs/points/count":
		json.NewEncoder(w).Encode(map[string]any{"result": map[string]int{"count": len(f.points)}})
	default:
		http.Error(w, "unexpected "+r.Method+" "+r.URL.Path, http.StatusBadRequest)
	}
}

func TestQdrantUpsertAndQuery(t *testing.T) {
	fake := &fakeQdrant{points: map[string]model.VectorEntry{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	q := NewQdrant(QdrantConfig{URL: srv.URL, APIKey: "secret", Collection: "jobs"}, srv.Client(), discardLogger())
	ctx := context.Background()

	require.NoError(t, q.Upsert(ctx, []model.VectorEntry{
		{ID: "near", Vector: []float32{1, 0}, Title: "Go Developer"},
		{ID: "far", Vector: []float32{0, 1}, Title: "Chef"},
	}))
	// Second upsert must not try to recreate the collection.
	require.NoError(t, q.Upsert(ctx, []model.VectorEntry{{ID: "near", Vector: []float32{1, 0.01}}}))

	assert.True(t, fake.created)
	assert.Len(t, fake.points, 2)
	assert.Contains(t, fake.points, PointID("near"))

	hits := q.Query(ctx, []float32{1, 0}, 5)
	require.Len(t, hits, 2)
	assert.Equal(t, model.CanonicalID("near"), hits[0].ID)

	count, err := q.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	for _, k := range fake.apiKeys {
		assert.Equal(t, "secret", k)
	}
}

func TestQdrantQueryUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	q := NewQdrant(QdrantConfig{URL: srv.URL, Collection: "jobs"}, srv.Client(), discardLogger())
	hits := q.Query(context.Background(), []float32{1, 0}, 5)
	assert.NotNil(t, hits)
	assert.Empty(t, hits)
}

func TestQdrantUpsertPropagatesErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	q := NewQdrant(QdrantConfig{URL: srv.URL, Collection: "jobs"}, srv.Client(), discardLogger())
	err := q.Upsert(context.Background(), []model.VectorEntry{{ID: "a", Vector: []float32{1}}})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrProvider)
}

func TestPointIDDeterministic(t *testing.T) {
	id := model.CanonicalID(strings.Repeat("ab", 32))
	assert.Equal(t, PointID(id), PointID(id))
	assert.NotEqual(t, PointID(id), PointID("other"))
}
