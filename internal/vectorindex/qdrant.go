package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/amishk599/workmatch/internal/model"
)

// Qdrant point ids must be UUIDs or integers, so canonical ids are mapped to
// name-based UUIDs in this namespace and the canonical id travels in the payload.
var pointNamespace = uuid.MustParse("6f1c9a8e-3d4b-5e2f-9a71-0c8d2b4e6f13")

// QdrantConfig holds connection settings for a Qdrant collection.
type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
}

// Qdrant is a minimal REST client for one cosine-distance collection. The
// collection is created on first upsert with the dimension of that batch.
type Qdrant struct {
	cfg    QdrantConfig
	client *http.Client
	logger *slog.Logger

	mu    sync.Mutex
	ready bool
}

func NewQdrant(cfg QdrantConfig, client *http.Client, logger *slog.Logger) *Qdrant {
	if client == nil {
		client = http.DefaultClient
	}
	return &Qdrant{cfg: cfg, client: client, logger: logger}
}

// PointID returns the Qdrant point id used for a canonical id.
func PointID(id model.CanonicalID) string {
	return uuid.NewSHA1(pointNamespace, []byte(id)).String()
}

func (q *Qdrant) Upsert(ctx context.Context, entries []model.VectorEntry) error {
	points := make([]map[string]any, 0, len(entries))
	dim := 0
	for _, e := range entries {
		if e.ID == "" || len(e.Vector) == 0 {
			continue
		}
		dim = len(e.Vector)
		points = append(points, map[string]any{
			"id":     PointID(e.ID),
			"vector": e.Vector,
			"payload": map[string]any{
				"listing_id": string(e.ID),
				"title":      e.Title,
			},
		})
	}
	if len(points) == 0 {
		return nil
	}
	if err := q.ensureCollection(ctx, dim); err != nil {
		return err
	}
	body := map[string]any{"points": points}
	return q.do(ctx, http.MethodPut, q.collectionURL()+"/points?wait=true", body, nil)
}

// Query searches the collection. An unreachable server or a missing
// collection is logged and yields no hits.
func (q *Qdrant) Query(ctx context.Context, vector []float32, k int) []model.ScoredID {
	if k <= 0 || len(vector) == 0 {
		return []model.ScoredID{}
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64 `json:"score"`
			Payload struct {
				ListingID string `json:"listing_id"`
			} `json:"payload"`
		} `json:"result"`
	}
	if err := q.do(ctx, http.MethodPost, q.collectionURL()+"/points/search", req, &resp); err != nil {
		q.logger.Warn("vector query failed", "collection", q.cfg.Collection, "error", err)
		return []model.ScoredID{}
	}

	hits := make([]model.ScoredID, 0, len(resp.Result))
	for _, r := range resp.Result {
		if r.Payload.ListingID == "" {
			continue
		}
		hits = append(hits, model.ScoredID{ID: model.CanonicalID(r.Payload.ListingID), Score: r.Score})
	}
	return topK(hits, k)
}

// Count reports the exact number of points in the collection.
func (q *Qdrant) Count(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := q.do(ctx, http.MethodPost, q.collectionURL()+"/points/count", map[string]any{"exact": true}, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

func (q *Qdrant) ensureCollection(ctx context.Context, dim int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ready {
		return nil
	}

	err := q.do(ctx, http.MethodGet, q.collectionURL(), nil, nil)
	if err == nil {
		q.ready = true
		return nil
	}
	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusNotFound {
		return err
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dim,
			"distance": "Cosine",
		},
	}
	if err := q.do(ctx, http.MethodPut, q.collectionURL(), body, nil); err != nil {
		return fmt.Errorf("creating collection %s: %w", q.cfg.Collection, err)
	}
	q.logger.Info("created qdrant collection", "collection", q.cfg.Collection, "dimension", dim)
	q.ready = true
	return nil
}

func (q *Qdrant) collectionURL() string {
	return q.cfg.URL + "/collections/" + q.cfg.Collection
}

func (q *Qdrant) do(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding qdrant request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("creating qdrant request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if q.cfg.APIKey != "" {
		req.Header.Set("api-key", q.cfg.APIKey)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return &model.HTTPError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("qdrant %s %s: %s", method, url, resp.Status),
		}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding qdrant response: %w", err)
		}
	}
	return nil
}
