package vectorindex

import (
	"context"
	"sync"

	"github.com/amishk599/workmatch/internal/model"
)

// Memory is an in-process VectorIndex with a linear cosine scan.
type Memory struct {
	mu      sync.RWMutex
	entries map[model.CanonicalID]model.VectorEntry
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[model.CanonicalID]model.VectorEntry)}
}

// Upsert replaces any entry with the same id.
func (m *Memory) Upsert(_ context.Context, entries []model.VectorEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		if e.ID == "" || len(e.Vector) == 0 {
			continue
		}
		e.Vector = append([]float32(nil), e.Vector...)
		m.entries[e.ID] = e
	}
	return nil
}

func (m *Memory) Query(_ context.Context, vector []float32, k int) []model.ScoredID {
	if k <= 0 || len(vector) == 0 {
		return []model.ScoredID{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	hits := make([]model.ScoredID, 0, len(m.entries))
	for id, e := range m.entries {
		// Vectors from another embedding model are not comparable.
		if len(e.Vector) != len(vector) {
			continue
		}
		hits = append(hits, model.ScoredID{ID: id, Score: cosine(vector, e.Vector)})
	}
	return topK(hits, k)
}

// Count reports the number of stored vectors.
func (m *Memory) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}
