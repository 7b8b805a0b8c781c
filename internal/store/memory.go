package store

import (
	"context"
	"sync"

	"github.com/amishk599/workmatch/internal/model"
)

// MemoryStore is a map-backed MetadataStore used in dry-run mode and tests.
// Nothing survives the process.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[model.CanonicalID]model.ListingRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[model.CanonicalID]model.ListingRecord)}
}

// UpsertBatch merges each record into any stored record with the same id.
func (s *MemoryStore) UpsertBatch(_ context.Context, records []model.ListingRecord) (model.UpsertStats, error) {
	batch, stats := prepareBatch(records)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range batch {
		if existing, ok := s.records[r.ID]; ok {
			s.records[r.ID] = existing.Merge(r)
			continue
		}
		s.records[r.ID] = r
	}
	return stats, nil
}

// FetchByIDs returns the stored records for ids, silently omitting unknown ids.
func (s *MemoryStore) FetchByIDs(_ context.Context, ids []model.CanonicalID) ([]model.ListingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.ListingRecord
	for _, id := range uniqueIDs(ids) {
		if r, ok := s.records[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}
