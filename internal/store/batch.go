package store

import (
	"strings"

	"github.com/amishk599/workmatch/internal/model"
)

// prepareBatch drops records that cannot be stored and coalesces repeats of
// the same id into the first occurrence, so each id is written at most once.
// Order of first appearance is preserved.
func prepareBatch(records []model.ListingRecord) ([]model.ListingRecord, model.UpsertStats) {
	var stats model.UpsertStats
	seen := make(map[model.CanonicalID]int, len(records))
	out := make([]model.ListingRecord, 0, len(records))

	for _, r := range records {
		if r.ID == "" || strings.TrimSpace(r.Description) == "" {
			stats.Skipped++
			continue
		}
		if i, ok := seen[r.ID]; ok {
			out[i] = out[i].Merge(r)
			stats.Duplicates++
			continue
		}
		seen[r.ID] = len(out)
		out = append(out, r)
	}

	stats.Upserted = len(out)
	return out, stats
}

// uniqueIDs removes empty and repeated ids, keeping first-seen order.
func uniqueIDs(ids []model.CanonicalID) []model.CanonicalID {
	seen := make(map[model.CanonicalID]bool, len(ids))
	out := make([]model.CanonicalID, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
