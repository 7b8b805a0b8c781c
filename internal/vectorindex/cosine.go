// Package vectorindex holds the model.VectorIndex implementations: an
// in-process map, a SQLite table sharing the metadata database, and a Qdrant
// collection over REST.
package vectorindex

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/amishk599/workmatch/internal/model"
)

// encodeVector packs a vector as little-endian float32s.
func encodeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

func decodeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vector
}

// cosine returns 0 for mismatched lengths or zero vectors.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// topK sorts hits by descending score (ties by id, for stable output) and
// keeps at most k.
func topK(hits []model.ScoredID, k int) []model.ScoredID {
	if hits == nil {
		return []model.ScoredID{}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}
