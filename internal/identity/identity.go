// Package identity derives the canonical id that deduplicates listings across
// search terms, pages and ingestion runs.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/amishk599/workmatch/internal/model"
)

// delimiter separates the normalized fields before hashing. The unit separator
// does not occur in titles, employer names or locations.
const delimiter = "\x1f"

// Identify returns the canonical id for a (title, employer, location) triple.
// Fields are lowercased and trimmed; location is reduced to its first
// comma-delimited segment. Returns model.ErrIncompleteIdentity when any field
// is empty after normalization.
func Identify(title, employer, location string) (model.CanonicalID, error) {
	t := normalize(title)
	e := normalize(employer)
	l := NormalizeLocation(location)
	if t == "" || e == "" || l == "" {
		return "", model.ErrIncompleteIdentity
	}

	sum := sha256.Sum256([]byte(t + delimiter + e + delimiter + l))
	return model.CanonicalID(hex.EncodeToString(sum[:])), nil
}

// NormalizeLocation lowercases and trims a location and keeps only its primary
// segment, so "London, UK" and " london " collapse to "london".
func NormalizeLocation(location string) string {
	primary, _, _ := strings.Cut(location, ",")
	return normalize(primary)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
