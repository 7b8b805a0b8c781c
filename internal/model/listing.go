package model

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// CanonicalID is the hex SHA-256 identity of a listing. It is the only join key
// between the metadata store and the vector index.
type CanonicalID string

// ListingRaw is a listing as returned by the search provider. It only lives for
// one ingestion pass.
type ListingRaw struct {
	ExternalID      string     // provider id, used for within-search dedup
	Title           string     // job title
	Employer        string     // employer display name
	Location        string     // location display string, e.g. "London, UK"
	SalaryMin       *float64   // nullable
	SalaryMax       *float64   // nullable
	SalaryPredicted bool       // provider estimated the salary
	ContractType    string     // "permanent", "contract"
	ContractTime    string     // "full_time", "part_time"
	Category        string     // provider category label
	Description     string     // plain text
	URL             string     // redirect / apply link
	Country         string     // provider country code the listing was found under
	PostedAt        *time.Time // nullable
}

// Salary is the durable salary shape on a ListingRecord.
type Salary struct {
	Min       *float64
	Max       *float64
	Currency  string
	Estimated bool
}

// ListingRecord is the durable form of a listing keyed by CanonicalID.
// Writes merge: non-empty fields overwrite, empty fields keep the stored value.
type ListingRecord struct {
	ID                 CanonicalID
	Title              string
	Employer           string
	LocationRaw        string
	LocationNormalized string
	Salary             Salary
	ContractType       string
	ContractTime       string
	Category           string
	Description        string
	Snippet            string
	URL                string
	Country            string
	PostedAt           *time.Time
	IngestedAt         time.Time
}

// SalaryText renders the salary as "GBP 40,000 - 50,000", "GBP 45,000" or "Not listed".
func (r ListingRecord) SalaryText() string {
	cur := r.Salary.Currency
	if cur == "" {
		cur = "N/A"
	}
	lo, hi := r.Salary.Min, r.Salary.Max
	if lo != nil && hi != nil && *lo > 0 && *hi > 0 && *lo != *hi {
		return fmt.Sprintf("%s %s - %s", cur, thousands(*lo), thousands(*hi))
	}
	switch {
	case hi != nil && *hi > 0:
		return fmt.Sprintf("%s %s", cur, thousands(*hi))
	case lo != nil && *lo > 0:
		return fmt.Sprintf("%s %s", cur, thousands(*lo))
	}
	return "Not listed"
}

// EmploymentText renders contract type and time as "Permanent, Full time".
func (r ListingRecord) EmploymentText() string {
	ct := capitalize(r.ContractType)
	tm := capitalize(strings.ReplaceAll(r.ContractTime, "_", " "))
	switch {
	case ct != "" && tm != "":
		return ct + ", " + tm
	case ct != "":
		return ct
	case tm != "":
		return tm
	}
	return "N/A"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

func thousands(v float64) string {
	s := fmt.Sprintf("%.0f", v)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

// VectorEntry is what the vector index stores per listing.
type VectorEntry struct {
	ID     CanonicalID
	Vector []float32
	Title  string
}

// ScoredID is one nearest-neighbour hit, higher score is closer.
type ScoredID struct {
	ID    CanonicalID
	Score float64
}

// Filters narrows a provider search.
type Filters struct {
	Country        string // provider country code, e.g. "gb"
	Location       string // free-text location ("where")
	SalaryMin      int    // 0 = unset
	EmploymentType string // "permanent" or "contract"; anything else is ignored
	Employer       string // optional employer name
	MaxDaysOld     int    // freshness window in days, 0 = unset
	Limit          int    // requested result cap, 0 = client default
}

// RetrievalResult is the merged, deduplicated answer to a Retrieve call.
type RetrievalResult struct {
	Listings      []ListingRecord
	LiveCount     int // listings that came from the live search
	FallbackCount int // listings appended from the semantic fallback
}

// UpsertStats reports what an UpsertBatch call did.
type UpsertStats struct {
	Upserted   int // distinct ids written
	Skipped    int // records without an id or description
	Duplicates int // in-batch repeats coalesced into an earlier record
}

// PageQuery is one page request against the search provider.
type PageQuery struct {
	Term    string
	Filters Filters
	Page    int // 1-based
	PerPage int
}

// PageFetcher fetches a single page of listings from a search provider.
type PageFetcher interface {
	FetchPage(ctx context.Context, q PageQuery) ([]ListingRaw, error)
}

// Embedder turns text into a vector. Backends return errors; the embedding
// service turns them into "unavailable".
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// MetadataStore persists ListingRecords with merge-upsert semantics.
type MetadataStore interface {
	UpsertBatch(ctx context.Context, records []ListingRecord) (UpsertStats, error)
	FetchByIDs(ctx context.Context, ids []CanonicalID) ([]ListingRecord, error)
	Count(ctx context.Context) (int, error)
}

// VectorIndex stores listing vectors for nearest-neighbour lookup.
// Query never fails: an empty or unreachable index yields no hits.
type VectorIndex interface {
	Upsert(ctx context.Context, entries []VectorEntry) error
	Query(ctx context.Context, vector []float32, topK int) []ScoredID
}

// ListingFilter decides whether a listing is kept.
type ListingFilter interface {
	Match(l ListingRaw) bool
}

// Merge overlays newer onto r: every non-empty field of newer wins, empty
// fields keep r's value. The ID is never changed.
func (r ListingRecord) Merge(newer ListingRecord) ListingRecord {
	out := r
	setString(&out.Title, newer.Title)
	setString(&out.Employer, newer.Employer)
	setString(&out.LocationRaw, newer.LocationRaw)
	setString(&out.LocationNormalized, newer.LocationNormalized)
	setString(&out.ContractType, newer.ContractType)
	setString(&out.ContractTime, newer.ContractTime)
	setString(&out.Category, newer.Category)
	setString(&out.Description, newer.Description)
	setString(&out.Snippet, newer.Snippet)
	setString(&out.URL, newer.URL)
	setString(&out.Country, newer.Country)
	setString(&out.Salary.Currency, newer.Salary.Currency)
	if newer.Salary.Min != nil || newer.Salary.Max != nil {
		out.Salary.Estimated = newer.Salary.Estimated
	}
	if newer.Salary.Min != nil {
		out.Salary.Min = newer.Salary.Min
	}
	if newer.Salary.Max != nil {
		out.Salary.Max = newer.Salary.Max
	}
	if newer.PostedAt != nil {
		out.PostedAt = newer.PostedAt
	}
	if !newer.IngestedAt.IsZero() {
		out.IngestedAt = newer.IngestedAt
	}
	return out
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
