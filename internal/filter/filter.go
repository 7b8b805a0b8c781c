package filter

import (
	"strings"

	"github.com/amishk599/workmatch/internal/model"
)

// TitleExcludeFilter drops listings whose title contains any of the excluded
// keywords (case-insensitive substring). An empty list keeps everything.
type TitleExcludeFilter struct {
	keywords []string
}

// NewTitleExcludeFilter returns a filter rejecting titles that mention any of
// keywords. Blank keywords are ignored.
func NewTitleExcludeFilter(keywords []string) *TitleExcludeFilter {
	lowered := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			lowered = append(lowered, kw)
		}
	}
	return &TitleExcludeFilter{keywords: lowered}
}

// Match returns true if the listing's title contains none of the keywords.
func (f *TitleExcludeFilter) Match(l model.ListingRaw) bool {
	titleLower := strings.ToLower(l.Title)
	for _, kw := range f.keywords {
		if strings.Contains(titleLower, kw) {
			return false
		}
	}
	return true
}

// Apply returns the listings that pass f, preserving order.
func Apply(f model.ListingFilter, listings []model.ListingRaw) []model.ListingRaw {
	if f == nil {
		return listings
	}
	kept := listings[:0:0]
	for _, l := range listings {
		if f.Match(l) {
			kept = append(kept, l)
		}
	}
	return kept
}
