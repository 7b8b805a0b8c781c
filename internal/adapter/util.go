package adapter

import (
	"html"
	"regexp"
	"strings"
)

var (
	// Block-level tags separate words; inline tags such as Adzuna's <strong>
	// search highlights do not.
	blockTagRegex = regexp.MustCompile(`(?i)</?(p|br|div|li|ul|ol|h[1-6]|tr|td)\b[^>]*>`)
	htmlTagRegex  = regexp.MustCompile(`<[^>]*>`)
)

// extractText turns an HTML or entity-encoded fragment into single-spaced
// plain text.
func extractText(content string) string {
	plain := html.UnescapeString(content)
	plain = blockTagRegex.ReplaceAllString(plain, " ")
	plain = htmlTagRegex.ReplaceAllString(plain, "")
	return strings.Join(strings.Fields(plain), " ")
}
