package ingest

import "strings"

// snippetRunes is the description prefix kept as a snippet.
const snippetRunes = 200

var currencyByCountry = map[string]string{
	"gb": "GBP",
	"us": "USD",
	"de": "EUR",
	"fr": "EUR",
	"ca": "CAD",
	"au": "AUD",
	"in": "INR",
}

// CurrencyFor returns the ISO currency for a provider country code, or ""
// when unknown.
func CurrencyFor(country string) string {
	return currencyByCountry[strings.ToLower(country)]
}

// Snippet returns the first 200 runes of text, with "..." appended when
// anything was cut.
func Snippet(text string) string {
	r := []rune(text)
	if len(r) <= snippetRunes {
		return text
	}
	return string(r[:snippetRunes]) + "..."
}
