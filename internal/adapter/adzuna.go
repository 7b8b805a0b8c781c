package adapter

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/amishk599/workmatch/internal/model"
)

const (
	adzunaBaseURL = "https://api.adzuna.com/v1/api/jobs"

	// adzunaMaxPerPage is the largest results_per_page Adzuna accepts.
	adzunaMaxPerPage = 50
)

type adzunaResponse struct {
	Count   int         `json:"count"`
	Results []adzunaJob `json:"results"`
}

type adzunaJob struct {
	ID          flexString `json:"id"`
	CanonicalID flexString `json:"canonical_id"`
	Title       string     `json:"title"`
	Company     struct {
		DisplayName string `json:"display_name"`
	} `json:"company"`
	Location struct {
		DisplayName string   `json:"display_name"`
		Area        []string `json:"area"`
	} `json:"location"`
	SalaryMin       *float64 `json:"salary_min"`
	SalaryMax       *float64 `json:"salary_max"`
	SalaryPredicted flexBool `json:"salary_is_predicted"`
	ContractType    string   `json:"contract_type"`
	ContractTime    string   `json:"contract_time"`
	Category        struct {
		Label string `json:"label"`
	} `json:"category"`
	Description string `json:"description"`
	RedirectURL string `json:"redirect_url"`
	Created     string `json:"created"`
}

// flexString accepts ids sent either as JSON strings or numbers.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	*s = flexString(strings.Trim(string(data), `"`))
	if *s == "null" {
		*s = ""
	}
	return nil
}

// flexBool decodes Adzuna's salary_is_predicted, which arrives as "0"/"1",
// a number or a bool depending on the endpoint.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	switch strings.ToLower(s) {
	case "1", "true":
		*b = true
	default:
		*b = false
	}
	return nil
}

// AdzunaConfig holds credentials and defaults for the Adzuna search API.
type AdzunaConfig struct {
	AppID   string
	AppKey  string
	BaseURL string // defaults to the public API
	Country string // used when a query carries no country, defaults to "gb"
}

// AdzunaAdapter fetches single result pages from the Adzuna job search API.
type AdzunaAdapter struct {
	cfg    AdzunaConfig
	client *http.Client
}

// NewAdzunaAdapter creates a page fetcher for Adzuna.
func NewAdzunaAdapter(cfg AdzunaConfig, client *http.Client) *AdzunaAdapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = adzunaBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Country == "" {
		cfg.Country = "gb"
	}
	return &AdzunaAdapter{cfg: cfg, client: client}
}

// FetchPage retrieves one page of results for q and normalizes them into
// ListingRaw values. Descriptions are reduced to plain text.
func (a *AdzunaAdapter) FetchPage(ctx context.Context, q model.PageQuery) ([]model.ListingRaw, error) {
	country := a.country(q)
	endpoint := a.pageURL(country, q)

	var resp adzunaResponse
	if err := getJSON(ctx, a.client, endpoint, "adzuna", &resp); err != nil {
		return nil, fmt.Errorf("adzuna page %d for %q: %w", q.Page, q.Term, err)
	}

	listings := make([]model.ListingRaw, 0, len(resp.Results))
	for _, aj := range resp.Results {
		id := string(aj.CanonicalID)
		if id == "" {
			id = string(aj.ID)
		}

		var postedAt *time.Time
		if aj.Created != "" {
			if t, err := time.Parse(time.RFC3339, aj.Created); err == nil {
				postedAt = &t
			}
		}

		listings = append(listings, model.ListingRaw{
			ExternalID:      id,
			Title:           strings.TrimSpace(extractText(aj.Title)),
			Employer:        strings.TrimSpace(aj.Company.DisplayName),
			Location:        strings.TrimSpace(aj.Location.DisplayName),
			SalaryMin:       aj.SalaryMin,
			SalaryMax:       aj.SalaryMax,
			SalaryPredicted: bool(aj.SalaryPredicted),
			ContractType:    aj.ContractType,
			ContractTime:    aj.ContractTime,
			Category:        aj.Category.Label,
			Description:     extractText(aj.Description),
			URL:             aj.RedirectURL,
			Country:         country,
			PostedAt:        postedAt,
		})
	}

	return listings, nil
}

func (a *AdzunaAdapter) country(q model.PageQuery) string {
	if c := strings.ToLower(strings.TrimSpace(q.Filters.Country)); c != "" {
		return c
	}
	return a.cfg.Country
}

func (a *AdzunaAdapter) pageURL(country string, q model.PageQuery) string {
	page := q.Page
	if page < 1 {
		page = 1
	}
	perPage := q.PerPage
	if perPage <= 0 || perPage > adzunaMaxPerPage {
		perPage = adzunaMaxPerPage
	}

	params := url.Values{}
	params.Set("app_id", a.cfg.AppID)
	params.Set("app_key", a.cfg.AppKey)
	params.Set("what", q.Term)
	params.Set("results_per_page", strconv.Itoa(perPage))
	params.Set("content-type", "application/json")

	f := q.Filters
	if f.Location != "" {
		params.Set("where", f.Location)
	}
	if f.SalaryMin > 0 {
		params.Set("salary_min", strconv.Itoa(f.SalaryMin))
	}
	// Adzuna only understands these two values; anything else is dropped.
	if f.EmploymentType == "permanent" || f.EmploymentType == "contract" {
		params.Set("contract_type", f.EmploymentType)
	}
	if f.Employer != "" {
		params.Set("company", f.Employer)
	}
	if f.MaxDaysOld > 0 {
		params.Set("max_days_old", strconv.Itoa(f.MaxDaysOld))
	}

	return fmt.Sprintf("%s/%s/search/%d?%s", a.cfg.BaseURL, url.PathEscape(country), page, params.Encode())
}
