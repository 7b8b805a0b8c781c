package adapter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/amishk599/workmatch/internal/model"
)

// roundTripFunc adapts a function into an http.RoundTripper.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// newAdzunaTestAdapter points an adapter with the real base URL at srv.
func newAdzunaTestAdapter(srv *httptest.Server) *AdzunaAdapter {
	return NewAdzunaAdapter(AdzunaConfig{AppID: "id", AppKey: "key"}, &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			// Rewrite the URL to hit the test server instead.
			req.URL.Scheme = "http"
			req.URL.Host = srv.Listener.Addr().String()
			return http.DefaultTransport.RoundTrip(req)
		}),
	})
}

const adzunaPayload = `{
	"count": 2,
	"results": [
		{
			"id": "4711",
			"title": "Senior <strong>Go</strong> Developer",
			"company": {"display_name": "Acme Ltd"},
			"location": {"display_name": "London, UK", "area": ["UK", "London"]},
			"salary_min": 60000,
			"salary_max": 75000,
			"salary_is_predicted": "0",
			"contract_type": "permanent",
			"contract_time": "full_time",
			"category": {"label": "IT Jobs"},
			"description": "<p>Build &amp; run services.</p>",
			"redirect_url": "https://www.adzuna.co.uk/jobs/land/ad/4711",
			"created": "2026-09-30T10:15:00Z"
		},
		{
			"id": 4712,
			"canonical_id": "c-99",
			"title": "Go Engineer",
			"company": {"display_name": "Beta"},
			"location": {"display_name": "Manchester"},
			"salary_is_predicted": "1",
			"description": "Plain text",
			"redirect_url": "https://www.adzuna.co.uk/jobs/land/ad/4712"
		}
	]
}`

func TestAdzunaAdapter_FetchPage_Success(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(adzunaPayload))
	}))
	defer srv.Close()

	adapter := newAdzunaTestAdapter(srv)
	listings, err := adapter.FetchPage(context.Background(), model.PageQuery{Term: "go developer", Page: 2, PerPage: 20})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/v1/api/jobs/gb/search/2" {
		t.Errorf("expected path /v1/api/jobs/gb/search/2, got %s", gotPath)
	}
	if len(listings) != 2 {
		t.Fatalf("expected 2 listings, got %d", len(listings))
	}

	l := listings[0]
	if l.ExternalID != "4711" {
		t.Errorf("expected id 4711, got %s", l.ExternalID)
	}
	if l.Title != "Senior Go Developer" {
		t.Errorf("expected tags stripped from title, got %q", l.Title)
	}
	if l.Employer != "Acme Ltd" || l.Location != "London, UK" {
		t.Errorf("unexpected employer/location: %q / %q", l.Employer, l.Location)
	}
	if l.Description != "Build & run services." {
		t.Errorf("expected plain description, got %q", l.Description)
	}
	if l.SalaryMin == nil || *l.SalaryMin != 60000 || l.SalaryMax == nil || *l.SalaryMax != 75000 {
		t.Errorf("unexpected salary: %v - %v", l.SalaryMin, l.SalaryMax)
	}
	if l.SalaryPredicted {
		t.Error("expected salary not predicted")
	}
	if l.Country != "gb" {
		t.Errorf("expected country gb, got %q", l.Country)
	}
	if l.ContractType != "permanent" || l.ContractTime != "full_time" || l.Category != "IT Jobs" {
		t.Errorf("unexpected contract/category: %+v", l)
	}
	want := time.Date(2026, 9, 30, 10, 15, 0, 0, time.UTC)
	if l.PostedAt == nil || !l.PostedAt.Equal(want) {
		t.Errorf("expected posted %v, got %v", want, l.PostedAt)
	}

	// Second listing: numeric id, canonical_id preferred, no salary, no date.
	l = listings[1]
	if l.ExternalID != "c-99" {
		t.Errorf("expected canonical id c-99, got %s", l.ExternalID)
	}
	if l.SalaryMin != nil || l.SalaryMax != nil {
		t.Error("expected nil salary")
	}
	if !l.SalaryPredicted {
		t.Error("expected salary predicted")
	}
	if l.PostedAt != nil {
		t.Errorf("expected nil posted date, got %v", l.PostedAt)
	}
}

func TestAdzunaAdapter_FetchPage_QueryParams(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = map[string]string{"path": r.URL.Path}
		for k := range r.URL.Query() {
			got[k] = r.URL.Query().Get(k)
		}
		w.Write([]byte(`{"results": []}`))
	}))
	defer srv.Close()

	adapter := newAdzunaTestAdapter(srv)
	_, err := adapter.FetchPage(context.Background(), model.PageQuery{
		Term: "ux writer",
		Page: 1,
		// Above the Adzuna maximum, must be clamped.
		PerPage: 80,
		Filters: model.Filters{
			Country:        "US",
			Location:       "Austin",
			SalaryMin:      85000,
			EmploymentType: "contract",
			Employer:       "Acme",
			MaxDaysOld:     14,
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expect := map[string]string{
		"path":             "/v1/api/jobs/us/search/1",
		"app_id":           "id",
		"app_key":          "key",
		"what":             "ux writer",
		"results_per_page": "50",
		"where":            "Austin",
		"salary_min":       "85000",
		"contract_type":    "contract",
		"company":          "Acme",
		"max_days_old":     "14",
	}
	for k, v := range expect {
		if got[k] != v {
			t.Errorf("param %s: expected %q, got %q", k, v, got[k])
		}
	}
}

func TestAdzunaAdapter_FetchPage_IgnoresUnknownContractType(t *testing.T) {
	var rawQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
		w.Write([]byte(`{"results": []}`))
	}))
	defer srv.Close()

	adapter := newAdzunaTestAdapter(srv)
	_, err := adapter.FetchPage(context.Background(), model.PageQuery{
		Term:    "nurse",
		Page:    1,
		PerPage: 10,
		Filters: model.Filters{EmploymentType: "part_time"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(rawQuery, "contract_type") {
		t.Errorf("expected no contract_type param, got query %s", rawQuery)
	}
	if strings.Contains(rawQuery, "where=") || strings.Contains(rawQuery, "max_days_old") {
		t.Errorf("expected unset filters to be omitted, got query %s", rawQuery)
	}
}

func TestAdzunaAdapter_FetchPage_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	adapter := newAdzunaTestAdapter(srv)
	_, err := adapter.FetchPage(context.Background(), model.PageQuery{Term: "go", Page: 1, PerPage: 10})
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *model.HTTPError, got %T: %v", err, err)
	}
	if httpErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", httpErr.StatusCode)
	}
	if httpErr.RetryAfter != 30*time.Second {
		t.Errorf("expected RetryAfter 30s, got %v", httpErr.RetryAfter)
	}
	if !errors.Is(err, model.ErrProvider) {
		t.Error("expected error to match model.ErrProvider")
	}
}

func TestAdzunaAdapter_FetchPage_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	adapter := newAdzunaTestAdapter(srv)
	_, err := adapter.FetchPage(context.Background(), model.PageQuery{Term: "go", Page: 1, PerPage: 10})
	if err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestAdzunaAdapter_CustomBaseURL(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"results": []}`))
	}))
	defer srv.Close()

	adapter := NewAdzunaAdapter(AdzunaConfig{BaseURL: srv.URL + "/api/", Country: "de"}, srv.Client())
	listings, err := adapter.FetchPage(context.Background(), model.PageQuery{Term: "go", Page: 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(listings) != 0 {
		t.Errorf("expected no listings, got %d", len(listings))
	}
	if gotPath != "/api/de/search/1" {
		t.Errorf("expected path /api/de/search/1, got %s", gotPath)
	}
}

func TestExtractText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"<p>Hello <b>world</b></p>", "Hello world"},
		{"&lt;div&gt;Encoded&lt;/div&gt;", "Encoded"},
		{"<li>Go</li><li>SQL</li>", "Go SQL"},
		{"line one<br/>line two", "line one line two"},
		{"<strong>Go</strong>lang", "Golang"},
		{"  spaced\n\n out  ", "spaced out"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := extractText(tt.in); got != tt.want {
			t.Errorf("extractText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
