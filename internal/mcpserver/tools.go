package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/amishk599/workmatch/internal/dispatch"
	"github.com/amishk599/workmatch/internal/model"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602 // Invalid method parameters
	ErrorCodeInternalError = -32603 // Internal JSON-RPC error
)

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{Code: code, Message: message, Data: data}
}

func (s *Server) handleRetrieveJobs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	primary := strings.TrimSpace(getStringDefault(args, "primary_title", ""))
	if primary == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "primary_title parameter is required", map[string]interface{}{
			"param":  "primary_title",
			"reason": "missing or empty",
		})
	}
	filters, err := parseFilters(args)
	if err != nil {
		return nil, err
	}

	resp, err := s.handler.Handle(ctx, dispatch.RetrieveRequest{
		Primary: primary,
		Related: getStringSlice(args, "related_titles"),
		Filters: filters,
	})
	if err != nil {
		return nil, internalError("retrieval failed", err)
	}

	result := resp.Retrieval
	listings := make([]map[string]interface{}, 0, len(result.Listings))
	for i, l := range result.Listings {
		source := "live"
		if i >= result.LiveCount {
			source = "stored"
		}
		listings = append(listings, listingView(l, source))
	}

	response := map[string]interface{}{
		"count":          len(listings),
		"live_count":     result.LiveCount,
		"fallback_count": result.FallbackCount,
		"listings":       listings,
	}
	if len(listings) == 0 {
		response["message"] = "No listings found. Try a broader title or drop the location."
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

func (s *Server) handleIngestJobs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	terms := getStringSlice(args, "terms")
	if len(terms) == 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "terms parameter is required", map[string]interface{}{
			"param":  "terms",
			"reason": "missing or empty",
		})
	}
	filters, err := parseFilters(args)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := s.handler.Handle(ctx, dispatch.IngestRequest{Terms: terms, Filters: filters})
	if err != nil {
		return nil, internalError("ingestion failed", err)
	}

	summary := resp.Ingest
	response := map[string]interface{}{
		"terms":       summary.Terms,
		"found":       summary.Found,
		"upserted":    summary.Upserted,
		"embedded":    summary.Embedded,
		"failed":      summary.Failed,
		"duration_ms": time.Since(start).Milliseconds(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

func (s *Server) handleExploreTitles(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	term := strings.TrimSpace(getStringDefault(args, "term", ""))
	if term == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "term parameter is required", map[string]interface{}{
			"param":  "term",
			"reason": "missing or empty",
		})
	}
	limit := getIntDefault(args, "limit", 5)
	if limit < 1 || limit > 20 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 20", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}
	filters, err := parseFilters(args)
	if err != nil {
		return nil, err
	}

	resp, err := s.handler.Handle(ctx, dispatch.ExploreTitlesRequest{Term: term, Filters: filters, Limit: limit})
	if err != nil {
		return nil, internalError("explore failed", err)
	}

	response := map[string]interface{}{
		"term":   term,
		"titles": resp.Titles,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

func (s *Server) handleIndexStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp, err := s.handler.Handle(ctx, dispatch.StatsRequest{})
	if err != nil {
		return nil, internalError("failed to read index stats", err)
	}

	response := map[string]interface{}{
		"listings": resp.Stats.Listings,
	}
	if resp.Stats.VectorsKnown {
		response["vectors"] = resp.Stats.Vectors
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

func internalError(message string, err error) error {
	return newMCPError(ErrorCodeInternalError, message, map[string]interface{}{
		"error": err.Error(),
	})
}

func parseFilters(args map[string]interface{}) (model.Filters, error) {
	f := model.Filters{
		Country:        strings.ToLower(strings.TrimSpace(getStringDefault(args, "country", ""))),
		Location:       strings.TrimSpace(getStringDefault(args, "location", "")),
		SalaryMin:      getIntDefault(args, "salary_min", 0),
		EmploymentType: strings.ToLower(strings.TrimSpace(getStringDefault(args, "employment_type", ""))),
		Employer:       strings.TrimSpace(getStringDefault(args, "employer", "")),
		MaxDaysOld:     getIntDefault(args, "max_days_old", 0),
	}
	if f.SalaryMin < 0 || f.MaxDaysOld < 0 {
		return model.Filters{}, newMCPError(ErrorCodeInvalidParams, "salary_min and max_days_old must not be negative", nil)
	}
	return f, nil
}

func listingView(l model.ListingRecord, source string) map[string]interface{} {
	view := map[string]interface{}{
		"id":         string(l.ID),
		"title":      l.Title,
		"employer":   l.Employer,
		"location":   l.LocationRaw,
		"salary":     l.SalaryText(),
		"employment": l.EmploymentText(),
		"snippet":    l.Snippet,
		"url":        l.URL,
		"source":     source,
	}
	if l.Salary.Estimated {
		view["salary_estimated"] = true
	}
	if l.PostedAt != nil {
		view["posted_at"] = l.PostedAt.Format(time.RFC3339)
	}
	return view
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// getStringSlice extracts a string array, skipping non-string and blank items.
// A single string is accepted as a one-element array.
func getStringSlice(args map[string]interface{}, key string) []string {
	var out []string
	switch val := args[key].(type) {
	case []interface{}:
		for _, item := range val {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case []string:
		for _, s := range val {
			if strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case string:
		if strings.TrimSpace(val) != "" {
			out = append(out, strings.TrimSpace(val))
		}
	}
	return out
}
