package mcpserver

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// filterProperties are the search filters shared by every tool that runs a
// live search.
func filterProperties() map[string]interface{} {
	return map[string]interface{}{
		"country": map[string]interface{}{
			"type":        "string",
			"description": "Two-letter provider country code, e.g. gb, us, de",
		},
		"location": map[string]interface{}{
			"type":        "string",
			"description": "Free-text location such as a city. Dropped automatically when it yields nothing",
		},
		"salary_min": map[string]interface{}{
			"type":        "integer",
			"description": "Minimum annual salary in the country's currency",
			"minimum":     0,
		},
		"employment_type": map[string]interface{}{
			"type":        "string",
			"description": "Contract type filter",
			"enum":        []string{"permanent", "contract"},
		},
		"employer": map[string]interface{}{
			"type":        "string",
			"description": "Only return listings from this employer (disables the freshness window)",
		},
		"max_days_old": map[string]interface{}{
			"type":        "integer",
			"description": "Only return listings posted within this many days",
			"minimum":     0,
		},
	}
}

func withFilters(props map[string]interface{}) map[string]interface{} {
	for k, v := range filterProperties() {
		props[k] = v
	}
	return props
}

// retrieveJobsTool returns the tool definition for retrieve_jobs
func retrieveJobsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "retrieve_jobs",
		Description: "Search live job listings for a title and related titles, topped up with semantically similar stored listings when live results are sparse",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: withFilters(map[string]interface{}{
				"primary_title": map[string]interface{}{
					"type":        "string",
					"description": "Main job title to search for",
				},
				"related_titles": map[string]interface{}{
					"type":        "array",
					"description": "Alternative titles searched concurrently",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
			}),
			Required: []string{"primary_title"},
		},
	}
}

// ingestJobsTool returns the tool definition for ingest_jobs
func ingestJobsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "ingest_jobs",
		Description: "Search each term and store the listings for later semantic retrieval",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: withFilters(map[string]interface{}{
				"terms": map[string]interface{}{
					"type":        "array",
					"description": "Job titles or keywords to ingest",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
			}),
			Required: []string{"terms"},
		},
	}
}

// exploreTitlesTool returns the tool definition for explore_titles
func exploreTitlesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "explore_titles",
		Description: "List distinct job titles currently advertised for a field or keyword",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: withFilters(map[string]interface{}{
				"term": map[string]interface{}{
					"type":        "string",
					"description": "Field or keyword, e.g. 'data' or 'product design'",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of titles (1-20)",
					"default":     5,
					"minimum":     1,
					"maximum":     20,
				},
			}),
			Required: []string{"term"},
		},
	}
}

// indexStatsTool returns the tool definition for index_stats
func indexStatsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_stats",
		Description: "Report how many listings and vectors are stored",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
