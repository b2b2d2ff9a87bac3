package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/a-yousafzai/ai-analyst-agent/internal/search"
)

const searchSchema = `{
  "type": "object",
  "properties": {
    "query": {"type": "string", "minLength": 1},
    "index": {"type": "string", "minLength": 1},
    "size": {"type": "integer", "minimum": 1, "maximum": 200}
  },
  "required": ["query"],
  "additionalProperties": false
}`

// SearchTool queries the search backend in its native query-string language.
type SearchTool struct {
	Backend      search.Backend
	DefaultIndex string
	MaxResults   int
	Timeout      time.Duration
}

func (t *SearchTool) Spec() Spec {
	return Spec{
		Name:        "search",
		Description: "Search the alert index with a query in the backend's query-string language.",
		InputSchema: json.RawMessage(searchSchema),
		Timeout:     t.Timeout,
	}
}

func (t *SearchTool) Invoke(ctx context.Context, args map[string]any) Result {
	start := time.Now()
	query, _ := args["query"].(string)
	index := t.DefaultIndex
	if v, ok := args["index"].(string); ok && v != "" {
		index = v
	}
	size := t.MaxResults
	if v, ok := args["size"].(float64); ok && int(v) > 0 {
		size = int(v)
	}
	if t.MaxResults > 0 && size > t.MaxResults {
		size = t.MaxResults
	}

	res, err := t.Backend.Search(ctx, index, query, size)
	if err != nil {
		return failure(start, fmt.Errorf("search backend: %w", err))
	}
	return success(start, map[string]any{
		"index": index,
		"total": res.Total,
		"hits":  res.Hits,
	})
}
