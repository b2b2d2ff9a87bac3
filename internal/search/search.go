package search

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/a-yousafzai/ai-analyst-agent/config"
)

// Hit is a single matching record returned by a backend.
type Hit struct {
	ID     string          `json:"id"`
	Score  float64         `json:"score"`
	Source json.RawMessage `json:"source"`
}

// Result carries the matches for one query. Total reflects the backend's
// total match count, which may exceed len(Hits).
type Result struct {
	Total int   `json:"total"`
	Hits  []Hit `json:"hits"`
}

// Backend is the query-and-get-matches collaborator used by the search tool,
// the /analyze endpoint and the ingest consumer. Query is expressed in the
// backend's native query-string language.
type Backend interface {
	Search(ctx context.Context, index, query string, size int) (*Result, error)
	Index(ctx context.Context, index string, doc any) error
}

// New builds the configured backend.
func New(cfg config.SearchConfig) (Backend, error) {
	switch cfg.Backend {
	case "elastic":
		return NewElastic(cfg.ElasticURL, cfg.Timeout), nil
	case "bleve":
		return NewBleve(cfg.BlevePath)
	default:
		return nil, fmt.Errorf("unsupported search backend: %s", cfg.Backend)
	}
}
