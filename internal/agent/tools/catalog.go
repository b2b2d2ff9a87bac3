package tools

import (
	"github.com/a-yousafzai/ai-analyst-agent/config"
	"github.com/a-yousafzai/ai-analyst-agent/internal/search"
)

// DefaultRegistry assembles the built-in read-oriented catalog: search,
// http_get and sleep.
func DefaultRegistry(cfg config.ToolsConfig, backend search.Backend) (*Registry, error) {
	return NewRegistry(
		&SearchTool{
			Backend:      backend,
			DefaultIndex: cfg.SearchIndex,
			MaxResults:   cfg.SearchMaxResults,
		},
		NewFetchTool(cfg.FetchTimeout, cfg.FetchMaxBody),
		&SleepTool{Max: cfg.SleepMax},
	)
}
