package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/a-yousafzai/ai-analyst-agent/internal/search"
	"github.com/a-yousafzai/ai-analyst-agent/provider"
)

const analyzeDefaultSize = 20

// AnalyzeHandler answers natural-language questions about indexed events in
// one shot, outside any agent session. The LLM translates the question into a
// query string and summarizes the matches; without an LLM the raw question is
// used as the query and the summary is heuristic.
type AnalyzeHandler struct {
	Backend      search.Backend
	LLM          provider.Provider
	DefaultIndex string
	// AllowPartial keeps the endpoint returning 200 with empty results when
	// the search backend is unreachable.
	AllowPartial bool

	logger *log.Logger
}

type analyzeRequest struct {
	Query string `json:"query"`
	Index string `json:"index,omitempty"`
	Size  int    `json:"size,omitempty"`
}

type analyzeResponse struct {
	Query    string       `json:"query"`
	Index    string       `json:"index"`
	Total    int          `json:"total"`
	Hits     []search.Hit `json:"hits"`
	Summary  string       `json:"summary"`
	Degraded bool         `json:"degraded,omitempty"`
}

func (h *AnalyzeHandler) Analyze(c echo.Context) error {
	var req analyzeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}
	index := req.Index
	if index == "" {
		index = h.DefaultIndex
	}
	size := req.Size
	if size <= 0 {
		size = analyzeDefaultSize
	}

	ctx := c.Request().Context()
	query := h.translateQuery(ctx, req.Query)

	result, err := h.Backend.Search(ctx, index, query, size)
	if err != nil {
		if !h.AllowPartial {
			return echo.NewHTTPError(http.StatusBadGateway, fmt.Sprintf("search backend: %v", err))
		}
		h.log().Printf("search degraded for %q: %v", query, err)
		return c.JSON(http.StatusOK, analyzeResponse{
			Query:    query,
			Index:    index,
			Hits:     []search.Hit{},
			Summary:  "Search backend unavailable; no matches could be retrieved.",
			Degraded: true,
		})
	}

	resp := analyzeResponse{
		Query:   query,
		Index:   index,
		Total:   result.Total,
		Hits:    result.Hits,
		Summary: h.summarize(ctx, req.Query, result),
	}
	return c.JSON(http.StatusOK, resp)
}

// translateQuery asks the LLM to turn the question into a query string. Any
// failure keeps the raw question, which still works as a full-text query.
func (h *AnalyzeHandler) translateQuery(ctx context.Context, question string) string {
	if h.LLM == nil {
		return question
	}
	out, err := h.LLM.Complete(ctx,
		"Translate the user's question into a single Lucene query string over security event documents with fields like event_type, src_ip, user and message. Respond with the query string only.",
		question)
	if err != nil {
		h.log().Printf("query translation fallback: %v", err)
		return question
	}
	out = strings.TrimSpace(strings.Trim(strings.TrimSpace(out), "`"))
	if out == "" || strings.ContainsAny(out, "\n") {
		return question
	}
	return out
}

// summarize renders a short report over the matches, preferring the LLM.
func (h *AnalyzeHandler) summarize(ctx context.Context, question string, result *search.Result) string {
	if result.Total == 0 {
		return "No matching events found."
	}

	if h.LLM != nil {
		var b strings.Builder
		for i, hit := range result.Hits {
			if i >= 10 {
				break
			}
			b.Write(hit.Source)
			b.WriteByte('\n')
		}
		prompt := fmt.Sprintf("Question: %s\n\nMatching events (%d total):\n%s\nSummarize the findings in a few sentences.", question, result.Total, b.String())
		summary, err := h.LLM.Complete(ctx, "You are a security analyst summarizing log search results.", prompt)
		if err == nil && strings.TrimSpace(summary) != "" {
			return strings.TrimSpace(summary)
		}
		if err != nil {
			h.log().Printf("summary fallback: %v", err)
		}
	}
	return fmt.Sprintf("%d events matched; showing %d.", result.Total, len(result.Hits))
}

func (h *AnalyzeHandler) log() *log.Logger {
	if h.logger == nil {
		h.logger = log.New(log.Writer(), "[ANALYZE] ", log.LstdFlags)
	}
	return h.logger
}
