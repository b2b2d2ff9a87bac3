package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

const fetchSchema = `{
  "type": "object",
  "properties": {
    "url": {"type": "string", "pattern": "^https?://"},
    "headers": {"type": "object", "additionalProperties": {"type": "string"}},
    "extract": {"type": "boolean"}
  },
  "required": ["url"],
  "additionalProperties": false
}`

// FetchTool performs a bounded outbound GET, used for enrichment lookups
// such as threat intel. With extract=true, HTML bodies are reduced to their
// readable text.
type FetchTool struct {
	Timeout time.Duration
	MaxBody int
	client  *http.Client
}

// NewFetchTool builds the tool with its own timeout-bounded HTTP client.
func NewFetchTool(timeout time.Duration, maxBody int) *FetchTool {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if maxBody <= 0 {
		maxBody = 20000
	}
	return &FetchTool{
		Timeout: timeout,
		MaxBody: maxBody,
		client:  &http.Client{Timeout: timeout},
	}
}

func (t *FetchTool) Spec() Spec {
	return Spec{
		Name:        "http_get",
		Description: "HTTP GET request for enrichment (e.g. threat intel). Returns status and truncated body; extract=true reduces HTML to readable text.",
		InputSchema: json.RawMessage(fetchSchema),
		Timeout:     t.Timeout,
	}
}

func (t *FetchTool) Invoke(ctx context.Context, args map[string]any) Result {
	start := time.Now()
	rawURL, _ := args["url"].(string)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return failure(start, fmt.Errorf("build request: %w", err))
	}
	if headers, ok := args["headers"].(map[string]any); ok {
		for k, v := range headers {
			if s, ok := v.(string); ok {
				req.Header.Set(k, s)
			}
		}
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return failure(start, fmt.Errorf("http get: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(t.MaxBody)+1))
	if err != nil {
		return failure(start, fmt.Errorf("read body: %w", err))
	}
	truncated := len(body) > t.MaxBody
	if truncated {
		body = body[:t.MaxBody]
	}

	text := string(body)
	extracted := false
	if want, _ := args["extract"].(bool); want && looksLikeHTML(resp.Header.Get("Content-Type"), text) {
		if u, perr := url.Parse(rawURL); perr == nil {
			if article, rerr := readability.FromReader(strings.NewReader(text), u); rerr == nil {
				clean := strings.TrimSpace(article.TextContent)
				if clean != "" {
					text = clean
					extracted = true
				}
			}
		}
	}

	return success(start, map[string]any{
		"status":    resp.StatusCode,
		"body":      text,
		"truncated": truncated,
		"extracted": extracted,
	})
}

func looksLikeHTML(contentType, body string) bool {
	if strings.Contains(contentType, "text/html") {
		return true
	}
	head := strings.ToLower(body)
	if len(head) > 512 {
		head = head[:512]
	}
	return strings.Contains(head, "<html")
}
