package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Elastic is a minimal client for an Elasticsearch-compatible HTTP endpoint.
type Elastic struct {
	baseURL    string
	httpClient *http.Client
	retries    int
	backoff    time.Duration
}

// NewElastic creates a client for the given base URL (e.g. http://es:9200).
func NewElastic(baseURL string, timeout time.Duration) *Elastic {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Elastic{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		retries:    2,
		backoff:    300 * time.Millisecond,
	}
}

type esSearchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID     string          `json:"_id"`
			Score  float64         `json:"_score"`
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search runs a query_string search sorted by @timestamp descending.
func (e *Elastic) Search(ctx context.Context, index, query string, size int) (*Result, error) {
	if size <= 0 {
		size = 50
	}
	body := map[string]any{
		"query": map[string]any{
			"query_string": map[string]any{"query": query},
		},
		"size": size,
		"sort": []any{
			map[string]any{"@timestamp": map[string]any{"order": "desc", "unmapped_type": "date"}},
		},
	}
	var resp esSearchResponse
	if err := e.doJSON(ctx, http.MethodPost, fmt.Sprintf("%s/%s/_search", e.baseURL, index), body, &resp); err != nil {
		return nil, fmt.Errorf("elastic search: %w", err)
	}
	out := &Result{Total: resp.Hits.Total.Value, Hits: make([]Hit, 0, len(resp.Hits.Hits))}
	for _, h := range resp.Hits.Hits {
		out.Hits = append(out.Hits, Hit{ID: h.ID, Score: h.Score, Source: h.Source})
	}
	if out.Total == 0 {
		out.Total = len(out.Hits)
	}
	return out, nil
}

// Index writes a document into the given index.
func (e *Elastic) Index(ctx context.Context, index string, doc any) error {
	if err := e.doJSON(ctx, http.MethodPost, fmt.Sprintf("%s/%s/_doc", e.baseURL, index), doc, nil); err != nil {
		return fmt.Errorf("elastic index: %w", err)
	}
	return nil
}

func (e *Elastic) doJSON(ctx context.Context, method, url string, body any, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = b
	}

	var lastErr error
	tries := e.retries + 1
	for attempt := 0; attempt < tries; attempt++ {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return err
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := e.httpClient.Do(req)
		if err != nil {
			lastErr = err
		} else {
			func() {
				defer resp.Body.Close()
				if resp.StatusCode >= 200 && resp.StatusCode < 300 {
					if out != nil {
						lastErr = json.NewDecoder(resp.Body).Decode(out)
					} else {
						lastErr = nil
					}
					return
				}
				b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
				lastErr = errors.New(resp.Status + ": " + string(b))
			}()
			if lastErr == nil {
				return nil
			}
			// Client errors are not retryable.
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return lastErr
			}
		}

		if attempt < tries-1 {
			select {
			case <-time.After(e.backoff * time.Duration(1<<attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}
