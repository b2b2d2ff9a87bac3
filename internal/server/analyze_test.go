package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/a-yousafzai/ai-analyst-agent/internal/search"
)

type fixedBackend struct {
	result *search.Result
	query  string
	index  string
}

func (b *fixedBackend) Search(_ context.Context, index, query string, _ int) (*search.Result, error) {
	b.index = index
	b.query = query
	return b.result, nil
}

func (b *fixedBackend) Index(context.Context, string, any) error { return nil }

type failingBackend struct{}

func (failingBackend) Search(context.Context, string, string, int) (*search.Result, error) {
	return nil, errors.New("connection refused")
}

func (failingBackend) Index(context.Context, string, any) error {
	return errors.New("connection refused")
}

func serveAnalyze(t *testing.T, h *AnalyzeHandler, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	e := echo.New()
	e.POST("/analyze", h.Analyze)

	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &decoded)
	}
	return rec, decoded
}

func TestAnalyzeReturnsMatchesAndSummary(t *testing.T) {
	backend := &fixedBackend{result: &search.Result{
		Total: 2,
		Hits: []search.Hit{
			{ID: "1", Source: json.RawMessage(`{"event_type": "login_failure"}`)},
			{ID: "2", Source: json.RawMessage(`{"event_type": "login_failure"}`)},
		},
	}}
	h := &AnalyzeHandler{Backend: backend, DefaultIndex: "alerts", AllowPartial: true}

	rec, body := serveAnalyze(t, h, `{"query": "failed logins today"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if backend.index != "alerts" {
		t.Fatalf("index = %q, want default", backend.index)
	}
	// Without an LLM the raw question doubles as the query string.
	if backend.query != "failed logins today" {
		t.Fatalf("query = %q", backend.query)
	}
	if body["total"] != float64(2) {
		t.Fatalf("total = %v", body["total"])
	}
	if body["summary"] == "" {
		t.Fatal("summary missing")
	}
	if body["degraded"] != nil {
		t.Fatalf("unexpected degraded flag: %v", body["degraded"])
	}
}

func TestAnalyzeDegradedModeWhenBackendDown(t *testing.T) {
	h := &AnalyzeHandler{Backend: failingBackend{}, DefaultIndex: "alerts", AllowPartial: true}

	rec, body := serveAnalyze(t, h, `{"query": "anything"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 in partial mode", rec.Code)
	}
	if body["degraded"] != true {
		t.Fatalf("degraded = %v, want true", body["degraded"])
	}
	hits, _ := body["hits"].([]any)
	if len(hits) != 0 {
		t.Fatalf("hits = %v, want empty", hits)
	}
}

func TestAnalyzeStrictModeSurfacesBackendFailure(t *testing.T) {
	h := &AnalyzeHandler{Backend: failingBackend{}, DefaultIndex: "alerts", AllowPartial: false}

	rec, _ := serveAnalyze(t, h, `{"query": "anything"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502 in strict mode", rec.Code)
	}
}

func TestAnalyzeRejectsEmptyQuery(t *testing.T) {
	h := &AnalyzeHandler{Backend: failingBackend{}, DefaultIndex: "alerts", AllowPartial: true}

	rec, _ := serveAnalyze(t, h, `{"query": "  "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
