package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/a-yousafzai/ai-analyst-agent/internal/search"
)

type fakeBackend struct {
	lastIndex string
	lastQuery string
	lastSize  int
	result    *search.Result
	err       error
}

func (f *fakeBackend) Search(ctx context.Context, index, query string, size int) (*search.Result, error) {
	f.lastIndex, f.lastQuery, f.lastSize = index, query, size
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeBackend) Index(ctx context.Context, index string, doc any) error { return nil }

func TestSearchToolDefaultsAndClamping(t *testing.T) {
	fb := &fakeBackend{result: &search.Result{Total: 1, Hits: []search.Hit{{ID: "a"}}}}
	st := &SearchTool{Backend: fb, DefaultIndex: "alerts-enriched", MaxResults: 50}

	res := st.Invoke(context.Background(), map[string]any{"query": "message:ssh", "size": float64(500)})
	if !res.OK {
		t.Fatalf("expected success, got %+v", res)
	}
	if fb.lastIndex != "alerts-enriched" {
		t.Fatalf("expected default index, got %s", fb.lastIndex)
	}
	if fb.lastSize != 50 {
		t.Fatalf("expected size clamped to 50, got %d", fb.lastSize)
	}
	out := res.Output.(map[string]any)
	if out["total"] != 1 {
		t.Fatalf("unexpected output: %+v", out)
	}
}

func TestSearchToolBackendFailureIsRecoverable(t *testing.T) {
	fb := &fakeBackend{err: errors.New("connection refused")}
	st := &SearchTool{Backend: fb, DefaultIndex: "alerts-enriched", MaxResults: 50}

	res := st.Invoke(context.Background(), map[string]any{"query": "message:ssh"})
	if res.OK {
		t.Fatalf("expected failure result, got %+v", res)
	}
	if res.Error == "" {
		t.Fatalf("expected error message in result")
	}
}

func TestSearchToolExplicitIndex(t *testing.T) {
	fb := &fakeBackend{result: &search.Result{}}
	st := &SearchTool{Backend: fb, DefaultIndex: "alerts-enriched", MaxResults: 50}
	res := st.Invoke(context.Background(), map[string]any{"query": "host:srv-int", "index": "alerts-raw"})
	if !res.OK {
		t.Fatalf("expected success, got %+v", res)
	}
	if fb.lastIndex != "alerts-raw" {
		t.Fatalf("expected explicit index, got %s", fb.lastIndex)
	}
}
