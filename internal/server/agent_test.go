package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/a-yousafzai/ai-analyst-agent/config"
	"github.com/a-yousafzai/ai-analyst-agent/internal/agent/core"
	"github.com/a-yousafzai/ai-analyst-agent/internal/agent/planner"
	"github.com/a-yousafzai/ai-analyst-agent/internal/agent/session/inmemory"
	"github.com/a-yousafzai/ai-analyst-agent/internal/agent/tools"
)

type fixedProvider struct{ response string }

func (p fixedProvider) Complete(context.Context, string, string) (string, error) {
	return p.response, nil
}

type echoTool struct{}

func (echoTool) Spec() tools.Spec {
	return tools.Spec{
		Name:        "search",
		Description: "query the event index",
		InputSchema: json.RawMessage(`{"type": "object"}`),
	}
}

func (echoTool) Invoke(context.Context, map[string]any) tools.Result {
	return tools.Result{OK: true, Output: map[string]any{"total": 0}}
}

func testRouter(t *testing.T, pl *planner.Planner) *echo.Echo {
	t.Helper()
	registry, err := tools.NewRegistry(echoTool{})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	cfg := &config.Config{
		Agent: config.AgentConfig{
			DefaultApprovalMode: "auto",
			DefaultMaxSteps:     5,
			CompactThreshold:    40,
			CompactKeepRecent:   12,
			PlannerContext:      10,
		},
	}
	orch := core.NewOrchestrator(cfg.Agent, inmemory.New(), registry, pl, nil)
	analyze := &AnalyzeHandler{Backend: failingBackend{}, DefaultIndex: "alerts", AllowPartial: true}
	return newRouter(cfg, orch, analyze, nil)
}

func doJSON(t *testing.T, e *echo.Echo, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("decode %s %s response: %v\n%s", method, path, err, rec.Body.String())
		}
	}
	return rec, decoded
}

func createSession(t *testing.T, e *echo.Echo, mode string) string {
	t.Helper()
	rec, body := doJSON(t, e, http.MethodPost, "/agent/session", `{"approval_mode": "`+mode+`"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session status = %d: %s", rec.Code, rec.Body.String())
	}
	id, _ := body["id"].(string)
	if id == "" {
		t.Fatalf("create session returned no id: %v", body)
	}
	return id
}

func TestManualApprovalFlowOverHTTP(t *testing.T) {
	pl := planner.New(fixedProvider{response: `{"thought": "look", "action": "search", "input": {"query": "ssh"}}`}, 10)
	e := testRouter(t, pl)

	id := createSession(t, e, "manual")

	rec, _ := doJSON(t, e, http.MethodPost, "/agent/"+id+"/message", `{"content": "Investigate ssh brute force in last 24h"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("post message status = %d: %s", rec.Code, rec.Body.String())
	}

	rec, body := doJSON(t, e, http.MethodPost, "/agent/"+id+"/step", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("step status = %d: %s", rec.Code, rec.Body.String())
	}
	if body["status"] != "awaiting_approval" {
		t.Fatalf("step body status = %v", body["status"])
	}

	// Stepping again while blocked is a conflict.
	rec, body = doJSON(t, e, http.MethodPost, "/agent/"+id+"/step", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("blocked step status = %d", rec.Code)
	}
	if body["kind"] != "action_pending" {
		t.Fatalf("blocked step kind = %v", body["kind"])
	}

	rec, body = doJSON(t, e, http.MethodPost, "/agent/"+id+"/approve", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("approve status = %d: %s", rec.Code, rec.Body.String())
	}
	if body["status"] != "executed" {
		t.Fatalf("approve body status = %v", body["status"])
	}
	if body["result"] == nil {
		t.Fatal("approve response missing result payload")
	}
}

func TestFallbackRunOverHTTP(t *testing.T) {
	e := testRouter(t, planner.New(nil, 10))

	id := createSession(t, e, "auto")
	doJSON(t, e, http.MethodPost, "/agent/"+id+"/message", `{"content": "why did host-7 reboot?"}`)

	rec, body := doJSON(t, e, http.MethodPost, "/agent/"+id+"/run", `{"max_steps": 1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("run status = %d: %s", rec.Code, rec.Body.String())
	}
	if body["status"] != "final" {
		t.Fatalf("run body status = %v", body["status"])
	}
}

func TestRunRejectsNonPositiveMaxSteps(t *testing.T) {
	e := testRouter(t, planner.New(nil, 10))
	id := createSession(t, e, "auto")
	doJSON(t, e, http.MethodPost, "/agent/"+id+"/message", `{"content": "hi"}`)

	rec, body := doJSON(t, e, http.MethodPost, "/agent/"+id+"/run", `{"max_steps": 0}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("run status = %d, want 400", rec.Code)
	}
	if body["kind"] != "invalid_argument" {
		t.Fatalf("run kind = %v", body["kind"])
	}
}

func TestErrorKindsMapToStatusCodes(t *testing.T) {
	e := testRouter(t, planner.New(nil, 10))

	rec, body := doJSON(t, e, http.MethodGet, "/agent/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown session status = %d, want 404", rec.Code)
	}
	if body["kind"] != "session_not_found" {
		t.Fatalf("unknown session kind = %v", body["kind"])
	}

	id := createSession(t, e, "auto")
	rec, body = doJSON(t, e, http.MethodPost, "/agent/"+id+"/approve", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("approve without pending status = %d, want 409", rec.Code)
	}
	if body["kind"] != "no_pending_action" {
		t.Fatalf("approve kind = %v", body["kind"])
	}

	rec, body = doJSON(t, e, http.MethodPost, "/agent/session", `{"approval_mode": "sometimes"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad mode status = %d, want 400", rec.Code)
	}
	if body["kind"] != "invalid_argument" {
		t.Fatalf("bad mode kind = %v", body["kind"])
	}
}

func TestListToolsCatalog(t *testing.T) {
	e := testRouter(t, planner.New(nil, 10))

	rec, body := doJSON(t, e, http.MethodGet, "/agent/tools", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list tools status = %d", rec.Code)
	}
	list, ok := body["tools"].([]any)
	if !ok || len(list) == 0 {
		t.Fatalf("tool catalog empty: %v", body)
	}
	first, _ := list[0].(map[string]any)
	if first["name"] == "" || first["input_schema"] == nil {
		t.Fatalf("tool entry missing name or schema: %v", first)
	}
}

func TestMessageRoundTripOverHTTP(t *testing.T) {
	e := testRouter(t, planner.New(nil, 10))
	id := createSession(t, e, "auto")

	doJSON(t, e, http.MethodPost, "/agent/"+id+"/message", `{"content": "first"}`)
	doJSON(t, e, http.MethodPost, "/agent/"+id+"/message", `{"content": "second"}`)

	rec, body := doJSON(t, e, http.MethodGet, "/agent/"+id, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get session status = %d", rec.Code)
	}
	msgs, _ := body["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	last, _ := msgs[1].(map[string]any)
	if last["content"] != "second" {
		t.Fatalf("last message = %v", last)
	}
}
