package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

type echoTool struct {
	name    string
	timeout time.Duration
}

func (t *echoTool) Spec() Spec {
	return Spec{
		Name:        t.name,
		Description: "echoes its value argument",
		InputSchema: json.RawMessage(`{
  "type": "object",
  "properties": {"value": {"type": "string", "minLength": 1}},
  "required": ["value"],
  "additionalProperties": false
}`),
		Timeout: t.timeout,
	}
}

func (t *echoTool) Invoke(ctx context.Context, args map[string]any) Result {
	return Result{OK: true, Output: args["value"]}
}

func TestRegistryListStableOrder(t *testing.T) {
	r, err := NewRegistry(&echoTool{name: "beta"}, &echoTool{name: "alpha"})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	specs := r.List()
	if len(specs) != 2 || specs[0].Name != "beta" || specs[1].Name != "alpha" {
		t.Fatalf("expected registration order, got %+v", specs)
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	if _, err := NewRegistry(&echoTool{name: "a"}, &echoTool{name: "a"}); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
}

func TestInvokeUnknownTool(t *testing.T) {
	r, err := NewRegistry(&echoTool{name: "echo"})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	_, err = r.Invoke(context.Background(), "missing", nil)
	if !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("expected ErrUnknownTool, got %v", err)
	}
}

func TestInvokeInvalidArguments(t *testing.T) {
	r, err := NewRegistry(&echoTool{name: "echo"})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	cases := []map[string]any{
		nil,                     // missing required field
		{"value": 42},           // wrong type
		{"value": ""},           // constraint violation
		{"value": "x", "y": 1},  // unexpected field
		{"value": "x", "z": ""}, // unexpected field
	}
	for i, args := range cases {
		_, err := r.Invoke(context.Background(), "echo", args)
		var invalid *InvalidArgumentsError
		if !errors.As(err, &invalid) {
			t.Errorf("case %d: expected InvalidArgumentsError, got %v", i, err)
		}
	}
}

func TestInvokeValidArguments(t *testing.T) {
	r, err := NewRegistry(&echoTool{name: "echo"})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	res, err := r.Invoke(context.Background(), "echo", map[string]any{"value": "hello"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !res.OK || res.Output != "hello" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

type hangTool struct{}

func (t *hangTool) Spec() Spec {
	return Spec{
		Name:        "hang",
		Description: "blocks until cancelled",
		InputSchema: json.RawMessage(`{"type": "object"}`),
		Timeout:     20 * time.Millisecond,
	}
}

func (t *hangTool) Invoke(ctx context.Context, args map[string]any) Result {
	<-ctx.Done()
	return Result{OK: false, Error: ctx.Err().Error()}
}

func TestInvokeAppliesToolTimeout(t *testing.T) {
	r, err := NewRegistry(&hangTool{})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	start := time.Now()
	res, err := r.Invoke(context.Background(), "hang", nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if res.OK {
		t.Fatalf("expected timed-out invocation to fail")
	}
	if time.Since(start) > time.Second {
		t.Fatalf("tool timeout not applied")
	}
}
