package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrUnknownTool is returned when an invocation names a tool absent from the
// registry.
var ErrUnknownTool = errors.New("unknown tool")

// InvalidArgumentsError reports arguments failing a tool's input schema.
type InvalidArgumentsError struct {
	Tool   string
	Reason string
}

func (e *InvalidArgumentsError) Error() string {
	return fmt.Sprintf("invalid arguments for tool %s: %s", e.Tool, e.Reason)
}

// Spec describes one registry entry: the name, a catalog description, and a
// JSON Schema for the arguments. RequiresApproval forces the approval gate
// to block the tool even in auto mode; none of the built-in tools set it.
type Spec struct {
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	InputSchema      json.RawMessage `json:"input_schema"`
	RequiresApproval bool            `json:"requires_approval,omitempty"`
	Timeout          time.Duration   `json:"-"`
}

// Result is the uniform outcome of a tool invocation. Execution failures are
// recoverable: they are carried in Error with OK=false, never as a Go error.
type Result struct {
	OK        bool    `json:"ok"`
	Output    any     `json:"output,omitempty"`
	Error     string  `json:"error,omitempty"`
	ElapsedMS float64 `json:"elapsed_ms,omitempty"`
}

func failure(start time.Time, err error) Result {
	return Result{OK: false, Error: err.Error(), ElapsedMS: msSince(start)}
}

func success(start time.Time, output any) Result {
	return Result{OK: true, Output: output, ElapsedMS: msSince(start)}
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}

// Tool is a named action with schema-validated arguments. Invoke receives
// arguments that already passed schema validation.
type Tool interface {
	Spec() Spec
	Invoke(ctx context.Context, args map[string]any) Result
}
