package tools

import (
	"context"
	"encoding/json"
	"time"
)

const sleepSchema = `{
  "type": "object",
  "properties": {
    "seconds": {"type": "number", "exclusiveMinimum": 0}
  },
  "required": ["seconds"],
  "additionalProperties": false
}`

// SleepTool lets the planner back off between polling attempts. Durations
// are capped at Max so a step can never be suspended indefinitely.
type SleepTool struct {
	Max time.Duration
}

func (t *SleepTool) Spec() Spec {
	return Spec{
		Name:        "sleep",
		Description: "Sleep for N seconds to wait for data or rate limits (capped).",
		InputSchema: json.RawMessage(sleepSchema),
	}
}

func (t *SleepTool) Invoke(ctx context.Context, args map[string]any) Result {
	start := time.Now()
	seconds, _ := args["seconds"].(float64)
	d := time.Duration(seconds * float64(time.Second))
	max := t.Max
	if max <= 0 {
		max = 30 * time.Second
	}
	capped := false
	if d > max {
		d = max
		capped = true
	}

	select {
	case <-time.After(d):
	case <-ctx.Done():
		return failure(start, ctx.Err())
	}
	return success(start, map[string]any{
		"slept_seconds": d.Seconds(),
		"capped":        capped,
	})
}
