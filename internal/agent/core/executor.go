package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/a-yousafzai/ai-analyst-agent/internal/agent/session"
	"github.com/a-yousafzai/ai-analyst-agent/internal/agent/telemetry"
	"github.com/a-yousafzai/ai-analyst-agent/internal/agent/tools"
)

// executor turns a tool invocation into a recorded tool message. Every
// failure mode lands inside the Result so a bad invocation never aborts the
// session: the planner sees the error on the next step and can route around
// it.
type executor struct {
	registry *tools.Registry
	tele     *telemetry.Telemetry
}

// execute runs one invocation and renders it as a session message. The
// violation return carries planning-protocol problems (unknown tool, schema
// rejection) so the caller can note them on the session; the message is valid
// either way.
func (e *executor) execute(ctx context.Context, name string, args map[string]any) (msg session.Message, result tools.Result, violation error) {
	start := time.Now()
	result, err := e.registry.Invoke(ctx, name, args)
	if err != nil {
		// Contract violations never reach the tool, so the result is
		// synthesized here.
		result = tools.Result{OK: false, Error: err.Error()}
		switch {
		case errors.Is(err, tools.ErrUnknownTool):
			violation = fmt.Errorf("planner chose unknown tool %q", name)
		default:
			var badArgs *tools.InvalidArgumentsError
			if errors.As(err, &badArgs) {
				violation = fmt.Errorf("planner produced invalid arguments for %q: %s", name, badArgs.Reason)
			} else {
				violation = err
			}
		}
	}

	outcome := "ok"
	if !result.OK {
		outcome = "error"
	}
	e.tele.ToolInvoked(name, outcome, time.Since(start).Seconds())

	payload, perr := json.Marshal(result)
	if perr != nil {
		payload, _ = json.Marshal(tools.Result{OK: false, Error: "unencodable tool output"})
	}
	msg = session.Message{Role: session.RoleTool, Name: name, Payload: payload}
	return msg, result, violation
}
