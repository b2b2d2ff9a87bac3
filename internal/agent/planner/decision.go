package planner

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// FinalAction is the reserved action name that ends a session instead of
// invoking a tool.
const FinalAction = "final"

//go:embed decision_schema.json
var decisionSchemaJSON string

var decisionSchema = jsonschema.MustCompileString("decision.schema.json", decisionSchemaJSON)

// ToolInvocation is a request to run one tool with validated-later arguments.
type ToolInvocation struct {
	Tool string
	Args map[string]any
}

// FinalAnswer closes the investigation with a free-text answer.
type FinalAnswer struct {
	Answer string
}

// Decision is the planner's verdict for a single step. Exactly one of
// Invocation and Final is set.
type Decision struct {
	Thought    string
	Invocation *ToolInvocation
	Final      *FinalAnswer

	// Source records where the decision came from: "llm" or "fallback".
	Source string
}

// IsFinal reports whether the decision ends the session.
func (d Decision) IsFinal() bool { return d.Final != nil }

// rawDecision is the wire shape the model is asked to produce.
type rawDecision struct {
	Thought string         `json:"thought,omitempty"`
	Action  string         `json:"action"`
	Input   map[string]any `json:"input,omitempty"`
}

// DecodeDecision parses a model response into a Decision. The response may
// wrap the JSON object in prose or a code fence; the first balanced object is
// extracted and validated against the decision schema. Any failure here is a
// protocol violation on the model's side, never the caller's.
func DecodeDecision(response string) (Decision, error) {
	blob, err := extractJSONObject(response)
	if err != nil {
		return Decision{}, fmt.Errorf("locate decision object: %w", err)
	}

	var generic any
	if err := json.Unmarshal([]byte(blob), &generic); err != nil {
		return Decision{}, fmt.Errorf("parse decision object: %w", err)
	}
	if err := decisionSchema.Validate(generic); err != nil {
		return Decision{}, fmt.Errorf("decision schema: %w", err)
	}

	var raw rawDecision
	if err := json.Unmarshal([]byte(blob), &raw); err != nil {
		return Decision{}, fmt.Errorf("decode decision object: %w", err)
	}

	d := Decision{Thought: strings.TrimSpace(raw.Thought), Source: "llm"}
	if raw.Action == FinalAction {
		answer, _ := raw.Input["answer"].(string)
		answer = strings.TrimSpace(answer)
		if answer == "" {
			return Decision{}, fmt.Errorf("final decision carries empty answer")
		}
		d.Final = &FinalAnswer{Answer: answer}
		return d, nil
	}

	args := raw.Input
	if args == nil {
		args = map[string]any{}
	}
	d.Invocation = &ToolInvocation{Tool: raw.Action, Args: args}
	return d, nil
}
