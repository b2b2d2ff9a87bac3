package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/a-yousafzai/ai-analyst-agent/internal/agent/session"
	"github.com/a-yousafzai/ai-analyst-agent/internal/agent/tools"
	"github.com/a-yousafzai/ai-analyst-agent/provider"
)

const (
	// fallbackTailRunes bounds how much of the latest request the
	// deterministic fallback echoes back.
	fallbackTailRunes = 300

	// payloadPreviewBytes bounds how much of a tool payload is shown to the
	// model in the transcript.
	payloadPreviewBytes = 1200

	defaultContextWindow = 10
)

// Planner turns session history into the next Decision. When no provider is
// configured, or the provider misbehaves, it degrades to a deterministic
// fallback instead of failing the step.
type Planner struct {
	provider      provider.Provider
	contextWindow int
	logger        *log.Logger
}

// New builds a Planner. provider may be nil, in which case every decision is
// produced by the fallback. contextWindow caps how many trailing messages are
// sent to the model; non-positive values use the default.
func New(p provider.Provider, contextWindow int) *Planner {
	if contextWindow <= 0 {
		contextWindow = defaultContextWindow
	}
	return &Planner{
		provider:      p,
		contextWindow: contextWindow,
		logger:        log.New(log.Writer(), "[PLANNER] ", log.LstdFlags),
	}
}

// Decide returns the next action for the session. The error, when non-nil,
// describes why the model's output was discarded; the returned Decision is
// still usable because protocol violations are absorbed by the fallback.
func (p *Planner) Decide(ctx context.Context, history []session.Message, specs []tools.Spec) (Decision, error) {
	if p.provider == nil {
		return Fallback(history, "no language model configured"), nil
	}

	system := buildSystemPrompt(specs)
	prompt := buildTranscript(history, p.contextWindow)

	raw, err := p.provider.Complete(ctx, system, prompt)
	if err != nil {
		p.logger.Printf("completion failed, using fallback: %v", err)
		return Fallback(history, "language model unavailable"), fmt.Errorf("planner completion: %w", err)
	}

	decision, err := DecodeDecision(raw)
	if err != nil {
		p.logger.Printf("undecodable decision, using fallback: %v", err)
		return Fallback(history, "language model returned a malformed decision"), fmt.Errorf("planner decision: %w", err)
	}
	return decision, nil
}

// Fallback produces a deterministic final answer from the most recent user
// message. It never invokes tools, so a degraded system can still converse.
func Fallback(history []session.Message, reason string) Decision {
	var request string
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == session.RoleUser {
			request = history[i].Content
			break
		}
	}

	var answer string
	if request == "" {
		answer = "No actionable request found in this session."
	} else {
		answer = fmt.Sprintf("Automated analysis is unavailable (%s). Request received: %s", reason, tailRunes(request, fallbackTailRunes))
	}
	return Decision{
		Thought: "deterministic fallback: " + reason,
		Final:   &FinalAnswer{Answer: answer},
		Source:  "fallback",
	}
}

// buildSystemPrompt describes the decision protocol and the available tools.
func buildSystemPrompt(specs []tools.Spec) string {
	var b strings.Builder
	b.WriteString("You are a security analyst assistant investigating alerts and logs.\n")
	b.WriteString("Each turn, respond with exactly one JSON object and nothing else:\n")
	b.WriteString(`{"thought": "<short reasoning>", "action": "<tool name or final>", "input": {<arguments>}}` + "\n")
	b.WriteString(`Use {"action": "final", "input": {"answer": "<your answer>"}} when the investigation is complete.` + "\n\n")

	b.WriteString("Available tools:\n")
	for _, spec := range specs {
		fmt.Fprintf(&b, "- %s: %s\n", spec.Name, spec.Description)
		if len(spec.InputSchema) > 0 {
			fmt.Fprintf(&b, "  input schema: %s\n", compactJSON(spec.InputSchema))
		}
	}
	return b.String()
}

// buildTranscript renders the trailing window of the dialogue as one line of
// JSON per message, oldest first.
func buildTranscript(history []session.Message, window int) string {
	if len(history) > window {
		history = history[len(history)-window:]
	}

	var b strings.Builder
	b.WriteString("Conversation so far:\n")
	for _, m := range history {
		line := map[string]any{
			"role":    string(m.Role),
			"content": m.Content,
		}
		if m.Name != "" {
			line["name"] = m.Name
		}
		if len(m.Payload) > 0 {
			line["payload"] = previewPayload(m.Payload)
		}
		enc, err := json.Marshal(line)
		if err != nil {
			continue
		}
		b.Write(enc)
		b.WriteByte('\n')
	}
	b.WriteString("Decide the next action.")
	return b.String()
}

func previewPayload(payload json.RawMessage) string {
	s := string(payload)
	if len(s) > payloadPreviewBytes {
		s = s[:payloadPreviewBytes] + "... (truncated)"
	}
	return s
}

func compactJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

func tailRunes(s string, n int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= n {
		return string(runes)
	}
	return "..." + string(runes[len(runes)-n:])
}
