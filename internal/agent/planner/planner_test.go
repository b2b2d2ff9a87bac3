package planner

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/a-yousafzai/ai-analyst-agent/internal/agent/session"
	"github.com/a-yousafzai/ai-analyst-agent/internal/agent/tools"
)

type scriptedProvider struct {
	response string
	err      error
	system   string
	prompt   string
}

func (s *scriptedProvider) Complete(_ context.Context, system, prompt string) (string, error) {
	s.system = system
	s.prompt = prompt
	return s.response, s.err
}

func history(contents ...string) []session.Message {
	msgs := make([]session.Message, 0, len(contents))
	for _, c := range contents {
		msgs = append(msgs, session.Message{Role: session.RoleUser, Content: c})
	}
	return msgs
}

func TestDecodeDecisionToolInvocation(t *testing.T) {
	d, err := DecodeDecision(`{"thought": "check recent failures", "action": "search", "input": {"query": "event_type:login_failure", "size": 5}}`)
	if err != nil {
		t.Fatalf("DecodeDecision: %v", err)
	}
	if d.IsFinal() {
		t.Fatal("expected tool invocation, got final")
	}
	if d.Invocation.Tool != "search" {
		t.Fatalf("tool = %q, want search", d.Invocation.Tool)
	}
	if d.Invocation.Args["query"] != "event_type:login_failure" {
		t.Fatalf("unexpected args: %v", d.Invocation.Args)
	}
	if d.Thought != "check recent failures" {
		t.Fatalf("thought = %q", d.Thought)
	}
	if d.Source != "llm" {
		t.Fatalf("source = %q, want llm", d.Source)
	}
}

func TestDecodeDecisionFinal(t *testing.T) {
	d, err := DecodeDecision(`{"action": "final", "input": {"answer": "three failed logins from 10.0.0.5"}}`)
	if err != nil {
		t.Fatalf("DecodeDecision: %v", err)
	}
	if !d.IsFinal() {
		t.Fatal("expected final decision")
	}
	if d.Final.Answer != "three failed logins from 10.0.0.5" {
		t.Fatalf("answer = %q", d.Final.Answer)
	}
}

func TestDecodeDecisionUnwrapsProseAndFences(t *testing.T) {
	cases := []struct {
		name     string
		response string
	}{
		{"fenced", "```json\n{\"action\": \"sleep\", \"input\": {\"seconds\": 2}}\n```"},
		{"prose", "Sure, here's my plan: {\"action\": \"sleep\", \"input\": {\"seconds\": 2}} Hope that helps."},
		{"nested braces in strings", `{"thought": "query uses {curly} text", "action": "sleep", "input": {"seconds": 2}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := DecodeDecision(tc.response)
			if err != nil {
				t.Fatalf("DecodeDecision: %v", err)
			}
			if d.Invocation == nil || d.Invocation.Tool != "sleep" {
				t.Fatalf("unexpected decision: %+v", d)
			}
		})
	}
}

func TestDecodeDecisionRejectsProtocolViolations(t *testing.T) {
	cases := []struct {
		name     string
		response string
	}{
		{"no object", "I think we should search the logs."},
		{"missing action", `{"thought": "hmm"}`},
		{"final without answer", `{"action": "final", "input": {}}`},
		{"final with empty answer", `{"action": "final", "input": {"answer": "   "}}`},
		{"unknown field", `{"action": "search", "verdict": "yes"}`},
		{"truncated", `{"action": "search", "input": {"query": "x"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DecodeDecision(tc.response); err == nil {
				t.Fatal("expected decode error")
			}
		})
	}
}

func TestDecideNoProviderUsesFallback(t *testing.T) {
	p := New(nil, 10)
	d, err := p.Decide(context.Background(), history("why did host-7 reboot?"), nil)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if !d.IsFinal() {
		t.Fatal("fallback must produce a final decision")
	}
	if d.Source != "fallback" {
		t.Fatalf("source = %q, want fallback", d.Source)
	}
	if !strings.Contains(d.Final.Answer, "why did host-7 reboot?") {
		t.Fatalf("answer should echo the request, got %q", d.Final.Answer)
	}
}

func TestDecideProviderErrorFallsBack(t *testing.T) {
	fake := &scriptedProvider{err: errors.New("upstream 503")}
	p := New(fake, 10)

	d, err := p.Decide(context.Background(), history("investigate alert A-99"), nil)
	if err == nil {
		t.Fatal("expected a reported planner error")
	}
	if !d.IsFinal() || d.Source != "fallback" {
		t.Fatalf("expected fallback final decision, got %+v", d)
	}
}

func TestDecideMalformedResponseFallsBack(t *testing.T) {
	fake := &scriptedProvider{response: "let me think about this one..."}
	p := New(fake, 10)

	d, err := p.Decide(context.Background(), history("investigate alert A-99"), nil)
	if err == nil {
		t.Fatal("expected a reported planner error")
	}
	if !d.IsFinal() || d.Source != "fallback" {
		t.Fatalf("expected fallback final decision, got %+v", d)
	}
}

func TestDecidePromptsIncludeToolsAndWindowedHistory(t *testing.T) {
	fake := &scriptedProvider{response: `{"action": "final", "input": {"answer": "done"}}`}
	p := New(fake, 2)

	specs := []tools.Spec{{
		Name:        "search",
		Description: "query the event index",
	}}
	_, err := p.Decide(context.Background(), history("first", "second", "third"), specs)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}

	if !strings.Contains(fake.system, "search: query the event index") {
		t.Fatalf("system prompt missing tool listing:\n%s", fake.system)
	}
	if strings.Contains(fake.prompt, "first") {
		t.Fatalf("history window should drop oldest messages:\n%s", fake.prompt)
	}
	if !strings.Contains(fake.prompt, "second") || !strings.Contains(fake.prompt, "third") {
		t.Fatalf("history window missing recent messages:\n%s", fake.prompt)
	}
}

func TestFallbackTruncatesLongRequests(t *testing.T) {
	long := strings.Repeat("event ", 200)
	d := Fallback(history(long), "no language model configured")
	if !d.IsFinal() {
		t.Fatal("expected final decision")
	}
	if len([]rune(d.Final.Answer)) > fallbackTailRunes+120 {
		t.Fatalf("answer too long: %d runes", len([]rune(d.Final.Answer)))
	}
	if !strings.Contains(d.Final.Answer, "...") {
		t.Fatal("truncated request should be marked with an ellipsis")
	}
}

func TestFallbackWithoutUserMessage(t *testing.T) {
	d := Fallback(nil, "no language model configured")
	if !d.IsFinal() || d.Final.Answer == "" {
		t.Fatalf("expected a generic final answer, got %+v", d)
	}
}
