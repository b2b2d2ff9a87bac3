package session

import (
	"fmt"
	"strings"
	"testing"
)

func history(n int) []Message {
	msgs := []Message{{Role: RoleUser, Content: "Investigate ssh brute force in last 24h"}}
	for len(msgs) < n {
		msgs = append(msgs, Message{Role: RoleTool, Name: "search", Content: fmt.Sprintf("result %d", len(msgs))})
		msgs = append(msgs, Message{Role: RoleAgent, Content: fmt.Sprintf("thought %d", len(msgs))})
	}
	return msgs[:n]
}

func TestCompactUnderThresholdIsNoop(t *testing.T) {
	msgs := history(10)
	out := Compact(msgs, CompactOptions{Threshold: 40, KeepRecent: 12})
	if len(out) != 10 {
		t.Fatalf("expected history untouched, got %d messages", len(out))
	}
}

func TestCompactPreservesGoalAndRecent(t *testing.T) {
	msgs := history(50)
	out := Compact(msgs, CompactOptions{Threshold: 40, KeepRecent: 12})

	if len(out) >= len(msgs) {
		t.Fatalf("expected compaction to shrink history: %d -> %d", len(msgs), len(out))
	}
	if out[0].Role != RoleUser || !strings.Contains(out[0].Content, "ssh brute force") {
		t.Fatalf("first user goal must survive compaction, got %+v", out[0])
	}

	// The 12 newest entries must be verbatim.
	tail := out[len(out)-12:]
	orig := msgs[len(msgs)-12:]
	for i := range tail {
		if tail[i].Content != orig[i].Content {
			t.Fatalf("recent message %d altered: got %q want %q", i, tail[i].Content, orig[i].Content)
		}
	}

	// Exactly one summarizing entry between kept goal and recent tail.
	var summaries int
	for _, m := range out {
		if m.Role == RoleAgent && strings.Contains(m.Content, "compacted") {
			summaries++
		}
	}
	if summaries != 1 {
		t.Fatalf("expected exactly one summary message, got %d", summaries)
	}
}

func TestCompactKeepsNewestUserGoalOutsideTail(t *testing.T) {
	msgs := history(30)
	msgs = append(msgs, Message{Role: RoleUser, Content: "also check failed sudo attempts"})
	// Bury the newest goal under tool chatter deeper than the keep-recent window.
	for i := 0; i < 20; i++ {
		msgs = append(msgs, Message{Role: RoleTool, Name: "search", Content: fmt.Sprintf("r%d", i)})
	}

	out := Compact(msgs, CompactOptions{Threshold: 40, KeepRecent: 12})
	var found bool
	for _, m := range out {
		if m.Role == RoleUser && strings.Contains(m.Content, "failed sudo") {
			found = true
		}
	}
	if !found {
		t.Fatalf("newest user goal was dropped by compaction")
	}
}

func TestCompactSummaryMentionsTools(t *testing.T) {
	msgs := history(50)
	out := Compact(msgs, CompactOptions{Threshold: 40, KeepRecent: 12})
	var summary string
	for _, m := range out {
		if m.Role == RoleAgent && strings.Contains(m.Content, "compacted") {
			summary = m.Content
		}
	}
	if !strings.Contains(summary, "search") {
		t.Fatalf("summary should mention tools used, got %q", summary)
	}
}
