package session

import (
	"fmt"
	"sort"
	"strings"
)

// CompactOptions bound history growth before planner context is built.
type CompactOptions struct {
	// Threshold is the message count that triggers compaction.
	Threshold int
	// KeepRecent messages are always preserved verbatim.
	KeepRecent int
}

// DefaultCompactOptions mirrors the config defaults.
var DefaultCompactOptions = CompactOptions{Threshold: 40, KeepRecent: 12}

// Compact collapses older history into a single summarizing agent message
// once the log exceeds opts.Threshold. The first user message (the original
// goal), the most recent user message and the opts.KeepRecent newest entries
// survive verbatim. Returns the input slice unchanged when under threshold.
func Compact(msgs []Message, opts CompactOptions) []Message {
	if opts.Threshold <= 0 {
		opts = DefaultCompactOptions
	}
	if opts.KeepRecent <= 0 || opts.KeepRecent >= opts.Threshold {
		opts.KeepRecent = DefaultCompactOptions.KeepRecent
	}
	if len(msgs) <= opts.Threshold {
		return msgs
	}

	cut := len(msgs) - opts.KeepRecent
	head := msgs[:cut]
	tail := msgs[cut:]

	var kept []Message
	firstGoal := firstUserIndex(msgs)
	if firstGoal >= 0 && firstGoal < cut {
		kept = append(kept, msgs[firstGoal])
	}
	// The newest user goal must never be dropped silently.
	lastGoal := lastUserIndex(msgs)
	if lastGoal >= 0 && lastGoal < cut && lastGoal != firstGoal {
		kept = append(kept, msgs[lastGoal])
	}

	summary := summarize(head)
	out := make([]Message, 0, len(kept)+1+len(tail))
	out = append(out, kept...)
	out = append(out, Message{Role: RoleAgent, Content: summary})
	out = append(out, tail...)
	return out
}

func firstUserIndex(msgs []Message) int {
	for i, m := range msgs {
		if m.Role == RoleUser {
			return i
		}
	}
	return -1
}

func lastUserIndex(msgs []Message) int {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleUser {
			return i
		}
	}
	return -1
}

func summarize(msgs []Message) string {
	counts := map[Role]int{}
	toolCounts := map[string]int{}
	for _, m := range msgs {
		counts[m.Role]++
		if m.Role == RoleTool && m.Name != "" {
			toolCounts[m.Name]++
		}
	}
	var tools []string
	for name, n := range toolCounts {
		tools = append(tools, fmt.Sprintf("%s x%d", name, n))
	}
	sort.Strings(tools)

	var b strings.Builder
	fmt.Fprintf(&b, "Earlier context compacted: %d messages (%d user, %d agent, %d tool).",
		len(msgs), counts[RoleUser], counts[RoleAgent], counts[RoleTool])
	if len(tools) > 0 {
		fmt.Fprintf(&b, " Tools used: %s.", strings.Join(tools, ", "))
	}
	return b.String()
}
