package session

import (
	"encoding/json"
	"fmt"
	"time"
)

// ApprovalMode controls whether planned tool invocations execute immediately
// or wait for explicit confirmation. Immutable after session creation.
type ApprovalMode string

const (
	ApprovalAuto   ApprovalMode = "auto"
	ApprovalManual ApprovalMode = "manual"
)

// ParseApprovalMode validates a caller-provided mode, defaulting empty input
// to the given fallback.
func ParseApprovalMode(s string, fallback ApprovalMode) (ApprovalMode, error) {
	switch ApprovalMode(s) {
	case "":
		return fallback, nil
	case ApprovalAuto:
		return ApprovalAuto, nil
	case ApprovalManual:
		return ApprovalManual, nil
	default:
		return "", fmt.Errorf("invalid approval mode %q (want auto or manual)", s)
	}
}

// Role identifies the author of a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
	RoleTool  Role = "tool"
)

// Message is one entry in a session's ordered event log. Tool messages carry
// their structured result in Payload; other roles use Content.
type Message struct {
	Role      Role            `json:"role"`
	Name      string          `json:"name,omitempty"`
	Content   string          `json:"content,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// PendingAction is a planned tool invocation blocked on approval.
type PendingAction struct {
	SessionID string         `json:"session_id"`
	Tool      string         `json:"tool"`
	Args      map[string]any `json:"args"`
	Thought   string         `json:"thought,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Session owns an ordered message log and at most one pending action.
// Mutations must go through the helpers below so the done/pending invariant
// cannot be broken.
type Session struct {
	ID           string         `json:"id"`
	ApprovalMode ApprovalMode   `json:"approval_mode"`
	Messages     []Message      `json:"messages"`
	Pending      *PendingAction `json:"pending_action,omitempty"`
	Done         bool           `json:"done"`
	LastError    string         `json:"last_error,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// New creates an empty session.
func New(id string, mode ApprovalMode) *Session {
	now := time.Now().UTC()
	return &Session{ID: id, ApprovalMode: mode, CreatedAt: now, UpdatedAt: now}
}

// Append adds a message to the end of the log.
func (s *Session) Append(msg Message) {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	s.Messages = append(s.Messages, msg)
	s.UpdatedAt = msg.CreatedAt
}

// SetPending stores the blocked action. It fails if the session is finished
// or an action is already pending.
func (s *Session) SetPending(p *PendingAction) error {
	if s.Done {
		return fmt.Errorf("session %s is done", s.ID)
	}
	if s.Pending != nil {
		return fmt.Errorf("session %s already has a pending action", s.ID)
	}
	p.SessionID = s.ID
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	s.Pending = p
	s.UpdatedAt = p.CreatedAt
	return nil
}

// ClearPending drops the pending action, if any.
func (s *Session) ClearPending() {
	s.Pending = nil
	s.UpdatedAt = time.Now().UTC()
}

// MarkDone finalises the session. A pending action must be consumed or
// discarded first.
func (s *Session) MarkDone() error {
	if s.Pending != nil {
		return fmt.Errorf("session %s has a pending action", s.ID)
	}
	s.Done = true
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// Clone returns a deep copy, keeping store partitions exclusively owned by
// their callers.
func (s *Session) Clone() *Session {
	out := *s
	out.Messages = make([]Message, len(s.Messages))
	for i, m := range s.Messages {
		out.Messages[i] = m
		if m.Payload != nil {
			out.Messages[i].Payload = append(json.RawMessage(nil), m.Payload...)
		}
	}
	if s.Pending != nil {
		p := *s.Pending
		p.Args = cloneArgs(s.Pending.Args)
		out.Pending = &p
	}
	return &out
}

// SnapshotTail caps the number of messages reported in API responses.
const SnapshotTail = 30

// Snapshot is the caller-facing view of a session: a bounded message tail
// plus the full message count.
type Snapshot struct {
	ID           string         `json:"id"`
	ApprovalMode ApprovalMode   `json:"approval_mode"`
	Messages     []Message      `json:"messages"`
	MessageCount int            `json:"message_count"`
	Pending      *PendingAction `json:"pending_action,omitempty"`
	Done         bool           `json:"done"`
	LastError    string         `json:"last_error,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Snapshot renders the session with at most SnapshotTail trailing messages.
func (s *Session) Snapshot() Snapshot {
	c := s.Clone()
	msgs := c.Messages
	if len(msgs) > SnapshotTail {
		msgs = msgs[len(msgs)-SnapshotTail:]
	}
	return Snapshot{
		ID:           c.ID,
		ApprovalMode: c.ApprovalMode,
		Messages:     msgs,
		MessageCount: len(c.Messages),
		Pending:      c.Pending,
		Done:         c.Done,
		LastError:    c.LastError,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func cloneArgs(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}
	raw, err := json.Marshal(args)
	if err != nil {
		out := make(map[string]any, len(args))
		for k, v := range args {
			out[k] = v
		}
		return out
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return args
	}
	return out
}
