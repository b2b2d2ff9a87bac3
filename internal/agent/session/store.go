package session

import (
	"context"
	"errors"
)

// ErrNotFound is returned for operations referencing an unknown session id.
var ErrNotFound = errors.New("session not found")

// Store is the injectable session memory abstraction. The orchestrator
// serializes operations per session id, so implementations only need to be
// safe for concurrent access across different sessions.
//
// Get and Create/Save exchange deep copies: a stored session is never
// aliased by a caller.
type Store interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
}
