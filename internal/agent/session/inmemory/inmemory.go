package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/a-yousafzai/ai-analyst-agent/internal/agent/session"
)

// Store keeps sessions in process memory. Sessions are ephemeral: nothing
// survives a restart.
type Store struct {
	sessions map[string]*session.Session
	mu       sync.RWMutex
}

// New creates an empty in-memory session store.
func New() *Store {
	return &Store{sessions: make(map[string]*session.Session)}
}

func (st *Store) Create(ctx context.Context, s *session.Session) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[s.ID]; ok {
		return fmt.Errorf("session %s already exists", s.ID)
	}
	st.sessions[s.ID] = s.Clone()
	return nil
}

func (st *Store) Get(ctx context.Context, id string) (*session.Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	return s.Clone(), nil
}

func (st *Store) Save(ctx context.Context, s *session.Session) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[s.ID]; !ok {
		return session.ErrNotFound
	}
	st.sessions[s.ID] = s.Clone()
	return nil
}
