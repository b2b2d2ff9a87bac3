package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/a-yousafzai/ai-analyst-agent/internal/agent/session"
)

// Store persists sessions in Postgres. It satisfies the same contract as the
// in-memory store so the orchestrator can be pointed at either without
// changes; the per-session serialization still happens in the orchestrator.
type Store struct {
	DB *sql.DB
}

// NewWithDSN opens a connection pool and verifies connectivity.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{DB: db}, nil
}

func (st *Store) Create(ctx context.Context, s *session.Session) error {
	messages, pending, err := encode(s)
	if err != nil {
		return err
	}
	_, err = st.DB.ExecContext(ctx, `
INSERT INTO agent_sessions (id, approval_mode, done, last_error, pending_action, messages, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, string(s.ApprovalMode), s.Done, s.LastError, pending, messages, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (st *Store) Get(ctx context.Context, id string) (*session.Session, error) {
	row := st.DB.QueryRowContext(ctx, `
SELECT id, approval_mode, done, last_error, pending_action, messages, created_at, updated_at
FROM agent_sessions WHERE id = $1`, id)

	var (
		s        session.Session
		mode     string
		pending  []byte
		messages []byte
	)
	err := row.Scan(&s.ID, &mode, &s.Done, &s.LastError, &pending, &messages, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select session: %w", err)
	}
	s.ApprovalMode = session.ApprovalMode(mode)
	if len(messages) > 0 {
		if err := json.Unmarshal(messages, &s.Messages); err != nil {
			return nil, fmt.Errorf("decode messages: %w", err)
		}
	}
	if len(pending) > 0 {
		var p session.PendingAction
		if err := json.Unmarshal(pending, &p); err != nil {
			return nil, fmt.Errorf("decode pending action: %w", err)
		}
		s.Pending = &p
	}
	return &s, nil
}

func (st *Store) Save(ctx context.Context, s *session.Session) error {
	messages, pending, err := encode(s)
	if err != nil {
		return err
	}
	res, err := st.DB.ExecContext(ctx, `
UPDATE agent_sessions
SET done = $2, last_error = $3, pending_action = $4, messages = $5, updated_at = $6
WHERE id = $1`,
		s.ID, s.Done, s.LastError, pending, messages, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n == 0 {
		return session.ErrNotFound
	}
	return nil
}

func encode(s *session.Session) (messages []byte, pending []byte, err error) {
	messages, err = json.Marshal(s.Messages)
	if err != nil {
		return nil, nil, fmt.Errorf("encode messages: %w", err)
	}
	if s.Pending != nil {
		pending, err = json.Marshal(s.Pending)
		if err != nil {
			return nil, nil, fmt.Errorf("encode pending action: %w", err)
		}
	}
	return messages, pending, nil
}
