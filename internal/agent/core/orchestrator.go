package core

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/a-yousafzai/ai-analyst-agent/config"
	"github.com/a-yousafzai/ai-analyst-agent/internal/agent/planner"
	"github.com/a-yousafzai/ai-analyst-agent/internal/agent/session"
	"github.com/a-yousafzai/ai-analyst-agent/internal/agent/telemetry"
	"github.com/a-yousafzai/ai-analyst-agent/internal/agent/tools"
)

// StepStatus classifies how a step (or run) ended.
type StepStatus string

const (
	// StatusExecuted means a tool ran (successfully or not) and the session
	// can take further steps.
	StatusExecuted StepStatus = "executed"
	// StatusFinal means the planner closed the session with an answer.
	StatusFinal StepStatus = "final"
	// StatusAwaitingApproval means a tool invocation is parked behind the
	// approval gate.
	StatusAwaitingApproval StepStatus = "awaiting_approval"
	// StatusStepLimit means a run stopped because it exhausted its step
	// budget while the session was still active.
	StatusStepLimit StepStatus = "step_limit_reached"
)

// StepResult reports one perceive-reason-act cycle.
type StepResult struct {
	Status  StepStatus       `json:"status"`
	Thought string           `json:"thought,omitempty"`
	Tool    string           `json:"tool,omitempty"`
	Result  *tools.Result    `json:"result,omitempty"`
	Answer  string           `json:"answer,omitempty"`
	Session session.Snapshot `json:"session"`
}

// RunResult reports a bounded sequence of steps.
type RunResult struct {
	Status  StepStatus       `json:"status"`
	Steps   []StepResult     `json:"steps"`
	Session session.Snapshot `json:"session"`
}

// Orchestrator owns the agent loop: session lifecycle, planning, the approval
// gate and tool execution. Operations on the same session are serialized via
// a per-session mutex; different sessions proceed in parallel. The store is
// only touched to load and save, so its own locking is never held across
// planner or tool I/O.
type Orchestrator struct {
	cfg      config.AgentConfig
	store    session.Store
	registry *tools.Registry
	planner  *planner.Planner
	exec     executor
	tele     *telemetry.Telemetry
	logger   *log.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewOrchestrator wires the agent loop. tele may be nil.
func NewOrchestrator(cfg config.AgentConfig, store session.Store, registry *tools.Registry, pl *planner.Planner, tele *telemetry.Telemetry) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		store:    store,
		registry: registry,
		planner:  pl,
		exec:     executor{registry: registry, tele: tele},
		tele:     tele,
		logger:   log.New(log.Writer(), "[AGENT] ", log.LstdFlags),
		locks:    make(map[string]*sync.Mutex),
	}
}

func (o *Orchestrator) sessionLock(id string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.locks[id]
	if !ok {
		l = &sync.Mutex{}
		o.locks[id] = l
	}
	return l
}

// CreateSession starts a new session. An empty mode uses the configured
// default.
func (o *Orchestrator) CreateSession(ctx context.Context, mode string) (session.Snapshot, error) {
	parsed, err := session.ParseApprovalMode(mode, session.ApprovalMode(o.cfg.DefaultApprovalMode))
	if err != nil {
		return session.Snapshot{}, wrapErr(KindInvalidArgument, err, "approval mode")
	}

	s := session.New(uuid.New().String(), parsed)
	if err := o.store.Create(ctx, s); err != nil {
		return session.Snapshot{}, wrapErr(KindInternal, err, "create session")
	}
	o.tele.SessionCreated()
	o.logger.Printf("session %s created (approval=%s)", s.ID, parsed)
	return s.Snapshot(), nil
}

// GetSession returns the bounded view of a session.
func (o *Orchestrator) GetSession(ctx context.Context, id string) (session.Snapshot, error) {
	s, err := o.load(ctx, id)
	if err != nil {
		return session.Snapshot{}, err
	}
	return s.Snapshot(), nil
}

// ListTools returns the tool catalog in registration order.
func (o *Orchestrator) ListTools() []tools.Spec { return o.registry.List() }

// PostMessage appends a user message. Finished sessions reject new input.
func (o *Orchestrator) PostMessage(ctx context.Context, id, content string) (session.Snapshot, error) {
	if content == "" {
		return session.Snapshot{}, errf(KindInvalidArgument, "message content must not be empty")
	}

	lock := o.sessionLock(id)
	lock.Lock()
	defer lock.Unlock()

	s, err := o.load(ctx, id)
	if err != nil {
		return session.Snapshot{}, err
	}
	if s.Done {
		return session.Snapshot{}, errf(KindSessionDone, "session %s is finished", id)
	}

	s.Append(session.Message{Role: session.RoleUser, Content: content})
	if err := o.store.Save(ctx, s); err != nil {
		return session.Snapshot{}, wrapErr(KindInternal, err, "save session %s", id)
	}
	return s.Snapshot(), nil
}

// Step advances the session by one perceive-reason-act cycle.
func (o *Orchestrator) Step(ctx context.Context, id string) (*StepResult, error) {
	lock := o.sessionLock(id)
	lock.Lock()
	defer lock.Unlock()
	return o.step(ctx, id)
}

// Run executes up to maxSteps steps, stopping early on a final answer or the
// approval gate. maxSteps must be positive; callers substitute their default
// before calling.
func (o *Orchestrator) Run(ctx context.Context, id string, maxSteps int) (*RunResult, error) {
	if maxSteps <= 0 {
		return nil, errf(KindInvalidArgument, "max_steps must be positive, got %d", maxSteps)
	}

	lock := o.sessionLock(id)
	lock.Lock()
	defer lock.Unlock()

	run := &RunResult{Status: StatusStepLimit}
	for i := 0; i < maxSteps; i++ {
		if err := ctx.Err(); err != nil {
			return nil, wrapErr(KindInternal, err, "run cancelled after %d steps", i)
		}
		res, err := o.step(ctx, id)
		if err != nil {
			return nil, err
		}
		run.Steps = append(run.Steps, *res)
		run.Session = res.Session
		if res.Status != StatusExecuted {
			run.Status = res.Status
			return run, nil
		}
	}
	return run, nil
}

// Approve executes the pending action and records its result.
func (o *Orchestrator) Approve(ctx context.Context, id string) (*StepResult, error) {
	lock := o.sessionLock(id)
	lock.Lock()
	defer lock.Unlock()

	s, err := o.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Pending == nil {
		return nil, errf(KindNoPendingAction, "session %s has no pending action", id)
	}

	pending := *s.Pending
	s.ClearPending()

	msg, result, violation := o.exec.execute(ctx, pending.Tool, pending.Args)
	s.Append(msg)
	if violation != nil {
		s.LastError = violation.Error()
	}
	if err := o.store.Save(ctx, s); err != nil {
		return nil, wrapErr(KindInternal, err, "save session %s", id)
	}

	o.tele.StepCompleted(string(StatusExecuted))
	return &StepResult{
		Status:  StatusExecuted,
		Thought: pending.Thought,
		Tool:    pending.Tool,
		Result:  &result,
		Session: s.Snapshot(),
	}, nil
}

// Discard drops the pending action without executing it. The session stays
// active and the refusal is visible to the planner on the next step.
func (o *Orchestrator) Discard(ctx context.Context, id string) (session.Snapshot, error) {
	lock := o.sessionLock(id)
	lock.Lock()
	defer lock.Unlock()

	s, err := o.load(ctx, id)
	if err != nil {
		return session.Snapshot{}, err
	}
	if s.Pending == nil {
		return session.Snapshot{}, errf(KindNoPendingAction, "session %s has no pending action", id)
	}

	tool := s.Pending.Tool
	s.ClearPending()
	s.Append(session.Message{
		Role:    session.RoleAgent,
		Content: "Proposed invocation of " + tool + " was discarded by the operator.",
	})
	if err := o.store.Save(ctx, s); err != nil {
		return session.Snapshot{}, wrapErr(KindInternal, err, "save session %s", id)
	}
	return s.Snapshot(), nil
}

// step assumes the caller holds the session lock.
func (o *Orchestrator) step(ctx context.Context, id string) (*StepResult, error) {
	s, err := o.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Done {
		return nil, errf(KindSessionDone, "session %s is finished", id)
	}
	if s.Pending != nil {
		return nil, errf(KindActionPending, "session %s is blocked on an approval", id)
	}

	s.Messages = session.Compact(s.Messages, session.CompactOptions{
		Threshold:  o.cfg.CompactThreshold,
		KeepRecent: o.cfg.CompactKeepRecent,
	})

	decision, derr := o.planner.Decide(ctx, s.Messages, o.registry.List())
	o.tele.PlannerDecision(decision.Source)
	if derr != nil {
		// Planner protocol violations are absorbed by the fallback; the
		// session just remembers the last one.
		s.LastError = derr.Error()
		o.logger.Printf("session %s: planner degraded: %v", id, derr)
	}

	if decision.IsFinal() {
		if decision.Thought != "" {
			s.Append(session.Message{Role: session.RoleAgent, Content: decision.Thought})
		}
		s.Append(session.Message{Role: session.RoleAgent, Content: decision.Final.Answer})
		if err := s.MarkDone(); err != nil {
			return nil, wrapErr(KindInternal, err, "finish session %s", id)
		}
		if err := o.store.Save(ctx, s); err != nil {
			return nil, wrapErr(KindInternal, err, "save session %s", id)
		}
		o.tele.StepCompleted(string(StatusFinal))
		return &StepResult{
			Status:  StatusFinal,
			Thought: decision.Thought,
			Answer:  decision.Final.Answer,
			Session: s.Snapshot(),
		}, nil
	}

	inv := decision.Invocation
	if spec, known := o.registry.Lookup(inv.Tool); known && requiresApproval(s.ApprovalMode, spec) {
		if err := s.SetPending(&session.PendingAction{
			Tool:    inv.Tool,
			Args:    inv.Args,
			Thought: decision.Thought,
		}); err != nil {
			return nil, wrapErr(KindInternal, err, "park action on session %s", id)
		}
		if err := o.store.Save(ctx, s); err != nil {
			return nil, wrapErr(KindInternal, err, "save session %s", id)
		}
		o.tele.StepCompleted(string(StatusAwaitingApproval))
		return &StepResult{
			Status:  StatusAwaitingApproval,
			Thought: decision.Thought,
			Tool:    inv.Tool,
			Session: s.Snapshot(),
		}, nil
	}

	// Unknown tools fall through to execution, which records the violation
	// as a failed tool result so the planner can react to it.
	if decision.Thought != "" {
		s.Append(session.Message{Role: session.RoleAgent, Content: decision.Thought})
	}
	msg, result, violation := o.exec.execute(ctx, inv.Tool, inv.Args)
	s.Append(msg)
	if violation != nil {
		s.LastError = violation.Error()
		o.logger.Printf("session %s: %v", id, violation)
	}
	if err := o.store.Save(ctx, s); err != nil {
		return nil, wrapErr(KindInternal, err, "save session %s", id)
	}

	o.tele.StepCompleted(string(StatusExecuted))
	return &StepResult{
		Status:  StatusExecuted,
		Thought: decision.Thought,
		Tool:    inv.Tool,
		Result:  &result,
		Session: s.Snapshot(),
	}, nil
}

func (o *Orchestrator) load(ctx context.Context, id string) (*session.Session, error) {
	s, err := o.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, errf(KindSessionNotFound, "session %s not found", id)
		}
		return nil, wrapErr(KindInternal, err, "load session %s", id)
	}
	return s, nil
}
