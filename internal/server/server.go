// Package server exposes the agent core and the summarization endpoint over
// HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/a-yousafzai/ai-analyst-agent/config"
	"github.com/a-yousafzai/ai-analyst-agent/internal/agent/core"
	"github.com/a-yousafzai/ai-analyst-agent/internal/agent/planner"
	"github.com/a-yousafzai/ai-analyst-agent/internal/agent/session"
	"github.com/a-yousafzai/ai-analyst-agent/internal/agent/session/inmemory"
	sessionpg "github.com/a-yousafzai/ai-analyst-agent/internal/agent/session/postgres"
	"github.com/a-yousafzai/ai-analyst-agent/internal/agent/telemetry"
	"github.com/a-yousafzai/ai-analyst-agent/internal/agent/tools"
	"github.com/a-yousafzai/ai-analyst-agent/internal/search"
	"github.com/a-yousafzai/ai-analyst-agent/provider"
)

// Run wires the full service and blocks serving HTTP until the listener
// fails.
func Run(cfg *config.Config) error {
	backend, err := search.New(cfg.Search)
	if err != nil {
		return fmt.Errorf("search backend: %w", err)
	}

	registry, err := tools.DefaultRegistry(cfg.Tools, backend)
	if err != nil {
		return fmt.Errorf("tool registry: %w", err)
	}

	llm, err := provider.New(cfg.LLM)
	if err != nil && !errors.Is(err, provider.ErrNotConfigured) {
		return fmt.Errorf("llm provider: %w", err)
	}

	store, err := newSessionStore(cfg.Storage)
	if err != nil {
		return fmt.Errorf("session store: %w", err)
	}

	tele := telemetry.New()
	pl := planner.New(llm, cfg.Agent.PlannerContext)
	orch := core.NewOrchestrator(cfg.Agent, store, registry, pl, tele)

	e := newRouter(cfg, orch, &AnalyzeHandler{
		Backend:      backend,
		LLM:          llm,
		DefaultIndex: cfg.Tools.SearchIndex,
		AllowPartial: cfg.Server.AllowPartial,
	}, tele)

	log.Printf("listening on %s", cfg.Server.Address)
	return e.Start(cfg.Server.Address)
}

// newSessionStore picks the configured session memory implementation. The
// in-memory store is the default; postgres makes sessions survive restarts.
func newSessionStore(cfg config.StorageConfig) (session.Store, error) {
	switch cfg.SessionStore {
	case "", "memory":
		return inmemory.New(), nil
	case "postgres":
		dsn, err := cfg.Postgres.DSN()
		if err != nil {
			return nil, err
		}
		if err := Migrate("file://migrations", dsn, "up", 0); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return sessionpg.NewWithDSN(context.Background(), dsn)
	default:
		return nil, fmt.Errorf("unsupported storage.session_store: %s", cfg.SessionStore)
	}
}

// newRouter builds the echo instance with all routes registered.
func newRouter(cfg *config.Config, orch *core.Orchestrator, analyze *AnalyzeHandler, tele *telemetry.Telemetry) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	// Unified HTTP error handler with structured JSON and logging.
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		kind := ""
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		var coreErr *core.Error
		if errors.As(err, &coreErr) {
			code = statusForKind(coreErr.Kind)
			msg = coreErr.Error()
			kind = string(coreErr.Kind)
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			body := map[string]any{"error": msg}
			if kind != "" {
				body["kind"] = kind
			}
			_ = c.JSON(code, body)
		}
	}

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if cfg.Telemetry.Enabled {
		path := cfg.Telemetry.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		e.GET(path, echo.WrapHandler(tele.Handler()))
	}

	ah := &AgentHandler{Orch: orch, DefaultMaxSteps: cfg.Agent.DefaultMaxSteps}
	ah.Register(e.Group("/agent"))
	e.POST("/analyze", analyze.Analyze)

	return e
}

// statusForKind maps orchestrator error kinds onto HTTP status codes.
func statusForKind(kind core.Kind) int {
	switch kind {
	case core.KindSessionNotFound:
		return http.StatusNotFound
	case core.KindInvalidArgument:
		return http.StatusBadRequest
	case core.KindSessionDone, core.KindActionPending, core.KindNoPendingAction:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
