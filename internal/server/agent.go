package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/a-yousafzai/ai-analyst-agent/internal/agent/core"
)

// AgentHandler exposes the orchestrator operations 1:1 as routes.
type AgentHandler struct {
	Orch            *core.Orchestrator
	DefaultMaxSteps int
}

func (h *AgentHandler) Register(g *echo.Group) {
	g.POST("/session", h.createSession)
	g.GET("/tools", h.listTools)
	g.GET("/:id", h.getSession)
	g.POST("/:id/message", h.postMessage)
	g.POST("/:id/step", h.step)
	g.POST("/:id/run", h.run)
	g.POST("/:id/approve", h.approve)
	g.POST("/:id/discard", h.discard)
}

type createSessionRequest struct {
	ApprovalMode string `json:"approval_mode"`
}

func (h *AgentHandler) createSession(c echo.Context) error {
	var req createSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	snap, err := h.Orch.CreateSession(c.Request().Context(), req.ApprovalMode)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, snap)
}

func (h *AgentHandler) listTools(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"tools": h.Orch.ListTools()})
}

func (h *AgentHandler) getSession(c echo.Context) error {
	snap, err := h.Orch.GetSession(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, snap)
}

type postMessageRequest struct {
	Content string `json:"content"`
}

func (h *AgentHandler) postMessage(c echo.Context) error {
	var req postMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	snap, err := h.Orch.PostMessage(c.Request().Context(), c.Param("id"), req.Content)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, snap)
}

func (h *AgentHandler) step(c echo.Context) error {
	res, err := h.Orch.Step(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

type runRequest struct {
	// MaxSteps defaults to the configured bound when the field is absent.
	// An explicit non-positive value is rejected.
	MaxSteps *int `json:"max_steps"`
}

func (h *AgentHandler) run(c echo.Context) error {
	var req runRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	maxSteps := h.DefaultMaxSteps
	if req.MaxSteps != nil {
		maxSteps = *req.MaxSteps
	}
	res, err := h.Orch.Run(c.Request().Context(), c.Param("id"), maxSteps)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (h *AgentHandler) approve(c echo.Context) error {
	res, err := h.Orch.Approve(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (h *AgentHandler) discard(c echo.Context) error {
	snap, err := h.Orch.Discard(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, snap)
}
