package core

import (
	"github.com/a-yousafzai/ai-analyst-agent/internal/agent/session"
	"github.com/a-yousafzai/ai-analyst-agent/internal/agent/tools"
)

// requiresApproval decides whether a planned tool invocation must wait for an
// explicit approve call. Final answers never pass through the gate. A tool
// marked RequiresApproval blocks even in auto mode.
func requiresApproval(mode session.ApprovalMode, spec tools.Spec) bool {
	return mode == session.ApprovalManual || spec.RequiresApproval
}
