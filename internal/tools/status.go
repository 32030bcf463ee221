package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"waypoint/internal/phase"
	"waypoint/internal/plan"
)

// StatusTool handles the wf_status MCP tool. It returns a branch's phase
// state, reconstructing it from the plan and commit history when no
// persisted record exists — the recovery entry point for fresh clones.
type StatusTool struct {
	engine *phase.Engine
	plans  *plan.Manager
	git    phase.GitHistory
}

// NewStatusTool creates a StatusTool with its dependencies.
func NewStatusTool(engine *phase.Engine, plans *plan.Manager, git phase.GitHistory) *StatusTool {
	return &StatusTool{engine: engine, plans: plans, git: git}
}

// Definition returns the MCP tool definition for registration.
func (t *StatusTool) Definition() mcp.Tool {
	return mcp.NewTool("wf_status",
		mcp.WithDescription(
			"Show a branch's workflow state: current phase, phase progress, and "+
				"transition history. If no state is persisted for the branch, it is "+
				"reconstructed from the issue's plan and the branch's recent commit "+
				"messages. Defaults to the repository's current branch.",
		),
		mcp.WithString("branch",
			mcp.Description("Branch to inspect. Defaults to the current git branch."),
		),
	)
}

// Handle processes the wf_status tool call.
func (t *StatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	branch, err := resolveBranch(req.GetString("branch", ""), t.git)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	projectRoot, err := plan.FindRoot()
	if err != nil {
		return nil, fmt.Errorf("finding project root: %w", err)
	}

	st, err := t.engine.GetState(ctx, projectRoot, branch)
	if err != nil {
		return resultFromError(err)
	}

	p, err := t.plans.Get(projectRoot, st.IssueNumber)
	if err != nil {
		return resultFromError(err)
	}

	recoveredNote := ""
	if st.Recovered {
		recoveredNote = "\n> ⚠️ This state was reconstructed from commit history and is provisional. " +
			"The next explicit transition replaces it with a real record.\n"
	}

	history := "No transitions recorded yet.\n"
	if len(st.Transitions) > 0 {
		history = ""
		for _, tr := range st.Transitions {
			suffix := ""
			if tr.Forced {
				suffix = fmt.Sprintf(" (forced: %s)", tr.SkipReason)
			}
			history += fmt.Sprintf("  - %s → %s at %s%s\n", tr.FromPhase, tr.ToPhase, tr.Timestamp, suffix)
		}
	}

	response := fmt.Sprintf(
		"# Branch Status: %s\n%s\n"+
			"**Issue:** %d — %s\n"+
			"**Workflow:** %s (%s)\n"+
			"**Current phase:** %s\n\n"+
			"## Progress\n\n%s\n"+
			"## Transitions\n\n%s",
		st.Branch, recoveredNote,
		st.IssueNumber, p.IssueTitle,
		st.WorkflowName, p.ExecutionMode,
		st.CurrentPhase,
		renderPhases(p.RequiredPhases, st.CurrentPhase),
		history,
	)
	return mcp.NewToolResultText(response), nil
}
