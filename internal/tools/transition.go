package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"waypoint/internal/audit"
	"waypoint/internal/phase"
	"waypoint/internal/plan"
	"waypoint/internal/workflow"
)

// TransitionTool handles the wf_transition MCP tool — the workhorse:
// it advances a branch exactly one phase along its plan.
type TransitionTool struct {
	engine *phase.Engine
	plans  *plan.Manager
	git    phase.GitHistory
	bridge PhaseObserver
}

// NewTransitionTool creates a TransitionTool with its dependencies.
func NewTransitionTool(engine *phase.Engine, plans *plan.Manager, git phase.GitHistory) *TransitionTool {
	return &TransitionTool{engine: engine, plans: plans, git: git}
}

// SetBridge injects an optional PhaseObserver for audit recording.
func (t *TransitionTool) SetBridge(obs PhaseObserver) { t.bridge = obs }

// Definition returns the MCP tool definition for registration.
func (t *TransitionTool) Definition() mcp.Tool {
	return mcp.NewTool("wf_transition",
		mcp.WithDescription(
			"Advance a branch to the next phase of its plan. Only the immediate "+
				"next phase is a legal target — use wf_force_transition to skip ahead. "+
				"Plans in interactive mode require human_approval to be true. "+
				"Defaults to the repository's current branch.",
		),
		mcp.WithString("to_phase",
			mcp.Required(),
			mcp.Description("The target phase. Must be the phase immediately after the current one."),
		),
		mcp.WithString("branch",
			mcp.Description("Branch to advance. Defaults to the current git branch."),
		),
		mcp.WithBoolean("human_approval",
			mcp.Description("Set true when the user has approved this transition. Required for interactive plans."),
		),
	)
}

// Handle processes the wf_transition tool call.
func (t *TransitionTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	toPhase := workflow.Phase(req.GetString("to_phase", ""))
	if toPhase == "" {
		return mcp.NewToolResultError("'to_phase' is required — the phase immediately after the current one"), nil
	}
	branch, err := resolveBranch(req.GetString("branch", ""), t.git)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	approval := req.GetBool("human_approval", false)

	projectRoot, err := plan.FindRoot()
	if err != nil {
		return nil, fmt.Errorf("finding project root: %w", err)
	}

	st, err := t.engine.Transition(ctx, projectRoot, branch, toPhase, approval)
	if err != nil {
		return resultFromError(err)
	}

	last := st.Transitions[len(st.Transitions)-1]
	notifyObserver(t.bridge, audit.Entry{
		Branch:        st.Branch,
		IssueNumber:   st.IssueNumber,
		Event:         audit.EventTransition,
		FromPhase:     string(last.FromPhase),
		ToPhase:       string(last.ToPhase),
		HumanApproval: last.HumanApproval,
	})

	p, err := t.plans.Get(projectRoot, st.IssueNumber)
	if err != nil {
		return resultFromError(err)
	}

	terminal := ""
	if p.PhaseIndex(st.CurrentPhase) == len(p.RequiredPhases)-1 {
		terminal = "\nThis is the final phase of the workflow — the branch is ready to wrap up.\n"
	}

	response := fmt.Sprintf(
		"# Phase Advanced: %s → %s\n\n"+
			"**Branch:** %s\n"+
			"**Issue:** %d\n\n"+
			"## Progress\n\n%s%s",
		last.FromPhase, last.ToPhase,
		st.Branch, st.IssueNumber,
		renderPhases(p.RequiredPhases, st.CurrentPhase),
		terminal,
	)
	return mcp.NewToolResultText(response), nil
}
