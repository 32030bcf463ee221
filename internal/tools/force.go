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

// ForceTransitionTool handles the wf_force_transition MCP tool: a
// deliberate forward skip over intermediate phases, with a mandatory
// justification that lands in the transition record.
type ForceTransitionTool struct {
	engine *phase.Engine
	plans  *plan.Manager
	git    phase.GitHistory
	bridge PhaseObserver
}

// NewForceTransitionTool creates a ForceTransitionTool with its dependencies.
func NewForceTransitionTool(engine *phase.Engine, plans *plan.Manager, git phase.GitHistory) *ForceTransitionTool {
	return &ForceTransitionTool{engine: engine, plans: plans, git: git}
}

// SetBridge injects an optional PhaseObserver for audit recording.
func (t *ForceTransitionTool) SetBridge(obs PhaseObserver) { t.bridge = obs }

// Definition returns the MCP tool definition for registration.
func (t *ForceTransitionTool) Definition() mcp.Tool {
	return mcp.NewTool("wf_force_transition",
		mcp.WithDescription(
			"Move a branch to any later phase of its plan, skipping intermediates. "+
				"A non-empty skip_reason is mandatory and is recorded in the transition "+
				"history. Backward moves are rejected. Plans in interactive mode require "+
				"human_approval to be true. Defaults to the repository's current branch.",
		),
		mcp.WithString("to_phase",
			mcp.Required(),
			mcp.Description("The target phase. Any phase of the plan strictly after the current one."),
		),
		mcp.WithString("skip_reason",
			mcp.Required(),
			mcp.Description("Why the intermediate phases are being skipped. Recorded for audit."),
		),
		mcp.WithString("branch",
			mcp.Description("Branch to move. Defaults to the current git branch."),
		),
		mcp.WithBoolean("human_approval",
			mcp.Description("Set true when the user has approved this skip. Required for interactive plans."),
		),
	)
}

// Handle processes the wf_force_transition tool call.
func (t *ForceTransitionTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	toPhase := workflow.Phase(req.GetString("to_phase", ""))
	if toPhase == "" {
		return mcp.NewToolResultError("'to_phase' is required — a later phase of the plan"), nil
	}
	skipReason := req.GetString("skip_reason", "")
	branch, err := resolveBranch(req.GetString("branch", ""), t.git)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	approval := req.GetBool("human_approval", false)

	projectRoot, err := plan.FindRoot()
	if err != nil {
		return nil, fmt.Errorf("finding project root: %w", err)
	}

	st, err := t.engine.ForceTransition(ctx, projectRoot, branch, toPhase, skipReason, approval)
	if err != nil {
		return resultFromError(err)
	}

	last := st.Transitions[len(st.Transitions)-1]
	notifyObserver(t.bridge, audit.Entry{
		Branch:        st.Branch,
		IssueNumber:   st.IssueNumber,
		Event:         audit.EventForced,
		FromPhase:     string(last.FromPhase),
		ToPhase:       string(last.ToPhase),
		SkipReason:    last.SkipReason,
		HumanApproval: last.HumanApproval,
	})

	p, err := t.plans.Get(projectRoot, st.IssueNumber)
	if err != nil {
		return resultFromError(err)
	}

	response := fmt.Sprintf(
		"# Phase Skipped: %s → %s\n\n"+
			"**Branch:** %s\n"+
			"**Issue:** %d\n"+
			"**Reason:** %s\n\n"+
			"## Progress\n\n%s",
		last.FromPhase, last.ToPhase,
		st.Branch, st.IssueNumber,
		last.SkipReason,
		renderPhases(p.RequiredPhases, st.CurrentPhase),
	)
	return mcp.NewToolResultText(response), nil
}
