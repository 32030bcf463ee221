package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"waypoint/internal/audit"
	"waypoint/internal/phase"
	"waypoint/internal/plan"
)

// InitBranchTool handles the wf_init_branch MCP tool. It creates explicit
// state for a branch at its plan's first phase.
type InitBranchTool struct {
	engine *phase.Engine
	git    phase.GitHistory
	bridge PhaseObserver
}

// NewInitBranchTool creates an InitBranchTool with its dependencies.
// git may be nil; the branch argument is then mandatory.
func NewInitBranchTool(engine *phase.Engine, git phase.GitHistory) *InitBranchTool {
	return &InitBranchTool{engine: engine, git: git}
}

// SetBridge injects an optional PhaseObserver for audit recording.
func (t *InitBranchTool) SetBridge(obs PhaseObserver) { t.bridge = obs }

// Definition returns the MCP tool definition for registration.
func (t *InitBranchTool) Definition() mcp.Tool {
	return mcp.NewTool("wf_init_branch",
		mcp.WithDescription(
			"Start tracking a branch at its plan's first phase. "+
				"The branch name should embed the issue number (e.g. feature/42-add-login); "+
				"pass 'issue_number' explicitly for branches that don't. "+
				"Defaults to the repository's current branch.",
		),
		mcp.WithString("branch",
			mcp.Description("Branch to initialize. Defaults to the current git branch."),
		),
		mcp.WithNumber("issue_number",
			mcp.Description("Issue the branch belongs to. Derived from the branch name when omitted."),
		),
	)
}

// Handle processes the wf_init_branch tool call.
func (t *InitBranchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	branch, err := resolveBranch(req.GetString("branch", ""), t.git)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	issue := req.GetInt("issue_number", 0)

	projectRoot, err := plan.FindRoot()
	if err != nil {
		return nil, fmt.Errorf("finding project root: %w", err)
	}

	st, err := t.engine.InitializeBranch(projectRoot, branch, issue)
	if err != nil {
		return resultFromError(err)
	}

	notifyObserver(t.bridge, audit.Entry{
		Branch:      st.Branch,
		IssueNumber: st.IssueNumber,
		Event:       audit.EventInitialized,
		ToPhase:     string(st.CurrentPhase),
	})

	response := fmt.Sprintf(
		"# Branch Initialized: %s\n\n"+
			"**Issue:** %d\n"+
			"**Workflow:** %s\n"+
			"**Current phase:** %s\n\n"+
			"Advance with `wf_transition` when this phase is done.",
		st.Branch, st.IssueNumber, st.WorkflowName, st.CurrentPhase,
	)
	return mcp.NewToolResultText(response), nil
}
