package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"waypoint/internal/plan"
	"waypoint/internal/workflow"
)

// InitProjectTool handles the wf_init_project MCP tool. It creates the
// immutable plan for an issue: workflow, phase order, execution mode.
type InitProjectTool struct {
	plans *plan.Manager
}

// NewInitProjectTool creates an InitProjectTool with the given plan manager.
func NewInitProjectTool(plans *plan.Manager) *InitProjectTool {
	return &InitProjectTool{plans: plans}
}

// Definition returns the MCP tool definition for registration.
func (t *InitProjectTool) Definition() mcp.Tool {
	return mcp.NewTool("wf_init_project",
		mcp.WithDescription(
			"Create the project plan for an issue: which workflow it follows, "+
				"in what order its phases run, and whether transitions need human approval. "+
				"Plans are immutable — re-initializing an issue is rejected. "+
				"Call this once per issue before tracking any branch against it.",
		),
		mcp.WithNumber("issue_number",
			mcp.Required(),
			mcp.Description("The issue number this plan belongs to. Positive integer, unique."),
		),
		mcp.WithString("title",
			mcp.Description("The issue title, for display in status output."),
		),
		mcp.WithString("workflow",
			mcp.Required(),
			mcp.Description("Workflow name: bug, feature, refactor, epic, or any workflow defined in .waypoint/workflows.yaml."),
		),
		mcp.WithString("execution_mode",
			mcp.Description("'interactive' (default): every transition requires human approval. 'autonomous': transitions proceed without approval."),
		),
	)
}

// Handle processes the wf_init_project tool call.
func (t *InitProjectTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issue := req.GetInt("issue_number", 0)
	if issue <= 0 {
		return mcp.NewToolResultError("'issue_number' is required and must be a positive integer"), nil
	}
	workflowName := req.GetString("workflow", "")
	if workflowName == "" {
		return mcp.NewToolResultError("'workflow' is required — e.g. bug, feature, refactor, epic"), nil
	}
	title := req.GetString("title", "")
	mode := workflow.ExecutionMode(req.GetString("execution_mode", string(workflow.ModeInteractive)))

	projectRoot, err := plan.FindRoot()
	if err != nil {
		return nil, fmt.Errorf("finding project root: %w", err)
	}

	p, err := t.plans.Initialize(projectRoot, issue, title, workflowName, mode)
	if err != nil {
		return resultFromError(err)
	}

	response := fmt.Sprintf(
		"# Plan Created: Issue %d\n\n"+
			"**Title:** %s\n"+
			"**Workflow:** %s\n"+
			"**Execution mode:** %s\n\n"+
			"## Required Phases\n\n%s\n"+
			"Branches for this issue start at **%s**. "+
			"Create one named like `%s/%d-short-title`, then call `wf_init_branch` "+
			"(or just `wf_status` — state is reconstructed from commit history when missing).",
		p.IssueNumber, p.IssueTitle, p.WorkflowName, p.ExecutionMode,
		renderPhases(p.RequiredPhases, p.FirstPhase()),
		p.FirstPhase(), p.WorkflowName, p.IssueNumber,
	)
	return mcp.NewToolResultText(response), nil
}
