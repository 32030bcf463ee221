package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"waypoint/internal/plan"
)

// PlanTool handles the wf_plan MCP tool — a pure read of an issue's plan.
type PlanTool struct {
	plans *plan.Manager
}

// NewPlanTool creates a PlanTool with the given plan manager.
func NewPlanTool(plans *plan.Manager) *PlanTool {
	return &PlanTool{plans: plans}
}

// Definition returns the MCP tool definition for registration.
func (t *PlanTool) Definition() mcp.Tool {
	return mcp.NewTool("wf_plan",
		mcp.WithDescription(
			"Show the project plan for an issue: workflow, required phase order, "+
				"execution mode, and creation time. Read-only.",
		),
		mcp.WithNumber("issue_number",
			mcp.Required(),
			mcp.Description("The issue number to look up."),
		),
	)
}

// Handle processes the wf_plan tool call.
func (t *PlanTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issue := req.GetInt("issue_number", 0)
	if issue <= 0 {
		return mcp.NewToolResultError("'issue_number' is required and must be a positive integer"), nil
	}

	projectRoot, err := plan.FindRoot()
	if err != nil {
		return nil, fmt.Errorf("finding project root: %w", err)
	}

	p, err := t.plans.Get(projectRoot, issue)
	if err != nil {
		return resultFromError(err)
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling plan: %w", err)
	}

	response := fmt.Sprintf(
		"# Plan: Issue %d — %s\n\n```json\n%s\n```",
		p.IssueNumber, p.IssueTitle, data,
	)
	return mcp.NewToolResultText(response), nil
}
