package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// StatusPrompt handles the wf-status MCP prompt.
// It instructs the AI to read and present the current branch's phase state.
type StatusPrompt struct{}

// NewStatusPrompt creates a StatusPrompt.
func NewStatusPrompt() *StatusPrompt {
	return &StatusPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StatusPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("wf-status",
		mcp.WithPromptDescription(
			"Check where the current branch stands in its workflow. "+
				"Shows the current phase, progress through the plan, "+
				"and what to do next.",
		),
	)
}

// Handle processes the wf-status prompt request.
func (p *StatusPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "Branch Workflow Status",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"Please run `wf_status` to check where this branch stands in its workflow.\n\n" +
						"Then:\n" +
						"1. Show the phase progress in a clear, visual format\n" +
						"2. If the state was reconstructed from commit history, say so — it is provisional\n" +
						"3. Tell me exactly what the current phase expects before advancing\n" +
						"4. If the branch is at its final phase, suggest wrapping up",
				),
			},
		},
	}, nil
}
