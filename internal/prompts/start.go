package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// StartPrompt handles the wf-start MCP prompt.
// It walks the AI through setting up phase tracking for a new issue.
type StartPrompt struct{}

// NewStartPrompt creates a StartPrompt.
func NewStartPrompt() *StartPrompt {
	return &StartPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StartPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("wf-start",
		mcp.WithPromptDescription(
			"Start tracking an issue: create its project plan and initialize "+
				"the working branch at the first phase.",
		),
	)
}

// Handle processes the wf-start prompt request.
func (p *StartPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "Start Workflow Tracking",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"I want to start working on an issue with phase tracking.\n\n" +
						"Please:\n" +
						"1. Ask me for the issue number, its title, and which workflow fits " +
						"(bug, feature, refactor, or epic)\n" +
						"2. Call `wf_init_project` with those details\n" +
						"3. Suggest a branch name embedding the issue number " +
						"(like feature/42-short-title), and once I'm on it, call `wf_init_branch`\n" +
						"4. Show me the phase sequence and what the first phase expects",
				),
			},
		},
	}, nil
}
