// Package resources implements MCP resource handlers for waypoint.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (waypoint://...) following MCP conventions.
package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"waypoint/internal/phase"
	"waypoint/internal/plan"
)

// Handler manages waypoint resource endpoints.
type Handler struct {
	engine *phase.Engine
	git    phase.GitHistory
}

// NewHandler creates a resource Handler with its dependencies.
// git may be nil; the state resource then reports that no branch
// could be determined.
func NewHandler(engine *phase.Engine, git phase.GitHistory) *Handler {
	return &Handler{engine: engine, git: git}
}

// StateResource returns the MCP resource definition for branch state.
func (h *Handler) StateResource() mcp.Resource {
	return mcp.NewResource(
		"waypoint://branch/state",
		"Current Branch Phase State",
		mcp.WithResourceDescription("Phase state of the current git branch, reconstructed from history if not persisted"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleState returns the current branch's state as JSON.
func (h *Handler) HandleState(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	if h.git == nil {
		return errorResource(req.Params.URI, "no git repository available"), nil
	}

	branch, err := h.git.CurrentBranch()
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}

	projectRoot, err := plan.FindRoot()
	if err != nil {
		return nil, fmt.Errorf("finding project root: %w", err)
	}

	st, err := h.engine.GetState(ctx, projectRoot, branch)
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling state: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// errorResource returns a resource with an error message.
func errorResource(uri, message string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Error: %s", message),
		},
	}
}
