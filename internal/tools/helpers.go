// Package tools implements the MCP tool handlers for waypoint.
//
// Each tool is a struct that receives dependencies via its constructor
// (DIP) and exposes a Definition for registration plus a Handle
// compatible with mcp-go's CallToolRequest signature.
//
// Design principles:
// - SRP: each file = one tool
// - DIP: tools depend on abstractions (phase.Store, phase.GitHistory), not concretions
// - OCP: new tools are added without modifying existing ones
package tools

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"waypoint/internal/phase"
	"waypoint/internal/plan"
	"waypoint/internal/workflow"
)

// callerError reports whether err belongs to the validation taxonomy:
// surfaced verbatim as a tool error, never retried, never wrapped.
func callerError(err error) bool {
	var (
		dup     *plan.DuplicateIssueError
		unknown *plan.UnknownWorkflowError
		missing *plan.PlanNotFoundError
		invalid *phase.InvalidTransitionError
		needsOK *phase.ApprovalRequiredError
		badName *phase.BranchFormatError
	)
	return errors.As(err, &dup) ||
		errors.As(err, &unknown) ||
		errors.As(err, &missing) ||
		errors.As(err, &invalid) ||
		errors.As(err, &needsOK) ||
		errors.As(err, &badName) ||
		errors.Is(err, phase.ErrAlreadyInitialized)
}

// resultFromError maps a domain error to an MCP response. Validation
// errors become tool errors the caller can act on; corrupt persisted
// records surface with their raw content for manual repair; anything
// else (persistence or git infrastructure) is a server error.
func resultFromError(err error) (*mcp.CallToolResult, error) {
	var corrupt *phase.StateCorruptError
	if errors.As(err, &corrupt) {
		msg := corrupt.Error()
		if len(corrupt.Raw) > 0 {
			msg += fmt.Sprintf("\n\nPersisted record:\n```json\n%s\n```", corrupt.Raw)
		}
		return mcp.NewToolResultError(msg), nil
	}
	var badPlan *plan.PlanCorruptError
	if errors.As(err, &badPlan) {
		msg := badPlan.Error()
		if len(badPlan.Raw) > 0 {
			msg += fmt.Sprintf("\n\nPersisted record:\n```json\n%s\n```", badPlan.Raw)
		}
		return mcp.NewToolResultError(msg), nil
	}
	if callerError(err) {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return nil, err
}

// resolveBranch returns the explicit branch argument, or the repository's
// current branch when the argument is empty.
func resolveBranch(arg string, git phase.GitHistory) (string, error) {
	branch := strings.TrimSpace(arg)
	if branch != "" {
		return branch, nil
	}
	if git == nil {
		return "", fmt.Errorf("no repository available — provide the 'branch' argument explicitly")
	}
	branch, err := git.CurrentBranch()
	if err != nil {
		return "", fmt.Errorf("determining current branch: %w — provide the 'branch' argument explicitly", err)
	}
	return branch, nil
}

// renderPhases draws the plan's phase sequence with the branch's
// position marked, in the ✅/🔄/⬜ style used across waypoint responses.
func renderPhases(phases []workflow.Phase, current workflow.Phase) string {
	var b strings.Builder
	reached := false
	for _, p := range phases {
		marker := "✅"
		switch {
		case p == current:
			marker = "🔄"
			reached = true
		case reached:
			marker = "⬜"
		}
		fmt.Fprintf(&b, "  %s %s\n", marker, p)
	}
	return b.String()
}
