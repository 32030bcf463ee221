package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"waypoint/internal/audit"
)

// HistoryTool handles the wf_history MCP tool: a read of the audit trail
// for a branch or an issue. Registered unconditionally and nil-safe —
// when the audit subsystem failed to initialize, it says so instead of
// crashing the tool surface.
type HistoryTool struct {
	log *audit.Log
}

// NewHistoryTool creates a HistoryTool. log may be nil.
func NewHistoryTool(log *audit.Log) *HistoryTool {
	return &HistoryTool{log: log}
}

// Definition returns the MCP tool definition for registration.
func (t *HistoryTool) Definition() mcp.Tool {
	return mcp.NewTool("wf_history",
		mcp.WithDescription(
			"Show the audit trail of phase activity: transitions, forced skips, "+
				"branch initializations, and recoveries. Filter by branch or issue; "+
				"with neither, shows aggregate statistics.",
		),
		mcp.WithString("branch",
			mcp.Description("Limit the trail to one branch."),
		),
		mcp.WithNumber("issue_number",
			mcp.Description("Limit the trail to one issue."),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum entries to return (default 20)."),
		),
	)
}

// Handle processes the wf_history tool call.
func (t *HistoryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if t.log == nil {
		return mcp.NewToolResultError("the audit trail is unavailable (it failed to initialize at startup) — phase tools still work, but no history is recorded"), nil
	}

	branch := strings.TrimSpace(req.GetString("branch", ""))
	issue := req.GetInt("issue_number", 0)
	limit := req.GetInt("limit", 20)

	switch {
	case branch != "":
		entries, err := t.log.ForBranch(branch, limit)
		if err != nil {
			return nil, err
		}
		return mcp.NewToolResultText(renderEntries(fmt.Sprintf("Branch %s", branch), entries)), nil
	case issue > 0:
		entries, err := t.log.ForIssue(issue, limit)
		if err != nil {
			return nil, err
		}
		return mcp.NewToolResultText(renderEntries(fmt.Sprintf("Issue %d", issue), entries)), nil
	default:
		stats, err := t.log.GetStats()
		if err != nil {
			return nil, err
		}
		var b strings.Builder
		fmt.Fprintf(&b, "# Audit Trail\n\n**Entries:** %d\n**Branches:** %d\n\n", stats.TotalEntries, stats.Branches)
		for event, count := range stats.ByEvent {
			fmt.Fprintf(&b, "  - %s: %d\n", event, count)
		}
		return mcp.NewToolResultText(b.String()), nil
	}
}

// renderEntries formats a trail slice, newest first.
func renderEntries(scope string, entries []audit.Entry) string {
	if len(entries) == 0 {
		return fmt.Sprintf("# Audit Trail: %s\n\nNo entries recorded.", scope)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# Audit Trail: %s\n\n", scope)
	for _, e := range entries {
		detail := e.Event
		switch e.Event {
		case audit.EventTransition, audit.EventForced:
			detail = fmt.Sprintf("%s %s → %s", e.Event, e.FromPhase, e.ToPhase)
			if e.SkipReason != "" {
				detail += fmt.Sprintf(" (%s)", e.SkipReason)
			}
		case audit.EventInitialized, audit.EventRecovered:
			detail = fmt.Sprintf("%s at %s", e.Event, e.ToPhase)
		}
		fmt.Fprintf(&b, "  - [%s] %s (issue %d): %s\n", e.CreatedAt, e.Branch, e.IssueNumber, detail)
	}
	return b.String()
}
