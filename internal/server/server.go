// Package server wires all MCP components and creates the server instance.
//
// This is the composition root (DIP): it creates concrete implementations
// and injects them into the tools/prompts/resources that depend on
// abstractions. No business logic lives here — only wiring.
package server

import (
	"fmt"
	"log"

	"github.com/mark3labs/mcp-go/server"

	"waypoint/internal/audit"
	"waypoint/internal/git"
	"waypoint/internal/phase"
	"waypoint/internal/plan"
	"waypoint/internal/prompts"
	"waypoint/internal/resources"
	"waypoint/internal/tools"
	"waypoint/internal/workflow"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates and configures the MCP server with all tools, prompts,
// and resources registered. This is the single place where all
// dependencies are resolved.
//
// The returned cleanup function closes the audit trail's database
// connection and must be called on shutdown (typically via defer).
// It is always non-nil and safe to call even if audit init failed.
func New() (*server.MCPServer, func(), error) {
	// --- Create shared dependencies ---

	projectRoot, err := plan.FindRoot()
	if err != nil {
		return nil, noop, fmt.Errorf("resolving project root: %w", err)
	}

	cfg, err := workflow.LoadConfig(projectRoot)
	if err != nil {
		return nil, noop, fmt.Errorf("loading workflow config: %w", err)
	}

	plans := plan.NewManager(plan.NewFileStore(), cfg)

	// Git is an optional collaborator: without a repository the server
	// still serves plan tools, and branch tools require an explicit
	// branch argument.
	var history phase.GitHistory
	if h, gitErr := git.Open(projectRoot); gitErr != nil {
		log.Printf("WARNING: git unavailable, branch detection and recovery disabled: %v", gitErr)
	} else {
		history = h
	}

	engine := phase.NewEngine(phase.NewFileStore(), plans, cfg, history)

	// --- Create the MCP server ---

	s := server.NewMCPServer(
		"waypoint",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Register planning tools ---

	initProjectTool := tools.NewInitProjectTool(plans)
	s.AddTool(initProjectTool.Definition(), initProjectTool.Handle)

	planTool := tools.NewPlanTool(plans)
	s.AddTool(planTool.Definition(), planTool.Handle)

	// --- Register phase tools ---

	initBranchTool := tools.NewInitBranchTool(engine, history)
	s.AddTool(initBranchTool.Definition(), initBranchTool.Handle)

	statusTool := tools.NewStatusTool(engine, plans, history)
	s.AddTool(statusTool.Definition(), statusTool.Handle)

	transitionTool := tools.NewTransitionTool(engine, plans, history)
	s.AddTool(transitionTool.Definition(), transitionTool.Handle)

	forceTool := tools.NewForceTransitionTool(engine, plans, history)
	s.AddTool(forceTool.Definition(), forceTool.Handle)

	// --- Wire the audit trail ---
	//
	// Audit is an independent subsystem: if it fails to initialize,
	// phase tools continue working. We log a warning and skip bridge
	// wiring — the server is still fully functional for phase
	// management, only the trail is missing.

	cleanup := noop
	var trail *audit.Log
	if l, auditErr := audit.New(audit.DefaultConfig(projectRoot)); auditErr != nil {
		log.Printf("WARNING: audit trail disabled: %v", auditErr)
	} else {
		trail = l
		cleanup = func() {
			if err := trail.Close(); err != nil {
				log.Printf("WARNING: audit trail close: %v", err)
			}
		}

		bridge := tools.NewAuditBridge(trail)
		initBranchTool.SetBridge(bridge)
		transitionTool.SetBridge(bridge)
		forceTool.SetBridge(bridge)

		// Reconstructions happen inside reads, not tool mutations, so
		// the engine reports them through a hook instead of a bridge.
		engine.SetRecoveryHook(func(st *phase.BranchState) {
			bridge.ObserveEvent(audit.Entry{
				Branch:      st.Branch,
				IssueNumber: st.IssueNumber,
				Event:       audit.EventRecovered,
				ToPhase:     string(st.CurrentPhase),
			})
		})
	}

	// History tool registered unconditionally — handles a nil trail
	// internally by reporting that the audit subsystem is disabled.
	historyTool := tools.NewHistoryTool(trail)
	s.AddTool(historyTool.Definition(), historyTool.Handle)

	// --- Register prompts ---

	startPrompt := prompts.NewStartPrompt()
	s.AddPrompt(startPrompt.Definition(), startPrompt.Handle)

	statusPrompt := prompts.NewStatusPrompt()
	s.AddPrompt(statusPrompt.Definition(), statusPrompt.Handle)

	// --- Register resources ---

	resourceHandler := resources.NewHandler(engine, history)
	s.AddResource(resourceHandler.StateResource(), resourceHandler.HandleState)

	return s, cleanup, nil
}

// noop is a no-op cleanup function used as the default when audit
// is disabled or hasn't been initialized.
func noop() {}

// serverInstructions returns the system instructions that tell the AI
// how to use waypoint effectively.
func serverInstructions() string {
	return `You have access to waypoint, a workflow phase coordinator MCP server.

## WHEN TO ACTIVATE waypoint

You MUST proactively suggest using waypoint when the user:
- Starts work on a tracked issue ("let's work on issue 42", "pick up #107")
- Asks to begin a feature, bug fix, refactor, or epic that has an issue number
- Asks "where was I?" or "what phase are we in?" on a branch
- Creates or switches to a work branch for an issue

You do NOT need waypoint for:
- One-off questions, explanations, or documentation
- Changes without an associated issue
- Repositories that don't use waypoint (.waypoint/ absent and the user
  hasn't asked to set it up)

## What waypoint does

waypoint tracks which PHASE of a development workflow each branch is in.
A workflow is an ordered sequence of phases (e.g. research → planning →
design → tdd → integration → documentation). Each issue gets an immutable
PLAN (which workflow, which phases); each branch gets a mutable STATE
(current phase plus the full transition history).

Built-in workflows:
- feature: research, planning, design, tdd, integration, documentation
- bug: research, tdd, integration, documentation
- refactor: planning, design, tdd, integration
- epic: research, planning, tdd, integration, documentation

Projects can override or add workflows in .waypoint/workflows.yaml.

## Typical session

1. wf_init_project — once per issue: pick the workflow, get the plan
2. wf_init_branch — once per branch: starts at the plan's first phase
3. Work, then wf_transition to the next phase when the current one is done
4. wf_status at any time to see where a branch stands
5. wf_history for the audit trail of past transitions

## Rules you must follow

- Phases advance ONE AT A TIME, in plan order. wf_transition only accepts
  the immediate next phase.
- Skipping ahead requires wf_force_transition with a skip_reason — always
  ask the user WHY before forcing, and record their reason verbatim.
- Plans in interactive mode require human_approval=true on every
  transition. NEVER set human_approval=true unless the user explicitly
  approved the transition in this conversation.
- Plans are immutable. To change an issue's phases, the user must start
  over with a new issue number.
- If wf_status reports a RECONSTRUCTED state, tell the user: the state
  file was missing and waypoint inferred the phase from commit history.
  Ask them to confirm the phase looks right before transitioning.

## Branch naming

waypoint derives the issue number from the branch name (feature/42-login,
42-fix-crash, bugfix/7/retry). If the branch name has no leading number,
pass issue_number explicitly to wf_init_branch.

## Error handling

Tool errors are written for you to act on:
- "invalid transition" tells you the expected next phase — use it
- "approval required" means ask the user, then retry with human_approval
- "no plan found" means run wf_init_project first
- A corrupt-state error includes the raw persisted record — show it to
  the user and ask how to proceed; do not guess`
}
