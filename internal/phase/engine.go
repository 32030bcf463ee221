package phase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"waypoint/internal/plan"
	"waypoint/internal/workflow"
)

// GitHistory is the read-only slice of the repository the engine consumes
// during recovery. Implementations must return an empty message slice
// (not an error) for a valid repository with no commits, and may fail
// with a distinguished unavailable error for shallow or detached
// contexts — the engine degrades on any failure rather than surfacing it.
type GitHistory interface {
	CurrentBranch() (string, error)
	RecentCommits(ctx context.Context, branch string, limit int) ([]string, error)
}

// DefaultCommitWindow bounds how much history recovery examines.
// A tunable, not a contract.
const DefaultCommitWindow = 50

// Engine owns branch state: validated transitions, forced skips, and
// recovery when no persisted state exists. It is the only writer of the
// branch → state mapping; the plan manager is consulted read-only.
type Engine struct {
	store  Store
	plans  *plan.Manager
	cfg    *workflow.Config
	git    GitHistory // may be nil: recovery then degrades to the first phase
	window int

	// onRecover is invoked after a reconstructed state is persisted.
	// Must be cheap and must not fail the lookup.
	onRecover func(*BranchState)

	// mu serializes read-modify-write across branches. All operations
	// are local file reads and writes plus one bounded git lookup, so a
	// single mutex is enough; per-branch locking would buy nothing here.
	mu sync.Mutex
}

// NewEngine creates an Engine. git may be nil when no repository is
// available — recovery still works, it just cannot consult history.
func NewEngine(store Store, plans *plan.Manager, cfg *workflow.Config, git GitHistory) *Engine {
	return &Engine{store: store, plans: plans, cfg: cfg, git: git, window: DefaultCommitWindow}
}

// SetCommitWindow overrides how many recent commits recovery examines.
func (e *Engine) SetCommitWindow(n int) {
	if n > 0 {
		e.window = n
	}
}

// SetRecoveryHook registers a callback fired once per reconstruction,
// after the recovered state has been persisted.
func (e *Engine) SetRecoveryHook(fn func(*BranchState)) {
	e.onRecover = fn
}

// GetState returns the branch's state, reconstructing it from the plan
// and commit history when none is persisted.
//
// The fast path — persisted state exists — is a pure read and never
// mutates anything, so repeated calls return identical results. The slow
// path derives the issue from the branch name, loads its plan, infers
// the most advanced phase consistent with the commit window, and
// persists the reconstruction with an empty transition history: only the
// current-phase fact is recoverable, not the path taken.
func (e *Engine) GetState(ctx context.Context, projectRoot, branch string) (*BranchState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.getStateLocked(ctx, projectRoot, branch)
}

func (e *Engine) getStateLocked(ctx context.Context, projectRoot, branch string) (*BranchState, error) {
	if strings.TrimSpace(branch) == "" {
		return nil, &BranchFormatError{Branch: branch}
	}

	st, err := e.store.Get(projectRoot, branch)
	if err == nil {
		return st, nil
	}
	if !errors.Is(err, ErrStateNotFound) {
		return nil, err // corrupt record or persistence failure
	}

	issue, err := IssueFromBranch(branch)
	if err != nil {
		return nil, err
	}

	pl, err := e.plans.Get(projectRoot, issue)
	if err != nil {
		return nil, planFailure(err) // phase names are plan-scoped
	}

	messages := e.recentCommits(ctx, branch)
	inferred := InferPhase(e.definitionFor(pl), messages)

	st = &BranchState{
		Branch:       branch,
		IssueNumber:  issue,
		WorkflowName: pl.WorkflowName,
		CurrentPhase: inferred,
		Transitions:  []TransitionRecord{},
		CreatedAt:    nowRFC3339(),
		Recovered:    true,
	}
	if err := e.store.Put(projectRoot, st); err != nil {
		return nil, storeFailure(err)
	}
	if e.onRecover != nil {
		e.onRecover(st.clone())
	}
	return st.clone(), nil
}

// recentCommits fetches the bounded commit window, best-effort: any
// failure (no repo wired, shallow clone, detached ref, caller timeout)
// yields an empty window and recovery falls back to the first phase.
// Refusing to return a state here would block all tooling.
func (e *Engine) recentCommits(ctx context.Context, branch string) []string {
	if e.git == nil {
		return nil
	}
	messages, err := e.git.RecentCommits(ctx, branch, e.window)
	if err != nil {
		return nil
	}
	return messages
}

// definitionFor builds the inference definition from the plan itself.
// The plan's phase order is authoritative even if the named workflow was
// since removed from workflows.yaml; conventions come from the current
// definition when one is still present.
func (e *Engine) definitionFor(pl *plan.Plan) workflow.Definition {
	def := workflow.Definition{Name: pl.WorkflowName, Phases: pl.RequiredPhases}
	if current, ok := e.cfg.Definition(pl.WorkflowName); ok {
		def.Conventions = current.Conventions
	}
	return def
}

// InitializeBranch creates explicit state for a branch at its plan's
// first phase. If issue is zero it is derived from the branch name.
func (e *Engine) InitializeBranch(projectRoot, branch string, issue int) (*BranchState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if strings.TrimSpace(branch) == "" {
		return nil, &BranchFormatError{Branch: branch}
	}

	if issue <= 0 {
		derived, err := IssueFromBranch(branch)
		if err != nil {
			return nil, err
		}
		issue = derived
	}

	if _, err := e.store.Get(projectRoot, branch); err == nil {
		return nil, fmt.Errorf("%w: %q — use a transition to move it forward", ErrAlreadyInitialized, branch)
	} else if !errors.Is(err, ErrStateNotFound) {
		return nil, err
	}

	pl, err := e.plans.Get(projectRoot, issue)
	if err != nil {
		return nil, planFailure(err)
	}

	st := &BranchState{
		Branch:       branch,
		IssueNumber:  issue,
		WorkflowName: pl.WorkflowName,
		CurrentPhase: pl.FirstPhase(),
		Transitions:  []TransitionRecord{},
		CreatedAt:    nowRFC3339(),
	}
	if err := e.store.Put(projectRoot, st); err != nil {
		return nil, storeFailure(err)
	}
	return st.clone(), nil
}

// Transition advances a branch exactly one phase along its plan. For
// plans in interactive mode the approval check comes first, regardless
// of whether the target phase would otherwise be valid.
func (e *Engine) Transition(ctx context.Context, projectRoot, branch string, to workflow.Phase, humanApproval bool) (*BranchState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, pl, err := e.loadForTransition(ctx, projectRoot, branch, humanApproval)
	if err != nil {
		return nil, err
	}

	cur := pl.PhaseIndex(st.CurrentPhase)
	if cur < 0 {
		return nil, &StateCorruptError{Branch: branch, Err: fmt.Errorf("current phase %q is not in the plan for issue %d", st.CurrentPhase, st.IssueNumber)}
	}
	target := pl.PhaseIndex(to)
	if target < 0 {
		return nil, &InvalidTransitionError{
			Branch: branch, From: st.CurrentPhase, To: to,
			Reason: fmt.Sprintf("phase is not part of the %s workflow (phases: %s)", pl.WorkflowName, joinPhases(pl.RequiredPhases)),
		}
	}
	if cur == len(pl.RequiredPhases)-1 {
		return nil, &InvalidTransitionError{
			Branch: branch, From: st.CurrentPhase, To: to,
			Reason: "already at the terminal phase",
		}
	}
	if target <= cur {
		return nil, &InvalidTransitionError{
			Branch: branch, From: st.CurrentPhase, To: to,
			Reason: "phases never move backward",
		}
	}
	if target != cur+1 {
		return nil, &InvalidTransitionError{
			Branch: branch, From: st.CurrentPhase, To: to,
			Reason: fmt.Sprintf("phases advance one at a time (next: %q) — use a forced transition to skip ahead", pl.RequiredPhases[cur+1]),
		}
	}

	return e.applyLocked(projectRoot, st, TransitionRecord{
		FromPhase:     st.CurrentPhase,
		ToPhase:       to,
		Timestamp:     nowRFC3339(),
		HumanApproval: humanApproval,
	})
}

// ForceTransition moves a branch to any later phase in its plan, skipping
// intermediates. A non-empty skip reason is mandatory; backward moves are
// out of scope and rejected.
func (e *Engine) ForceTransition(ctx context.Context, projectRoot, branch string, to workflow.Phase, skipReason string, humanApproval bool) (*BranchState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, pl, err := e.loadForTransition(ctx, projectRoot, branch, humanApproval)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(skipReason) == "" {
		return nil, &InvalidTransitionError{
			Branch: branch, From: st.CurrentPhase, To: to,
			Reason: "a skip reason is required for forced transitions",
		}
	}

	cur := pl.PhaseIndex(st.CurrentPhase)
	if cur < 0 {
		return nil, &StateCorruptError{Branch: branch, Err: fmt.Errorf("current phase %q is not in the plan for issue %d", st.CurrentPhase, st.IssueNumber)}
	}
	target := pl.PhaseIndex(to)
	if target < 0 {
		return nil, &InvalidTransitionError{
			Branch: branch, From: st.CurrentPhase, To: to,
			Reason: fmt.Sprintf("phase is not part of the %s workflow (phases: %s)", pl.WorkflowName, joinPhases(pl.RequiredPhases)),
		}
	}
	if target <= cur {
		return nil, &InvalidTransitionError{
			Branch: branch, From: st.CurrentPhase, To: to,
			Reason: "forced transitions only skip forward",
		}
	}

	return e.applyLocked(projectRoot, st, TransitionRecord{
		FromPhase:     st.CurrentPhase,
		ToPhase:       to,
		Timestamp:     nowRFC3339(),
		Forced:        true,
		SkipReason:    strings.TrimSpace(skipReason),
		HumanApproval: humanApproval,
	})
}

// loadForTransition resolves state (through recovery if needed) and the
// owning plan, and enforces the interactive-mode approval rule.
func (e *Engine) loadForTransition(ctx context.Context, projectRoot, branch string, humanApproval bool) (*BranchState, *plan.Plan, error) {
	st, err := e.getStateLocked(ctx, projectRoot, branch)
	if err != nil {
		return nil, nil, err
	}

	pl, err := e.plans.Get(projectRoot, st.IssueNumber)
	if err != nil {
		return nil, nil, planFailure(err)
	}

	if pl.ExecutionMode == workflow.ModeInteractive && !humanApproval {
		return nil, nil, &ApprovalRequiredError{Branch: branch}
	}
	return st, pl, nil
}

// applyLocked appends the record and persists the new state. The store
// write is atomic, so either the appended history lands on disk in full
// or the previous state survives untouched.
func (e *Engine) applyLocked(projectRoot string, st *BranchState, rec TransitionRecord) (*BranchState, error) {
	st = st.clone()
	st.Transitions = append(st.Transitions, rec)
	st.CurrentPhase = rec.ToPhase
	st.Recovered = false

	if err := e.store.Put(projectRoot, st); err != nil {
		return nil, storeFailure(err)
	}
	return st, nil
}

// storeFailure wraps a state-store write failure as collaborator
// unavailability, unless the store already produced a typed error.
func storeFailure(err error) error {
	var unavailable *CollaboratorUnavailableError
	var corrupt *StateCorruptError
	if errors.As(err, &unavailable) || errors.As(err, &corrupt) {
		return err
	}
	return &CollaboratorUnavailableError{Op: "state store", Err: err}
}

// planFailure classifies plan-manager errors: the caller-facing plan
// errors pass through untouched, anything else means the plan store
// itself could not be read.
func planFailure(err error) error {
	var missing *plan.PlanNotFoundError
	var corrupt *plan.PlanCorruptError
	if errors.As(err, &missing) || errors.As(err, &corrupt) {
		return err
	}
	return &CollaboratorUnavailableError{Op: "plan store", Err: err}
}

func joinPhases(phases []workflow.Phase) string {
	parts := make([]string, len(phases))
	for i, p := range phases {
		parts[i] = string(p)
	}
	return strings.Join(parts, " → ")
}

// nowRFC3339 formats the injected clock as the persisted timestamp form.
func nowRFC3339() string {
	return timeNow().UTC().Format(time.RFC3339)
}
