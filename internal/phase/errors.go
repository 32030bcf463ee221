package phase

import (
	"fmt"

	"waypoint/internal/workflow"
)

// InvalidTransitionError is returned for any transition the plan does not
// allow: backward moves, skips without force, phases outside the plan, or
// advancing past the terminal phase.
type InvalidTransitionError struct {
	Branch string
	From   workflow.Phase
	To     workflow.Phase
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	if e.From == "" && e.To == "" {
		return fmt.Sprintf("invalid transition on branch %q: %s", e.Branch, e.Reason)
	}
	return fmt.Sprintf("invalid transition on branch %q from %q to %q: %s", e.Branch, e.From, e.To, e.Reason)
}

// ApprovalRequiredError is returned when a plan in interactive mode is
// asked to transition without human approval.
type ApprovalRequiredError struct {
	Branch string
}

func (e *ApprovalRequiredError) Error() string {
	return fmt.Sprintf("branch %q belongs to an interactive plan — re-run the transition with human approval set", e.Branch)
}

// BranchFormatError is returned when no issue number can be extracted
// from a branch name during recovery.
type BranchFormatError struct {
	Branch string
}

func (e *BranchFormatError) Error() string {
	return fmt.Sprintf("branch %q does not embed an issue number (expected a name like feature/42-short-title) — initialize the branch explicitly with its issue number", e.Branch)
}

// StateCorruptError is returned when a persisted branch record fails
// validation. Raw carries the persisted bytes so the file can be
// inspected and repaired by hand; the engine never repairs it silently.
type StateCorruptError struct {
	Branch string
	Raw    []byte
	Err    error
}

func (e *StateCorruptError) Error() string {
	return fmt.Sprintf("persisted state for branch %q is corrupt: %v — inspect and repair .waypoint/state.json by hand", e.Branch, e.Err)
}

func (e *StateCorruptError) Unwrap() error { return e.Err }

// CollaboratorUnavailableError wraps failures of the layers the engine
// depends on (persistence, git) that are not locally recoverable.
type CollaboratorUnavailableError struct {
	Op  string
	Err error
}

func (e *CollaboratorUnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Op, e.Err)
}

func (e *CollaboratorUnavailableError) Unwrap() error { return e.Err }
