// Package phase maintains the per-branch phase state: validated
// transitions, forced skips, and deterministic recovery when no persisted
// state exists for a branch.
//
// The package is split by responsibility, same as the plan package:
// state types, the transition engine, the recovery inference, branch-name
// parsing, and the JSON store each live in their own file.
package phase

import (
	"fmt"
	"strings"

	"waypoint/internal/workflow"
)

// TransitionRecord is one entry in a branch's append-only history.
type TransitionRecord struct {
	FromPhase     workflow.Phase `json:"from_phase"`
	ToPhase       workflow.Phase `json:"to_phase"`
	Timestamp     string         `json:"timestamp"`
	Forced        bool           `json:"forced"`
	SkipReason    string         `json:"skip_reason,omitempty"`
	HumanApproval bool           `json:"human_approval"`
}

// BranchState is the mutable per-branch record, persisted as one entry in
// .waypoint/state.json. CurrentPhase is always the ToPhase of the last
// transition record, or the plan's first phase when Transitions is empty.
type BranchState struct {
	Branch       string             `json:"branch"`
	IssueNumber  int                `json:"issue_number"`
	WorkflowName string             `json:"workflow_name"`
	CurrentPhase workflow.Phase     `json:"current_phase"`
	Transitions  []TransitionRecord `json:"transitions"`
	CreatedAt    string             `json:"created_at"`

	// Recovered marks a state reconstructed from commit history rather
	// than explicit initialization. Such a state is provisional: the next
	// explicit transition clears the flag and adds a real record.
	Recovered bool `json:"recovered,omitempty"`
}

// validate checks the plan-independent invariants of a persisted record.
// A failure means the record is corrupt, not merely stale — callers must
// surface it, never silently repair it.
func (s *BranchState) validate(branch string) error {
	if s.Branch != branch {
		return fmt.Errorf("record branch %q does not match key %q", s.Branch, branch)
	}
	if s.IssueNumber <= 0 {
		return fmt.Errorf("issue number %d is not positive", s.IssueNumber)
	}
	if strings.TrimSpace(string(s.CurrentPhase)) == "" {
		return fmt.Errorf("current phase is empty")
	}
	if n := len(s.Transitions); n > 0 {
		last := s.Transitions[n-1]
		if last.ToPhase != s.CurrentPhase {
			return fmt.Errorf("current phase %q does not match last transition target %q", s.CurrentPhase, last.ToPhase)
		}
	}
	return nil
}

// clone returns a copy the caller may hold without aliasing engine state.
func (s *BranchState) clone() *BranchState {
	cp := *s
	cp.Transitions = make([]TransitionRecord, len(s.Transitions))
	copy(cp.Transitions, s.Transitions)
	return &cp
}
