// Package plan owns the per-issue project plans: which workflow an issue
// follows, in which order its phases must run, and how transitions are
// approved. Plans are created once and read-only thereafter — the phase
// engine depends on a plan's phase order never shifting underneath it.
//
// Persistence and plan logic are split (SRP): Store handles the JSON
// mapping on disk, Manager enforces the create-once contract.
package plan

import (
	"fmt"
	"strings"

	"waypoint/internal/workflow"
)

// Plan is the immutable per-issue record of required phases.
type Plan struct {
	IssueNumber    int                    `json:"issue_number"`
	IssueTitle     string                 `json:"issue_title"`
	WorkflowName   string                 `json:"workflow_name"`
	RequiredPhases []workflow.Phase       `json:"required_phases"`
	ExecutionMode  workflow.ExecutionMode `json:"execution_mode"`
	CreatedAt      string                 `json:"created_at"`
}

// PhaseIndex returns the ordinal position of p in the plan's required
// phases, or -1 if p is not part of the plan.
func (p *Plan) PhaseIndex(phase workflow.Phase) int {
	for i, ph := range p.RequiredPhases {
		if ph == phase {
			return i
		}
	}
	return -1
}

// FirstPhase returns the initial phase for any branch created against
// this plan's issue.
func (p *Plan) FirstPhase() workflow.Phase {
	return p.RequiredPhases[0]
}

// validate checks the invariants every persisted plan must satisfy
// before the record may drive a branch. A failure means the record is
// corrupt, not merely stale.
func (p *Plan) validate(issue int) error {
	if p.IssueNumber != issue {
		return fmt.Errorf("record issue number %d does not match key %d", p.IssueNumber, issue)
	}
	if p.IssueNumber <= 0 {
		return fmt.Errorf("issue number %d is not positive", p.IssueNumber)
	}
	if len(p.RequiredPhases) == 0 {
		return fmt.Errorf("required phases are empty")
	}
	seen := make(map[workflow.Phase]bool, len(p.RequiredPhases))
	for _, ph := range p.RequiredPhases {
		if strings.TrimSpace(string(ph)) == "" {
			return fmt.Errorf("required phases contain an empty phase name")
		}
		if seen[ph] {
			return fmt.Errorf("required phases list %q more than once", ph)
		}
		seen[ph] = true
	}
	if err := workflow.ValidateMode(p.ExecutionMode); err != nil {
		return err
	}
	return nil
}

// clone returns a copy the caller may hold without aliasing store state.
func (p *Plan) clone() *Plan {
	cp := *p
	cp.RequiredPhases = make([]workflow.Phase, len(p.RequiredPhases))
	copy(cp.RequiredPhases, p.RequiredPhases)
	return &cp
}
