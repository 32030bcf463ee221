package plan

import (
	"fmt"
	"strings"
)

// DuplicateIssueError is returned when a plan already exists for an issue.
// Re-initialization is rejected rather than overwritten: other components
// depend on a plan's phase order never changing after creation.
type DuplicateIssueError struct {
	Issue int
}

func (e *DuplicateIssueError) Error() string {
	return fmt.Sprintf("a plan already exists for issue %d — plans are immutable; use the existing plan or pick a different issue", e.Issue)
}

// UnknownWorkflowError is returned when a plan names a workflow that no
// definition (built-in or workflows.yaml) provides.
type UnknownWorkflowError struct {
	Name  string
	Known []string
}

func (e *UnknownWorkflowError) Error() string {
	return fmt.Sprintf("unknown workflow %q — known workflows: %s", e.Name, strings.Join(e.Known, ", "))
}

// PlanNotFoundError is returned when no plan exists for an issue.
type PlanNotFoundError struct {
	Issue int
}

func (e *PlanNotFoundError) Error() string {
	return fmt.Sprintf("no plan found for issue %d — initialize the project for this issue first", e.Issue)
}

// PlanCorruptError is returned when a persisted plan record fails
// validation or the plan mapping cannot be decoded. Issue is zero for
// whole-file corruption. Raw carries the persisted content so
// plans.json can be inspected and repaired by hand; it is never
// silently repaired or overwritten.
type PlanCorruptError struct {
	Issue int
	Raw   []byte
	Err   error
}

func (e *PlanCorruptError) Error() string {
	if e.Issue > 0 {
		return fmt.Sprintf("persisted plan for issue %d is corrupt: %v — inspect and repair .waypoint/plans.json by hand", e.Issue, e.Err)
	}
	return fmt.Sprintf("persisted plan mapping is corrupt: %v — inspect and repair .waypoint/plans.json by hand", e.Err)
}

func (e *PlanCorruptError) Unwrap() error { return e.Err }
