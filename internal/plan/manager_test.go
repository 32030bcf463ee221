package plan

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"waypoint/internal/workflow"
)

func init() {
	// Freeze time for deterministic tests.
	timeNow = func() time.Time {
		return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	}
}

// --- Helpers ---

func testManager(t *testing.T) (*Manager, string) {
	t.Helper()
	root := t.TempDir()
	cfg, err := workflow.LoadConfig(root)
	if err != nil {
		t.Fatalf("setup: load config: %v", err)
	}
	return NewManager(NewFileStore(), cfg), root
}

// writePlansFile persists a raw plan mapping, bypassing the manager's
// own validation on create.
func writePlansFile(t *testing.T, root, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(root, DataDir), 0o755); err != nil {
		t.Fatalf("setup: mkdir: %v", err)
	}
	if err := os.WriteFile(PlansPath(root), []byte(content), 0o644); err != nil {
		t.Fatalf("setup: write plans file: %v", err)
	}
}

// --- Initialize ---

func TestInitialize_CreatesPlan(t *testing.T) {
	m, root := testManager(t)

	p, err := m.Initialize(root, 42, "Add login", "bug", workflow.ModeAutonomous)
	if err != nil {
		t.Fatalf("Initialize = %v, want nil", err)
	}
	if p.IssueNumber != 42 {
		t.Errorf("IssueNumber = %d, want 42", p.IssueNumber)
	}
	if p.WorkflowName != "bug" {
		t.Errorf("WorkflowName = %q, want bug", p.WorkflowName)
	}
	if len(p.RequiredPhases) != 4 || p.RequiredPhases[0] != workflow.PhaseResearch {
		t.Errorf("RequiredPhases = %v, want the bug workflow phases", p.RequiredPhases)
	}
	if p.ExecutionMode != workflow.ModeAutonomous {
		t.Errorf("ExecutionMode = %q, want autonomous", p.ExecutionMode)
	}
	if p.CreatedAt != "2026-03-14T12:00:00Z" {
		t.Errorf("CreatedAt = %q, want frozen timestamp", p.CreatedAt)
	}
}

func TestInitialize_DefaultsToInteractive(t *testing.T) {
	m, root := testManager(t)

	p, err := m.Initialize(root, 7, "Fix crash", "feature", "")
	if err != nil {
		t.Fatalf("Initialize = %v, want nil", err)
	}
	if p.ExecutionMode != workflow.ModeInteractive {
		t.Errorf("ExecutionMode = %q, want interactive default", p.ExecutionMode)
	}
}

func TestInitialize_RejectsInvalidMode(t *testing.T) {
	m, root := testManager(t)

	if _, err := m.Initialize(root, 7, "t", "feature", workflow.ExecutionMode("yolo")); err == nil {
		t.Error("Initialize accepted an invalid execution mode")
	}
}

func TestInitialize_RejectsNonPositiveIssue(t *testing.T) {
	m, root := testManager(t)

	if _, err := m.Initialize(root, 0, "t", "feature", ""); err == nil {
		t.Error("Initialize accepted issue 0")
	}
	if _, err := m.Initialize(root, -3, "t", "feature", ""); err == nil {
		t.Error("Initialize accepted a negative issue")
	}
}

func TestInitialize_UnknownWorkflow(t *testing.T) {
	m, root := testManager(t)

	_, err := m.Initialize(root, 7, "t", "sprint", "")
	var unknown *UnknownWorkflowError
	if !errors.As(err, &unknown) {
		t.Fatalf("Initialize = %v, want UnknownWorkflowError", err)
	}
	if unknown.Name != "sprint" {
		t.Errorf("error names workflow %q, want sprint", unknown.Name)
	}
	if len(unknown.Known) == 0 {
		t.Error("error lists no known workflows")
	}
}

func TestInitialize_DuplicateIssue(t *testing.T) {
	m, root := testManager(t)

	if _, err := m.Initialize(root, 42, "first", "bug", ""); err != nil {
		t.Fatalf("setup: first Initialize = %v", err)
	}

	_, err := m.Initialize(root, 42, "second", "feature", "")
	var dup *DuplicateIssueError
	if !errors.As(err, &dup) {
		t.Fatalf("re-Initialize = %v, want DuplicateIssueError", err)
	}
	if dup.Issue != 42 {
		t.Errorf("error names issue %d, want 42", dup.Issue)
	}

	// The original plan is untouched.
	p, err := m.Get(root, 42)
	if err != nil {
		t.Fatalf("Get after duplicate = %v", err)
	}
	if p.IssueTitle != "first" {
		t.Errorf("IssueTitle = %q, want the original plan preserved", p.IssueTitle)
	}
}

// --- Get ---

func TestGet_RoundTrip(t *testing.T) {
	m, root := testManager(t)

	created, err := m.Initialize(root, 9, "Refactor parser", "refactor", workflow.ModeInteractive)
	if err != nil {
		t.Fatalf("setup: Initialize = %v", err)
	}

	got, err := m.Get(root, 9)
	if err != nil {
		t.Fatalf("Get = %v, want nil", err)
	}
	if got.WorkflowName != created.WorkflowName {
		t.Errorf("WorkflowName = %q, want %q", got.WorkflowName, created.WorkflowName)
	}
	if len(got.RequiredPhases) != len(created.RequiredPhases) {
		t.Errorf("RequiredPhases = %v, want %v", got.RequiredPhases, created.RequiredPhases)
	}
}

func TestGet_NotFound(t *testing.T) {
	m, root := testManager(t)

	_, err := m.Get(root, 404)
	var missing *PlanNotFoundError
	if !errors.As(err, &missing) {
		t.Fatalf("Get = %v, want PlanNotFoundError", err)
	}
	if missing.Issue != 404 {
		t.Errorf("error names issue %d, want 404", missing.Issue)
	}
}

func TestGet_CorruptRecordEmptyPhases(t *testing.T) {
	m, root := testManager(t)
	writePlansFile(t, root, `{"42": {"issue_number": 42, "issue_title": "Fix crash", "workflow_name": "bug", "required_phases": [], "execution_mode": "autonomous"}}`)

	_, err := m.Get(root, 42)
	var corrupt *PlanCorruptError
	if !errors.As(err, &corrupt) {
		t.Fatalf("Get = %v, want PlanCorruptError", err)
	}
	if corrupt.Issue != 42 {
		t.Errorf("error names issue %d, want 42", corrupt.Issue)
	}
	if len(corrupt.Raw) == 0 {
		t.Error("error carries no record for repair")
	}
}

func TestGet_CorruptRecordBadMode(t *testing.T) {
	m, root := testManager(t)
	writePlansFile(t, root, `{"7": {"issue_number": 7, "workflow_name": "bug", "required_phases": ["research", "tdd"], "execution_mode": "yolo"}}`)

	var corrupt *PlanCorruptError
	if _, err := m.Get(root, 7); !errors.As(err, &corrupt) {
		t.Fatalf("Get = %v, want PlanCorruptError", err)
	}
}

func TestGet_CorruptRecordIssueMismatch(t *testing.T) {
	m, root := testManager(t)
	writePlansFile(t, root, `{"7": {"issue_number": 8, "workflow_name": "bug", "required_phases": ["research"], "execution_mode": "autonomous"}}`)

	var corrupt *PlanCorruptError
	if _, err := m.Get(root, 7); !errors.As(err, &corrupt) {
		t.Fatalf("Get = %v, want PlanCorruptError", err)
	}
}

func TestGet_ReturnsCopy(t *testing.T) {
	m, root := testManager(t)

	if _, err := m.Initialize(root, 9, "t", "bug", ""); err != nil {
		t.Fatalf("setup: Initialize = %v", err)
	}

	first, _ := m.Get(root, 9)
	first.RequiredPhases[0] = workflow.Phase("mutated")

	second, _ := m.Get(root, 9)
	if second.RequiredPhases[0] != workflow.PhaseResearch {
		t.Error("mutating a returned plan leaked into the store")
	}
}

// --- Plan ---

func TestPlan_PhaseIndexAndFirstPhase(t *testing.T) {
	p := &Plan{RequiredPhases: []workflow.Phase{workflow.PhaseResearch, workflow.PhaseTDD}}
	if got := p.PhaseIndex(workflow.PhaseTDD); got != 1 {
		t.Errorf("PhaseIndex(tdd) = %d, want 1", got)
	}
	if got := p.PhaseIndex(workflow.PhaseDesign); got != -1 {
		t.Errorf("PhaseIndex(design) = %d, want -1", got)
	}
	if got := p.FirstPhase(); got != workflow.PhaseResearch {
		t.Errorf("FirstPhase = %q, want research", got)
	}
}
