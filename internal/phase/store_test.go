package phase

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"waypoint/internal/plan"
	"waypoint/internal/workflow"
)

// --- Helpers ---

func testState(branch string) *BranchState {
	return &BranchState{
		Branch:       branch,
		IssueNumber:  42,
		WorkflowName: "bug",
		CurrentPhase: workflow.PhaseResearch,
		Transitions:  []TransitionRecord{},
		CreatedAt:    "2026-03-14T12:00:00Z",
	}
}

func writeStateFile(t *testing.T, root, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(root, plan.DataDir), 0o755); err != nil {
		t.Fatalf("setup: mkdir: %v", err)
	}
	if err := os.WriteFile(StatePath(root), []byte(content), 0o644); err != nil {
		t.Fatalf("setup: write state.json: %v", err)
	}
}

// --- Get / Put ---

func TestFileStore_GetMissing(t *testing.T) {
	fs := NewFileStore()

	_, err := fs.Get(t.TempDir(), "feature/42-x")
	if !errors.Is(err, ErrStateNotFound) {
		t.Errorf("Get = %v, want ErrStateNotFound", err)
	}
}

func TestFileStore_PutGetRoundTrip(t *testing.T) {
	fs := NewFileStore()
	root := t.TempDir()

	if err := fs.Put(root, testState("feature/42-x")); err != nil {
		t.Fatalf("Put = %v, want nil", err)
	}

	got, err := fs.Get(root, "feature/42-x")
	if err != nil {
		t.Fatalf("Get = %v, want nil", err)
	}
	if got.IssueNumber != 42 || got.CurrentPhase != workflow.PhaseResearch {
		t.Errorf("Get = %+v, want the saved state", got)
	}
}

func TestFileStore_PutPreservesOtherBranches(t *testing.T) {
	fs := NewFileStore()
	root := t.TempDir()

	if err := fs.Put(root, testState("feature/42-x")); err != nil {
		t.Fatalf("Put 42 = %v", err)
	}
	other := testState("feature/7-y")
	other.IssueNumber = 7
	if err := fs.Put(root, other); err != nil {
		t.Fatalf("Put 7 = %v", err)
	}

	if _, err := fs.Get(root, "feature/42-x"); err != nil {
		t.Errorf("Get 42 after writing 7 = %v, want nil", err)
	}
	if _, err := fs.Get(root, "feature/7-y"); err != nil {
		t.Errorf("Get 7 = %v, want nil", err)
	}
}

// --- Corruption ---

func TestFileStore_GetCorruptRecord(t *testing.T) {
	fs := NewFileStore()
	root := t.TempDir()
	writeStateFile(t, root, `{"feature/42-x": {"branch": "feature/42-x", "issue_number": -1}}`)

	_, err := fs.Get(root, "feature/42-x")
	var corrupt *StateCorruptError
	if !errors.As(err, &corrupt) {
		t.Fatalf("Get = %v, want StateCorruptError", err)
	}
	if len(corrupt.Raw) == 0 {
		t.Error("StateCorruptError carries no raw record for inspection")
	}
}

func TestFileStore_GetBranchKeyMismatch(t *testing.T) {
	fs := NewFileStore()
	root := t.TempDir()
	writeStateFile(t, root, `{"feature/42-x": {"branch": "feature/9-other", "issue_number": 42, "current_phase": "tdd"}}`)

	_, err := fs.Get(root, "feature/42-x")
	var corrupt *StateCorruptError
	if !errors.As(err, &corrupt) {
		t.Errorf("Get = %v, want StateCorruptError for mismatched keys", err)
	}
}

func TestFileStore_GetCurrentPhaseHistoryMismatch(t *testing.T) {
	fs := NewFileStore()
	root := t.TempDir()
	writeStateFile(t, root, `{"b/42-x": {"branch": "b/42-x", "issue_number": 42, "current_phase": "tdd",
		"transitions": [{"from_phase": "research", "to_phase": "planning"}]}}`)

	_, err := fs.Get(root, "b/42-x")
	var corrupt *StateCorruptError
	if !errors.As(err, &corrupt) {
		t.Errorf("Get = %v, want StateCorruptError when current phase disagrees with history", err)
	}
}

func TestFileStore_UnreadableFileIsCollaboratorUnavailable(t *testing.T) {
	fs := NewFileStore()
	root := t.TempDir()

	// A directory where state.json should be: reads fail without the
	// file being absent or decodable.
	if err := os.MkdirAll(StatePath(root), 0o755); err != nil {
		t.Fatalf("setup: mkdir: %v", err)
	}

	_, err := fs.Get(root, "feature/42-x")
	var unavailable *CollaboratorUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("Get = %v, want CollaboratorUnavailableError", err)
	}
	if unavailable.Op != "state store" {
		t.Errorf("Op = %q, want state store", unavailable.Op)
	}
}

func TestFileStore_WholeFileCorrupt(t *testing.T) {
	fs := NewFileStore()
	root := t.TempDir()
	writeStateFile(t, root, "{truncated")

	_, err := fs.Get(root, "feature/42-x")
	var corrupt *StateCorruptError
	if !errors.As(err, &corrupt) {
		t.Fatalf("Get = %v, want StateCorruptError for an undecodable file", err)
	}

	// Put must refuse to clobber a corrupt file.
	if err := fs.Put(root, testState("feature/42-x")); err == nil {
		t.Error("Put overwrote a corrupt state file")
	}
}
