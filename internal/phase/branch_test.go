package phase

import (
	"errors"
	"testing"
)

// --- IssueFromBranch ---

func TestIssueFromBranch_CommonShapes(t *testing.T) {
	cases := []struct {
		branch string
		want   int
	}{
		{"feature/42-add-login", 42},
		{"bugfix/7/retry-loop", 7},
		{"epic/91-test-suite-cleanup", 91},
		{"42-fix-crash", 42},
		{"hotfix/1003", 1003},
		{"team/feature/58-rollout", 58},
	}
	for _, c := range cases {
		got, err := IssueFromBranch(c.branch)
		if err != nil {
			t.Errorf("IssueFromBranch(%q) = %v, want %d", c.branch, err, c.want)
			continue
		}
		if got != c.want {
			t.Errorf("IssueFromBranch(%q) = %d, want %d", c.branch, got, c.want)
		}
	}
}

func TestIssueFromBranch_FirstTokenWins(t *testing.T) {
	got, err := IssueFromBranch("feature/42-fix-502-errors")
	if err != nil {
		t.Fatalf("IssueFromBranch = %v, want 42", err)
	}
	if got != 42 {
		t.Errorf("IssueFromBranch = %d, want 42", got)
	}
}

func TestIssueFromBranch_NoIssue(t *testing.T) {
	for _, branch := range []string{"main", "develop", "release/v2", "feature/login", ""} {
		_, err := IssueFromBranch(branch)
		var bad *BranchFormatError
		if !errors.As(err, &bad) {
			t.Errorf("IssueFromBranch(%q) = %v, want BranchFormatError", branch, err)
		}
	}
}

func TestIssueFromBranch_UndelimitedDigitsRejected(t *testing.T) {
	// Digits glued to a word are part of the word, not an issue number.
	if _, err := IssueFromBranch("feature/v2migration"); err == nil {
		t.Error("IssueFromBranch accepted digits embedded in a word")
	}
}
