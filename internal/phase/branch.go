package phase

import (
	"regexp"
	"strconv"
)

// Branch names embed their issue number as a delimited numeric token
// after a type prefix: feature/42-add-login, epic/91-test-suite-cleanup,
// bug/7. The first such token wins.
var branchIssueRE = regexp.MustCompile(`(?:^|/)(\d+)(?:[-/]|$)`)

// IssueFromBranch extracts the issue number embedded in a branch name.
// Fails with BranchFormatError when no delimited numeric token exists
// (e.g. "main" or "release/v2").
func IssueFromBranch(branch string) (int, error) {
	m := branchIssueRE.FindStringSubmatch(branch)
	if m == nil {
		return 0, &BranchFormatError{Branch: branch}
	}
	issue, err := strconv.Atoi(m[1])
	if err != nil || issue <= 0 {
		return 0, &BranchFormatError{Branch: branch}
	}
	return issue, nil
}
