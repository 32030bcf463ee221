// Package git is waypoint's read-only view of the repository: the
// current branch name and a bounded window of recent commit messages.
// The phase engine consumes this view during recovery; nothing in
// waypoint ever mutates the repository.
package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// ErrUnavailable reports that history cannot be supplied for this
// repository state (detached HEAD, unresolvable ref, cancelled walk).
// Callers in recovery paths catch it and degrade rather than fail.
var ErrUnavailable = errors.New("git history unavailable")

// History wraps an open repository. go-git object access is not safe for
// concurrent use, so every read holds the mutex.
type History struct {
	repo *gogit.Repository
	mu   sync.Mutex
}

// Open locates the repository containing dir (walking up to find .git,
// so it works from any subdirectory of the worktree).
func Open(dir string) (*History, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting working directory: %w", err)
		}
		dir = wd
	}
	repo, err := gogit.PlainOpenWithOptions(dir, &gogit.PlainOpenOptions{
		DetectDotGit: true,
	})
	if err != nil {
		return nil, fmt.Errorf("not a git repository: %w", err)
	}
	return &History{repo: repo}, nil
}

// NewHistory wraps an already-open repository. Used by tests that build
// throwaway repositories with PlainInit.
func NewHistory(repo *gogit.Repository) *History {
	return &History{repo: repo}
}

// CurrentBranch returns the short name of the branch HEAD points at.
// Works on an empty repository (HEAD still names the unborn branch);
// fails with ErrUnavailable for a detached HEAD.
func (h *History) CurrentBranch() (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ref, err := h.repo.Reference(plumbing.HEAD, false)
	if err != nil {
		return "", fmt.Errorf("%w: reading HEAD: %v", ErrUnavailable, err)
	}
	if ref.Type() != plumbing.SymbolicReference {
		return "", fmt.Errorf("%w: HEAD is detached", ErrUnavailable)
	}
	return ref.Target().Short(), nil
}

// RecentCommits returns up to limit commit messages reachable from the
// branch, most recent first. A valid repository with no commits yields
// an empty slice and no error. Context cancellation aborts the walk with
// ErrUnavailable so callers on a deadline never hang.
func (h *History) RecentCommits(ctx context.Context, branch string, limit int) ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	hash, err := h.resolveBranch(branch)
	if err != nil {
		if h.isEmptyRepo() {
			return nil, nil
		}
		return nil, err
	}

	// BFS from the head with a visited set, same walk shape as a
	// first-parent log but tolerant of merge commits.
	var messages []string
	visited := make(map[plumbing.Hash]bool)
	queue := []plumbing.Hash{hash}

	for len(queue) > 0 && (limit <= 0 || len(messages) < limit) {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
		default:
		}

		head := queue[0]
		queue = queue[1:]
		if visited[head] {
			continue
		}
		visited[head] = true

		commit, err := h.repo.CommitObject(head)
		if err != nil {
			return nil, fmt.Errorf("%w: reading commit %s: %v", ErrUnavailable, head, err)
		}
		messages = append(messages, commit.Message)

		for _, parent := range commit.ParentHashes {
			if !visited[parent] {
				queue = append(queue, parent)
			}
		}
	}

	return messages, nil
}

// resolveBranch resolves a branch name to a commit hash, trying local
// heads, then origin remotes, then anything ResolveRevision understands.
func (h *History) resolveBranch(branch string) (plumbing.Hash, error) {
	if ref, err := h.repo.Reference(plumbing.ReferenceName("refs/heads/"+branch), true); err == nil {
		return ref.Hash(), nil
	}
	if ref, err := h.repo.Reference(plumbing.ReferenceName("refs/remotes/origin/"+branch), true); err == nil {
		return ref.Hash(), nil
	}
	if hash, err := h.repo.ResolveRevision(plumbing.Revision(branch)); err == nil {
		return *hash, nil
	}
	return plumbing.ZeroHash, fmt.Errorf("%w: cannot resolve branch %q", ErrUnavailable, branch)
}

// isEmptyRepo reports whether the repository has no commits yet.
// Head resolution fails with ErrReferenceNotFound on an unborn branch.
func (h *History) isEmptyRepo() bool {
	_, err := h.repo.Head()
	return errors.Is(err, plumbing.ErrReferenceNotFound)
}
