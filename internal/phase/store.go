package phase

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"waypoint/internal/plan"
)

// StateFile is the filename for the branch → state mapping under .waypoint/.
const StateFile = "state.json"

// ErrStateNotFound reports that a branch has no persisted state. The
// engine treats it as the signal to start recovery, not as a failure.
var ErrStateNotFound = errors.New("branch state not found")

// ErrAlreadyInitialized reports an explicit init of a branch that
// already has state.
var ErrAlreadyInitialized = errors.New("branch already has state")

// Store defines the persistence interface for branch state.
// Abstracted for testability (DIP).
type Store interface {
	Get(projectRoot, branch string) (*BranchState, error)
	Put(projectRoot string, state *BranchState) error
}

// FileStore implements Store as a single JSON file mapping branch names
// to state records.
type FileStore struct{}

// NewFileStore creates a filesystem-backed state store.
func NewFileStore() *FileStore {
	return &FileStore{}
}

// StatePath returns the absolute path to .waypoint/state.json.
func StatePath(projectRoot string) string {
	return filepath.Join(projectRoot, plan.DataDir, StateFile)
}

// Get reads one branch's state. Returns ErrStateNotFound when the branch
// has no entry, StateCorruptError when the entry (or the whole file)
// cannot be decoded or violates the record invariants.
func (fs *FileStore) Get(projectRoot, branch string) (*BranchState, error) {
	entries, err := fs.load(projectRoot, branch)
	if err != nil {
		return nil, err
	}

	raw, ok := entries[branch]
	if !ok {
		return nil, fmt.Errorf("branch %q: %w", branch, ErrStateNotFound)
	}

	var st BranchState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, &StateCorruptError{Branch: branch, Raw: raw, Err: err}
	}
	if err := st.validate(branch); err != nil {
		return nil, &StateCorruptError{Branch: branch, Raw: raw, Err: err}
	}
	return &st, nil
}

// Put writes one branch's state, keeping every other entry intact.
// The write is atomic (temp file + rename): either the new mapping is
// fully on disk or the old one is untouched.
func (fs *FileStore) Put(projectRoot string, state *BranchState) error {
	entries, err := fs.load(projectRoot, state.Branch)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshaling state for %q: %w", state.Branch, err)
	}
	entries[state.Branch] = raw

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling state mapping: %w", err)
	}

	path := StatePath(projectRoot)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), StateFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

// load reads the raw branch → record mapping. A missing file yields an
// empty mapping; an undecodable file is corruption and must surface with
// the raw content rather than be clobbered by the next write.
func (fs *FileStore) load(projectRoot, branch string) (map[string]json.RawMessage, error) {
	path := StatePath(projectRoot)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]json.RawMessage{}, nil
		}
		// The file exists but cannot be read: the persistence layer is
		// unavailable, which is a different failure than corruption.
		return nil, &CollaboratorUnavailableError{Op: "state store", Err: fmt.Errorf("reading %s: %w", path, err)}
	}

	entries := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, &StateCorruptError{Branch: branch, Raw: data, Err: err}
	}
	return entries, nil
}
