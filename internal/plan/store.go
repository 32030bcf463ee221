package plan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DataDir is the subdirectory under the project root where waypoint
	// keeps its persisted records.
	DataDir = ".waypoint"
	// PlansFile is the filename for the issue → plan mapping.
	PlansFile = "plans.json"
)

// Store defines the persistence interface for the plan mapping.
// Abstracted for testability (DIP).
type Store interface {
	Load(projectRoot string) (map[string]*Plan, error)
	Save(projectRoot string, plans map[string]*Plan) error
}

// FileStore implements Store as a single JSON file mapping
// issue-number strings to plans.
type FileStore struct{}

// NewFileStore creates a filesystem-backed plan store.
func NewFileStore() *FileStore {
	return &FileStore{}
}

// PlansPath returns the absolute path to .waypoint/plans.json.
func PlansPath(projectRoot string) string {
	return filepath.Join(projectRoot, DataDir, PlansFile)
}

// Load reads the full plan mapping. A missing file yields an empty map;
// an undecodable file is corruption and surfaces with the raw content
// rather than being clobbered by the next write.
func (fs *FileStore) Load(projectRoot string) (map[string]*Plan, error) {
	path := PlansPath(projectRoot)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]*Plan{}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	plans := map[string]*Plan{}
	if err := json.Unmarshal(data, &plans); err != nil {
		return nil, &PlanCorruptError{Raw: data, Err: fmt.Errorf("parsing %s: %w", path, err)}
	}
	return plans, nil
}

// Save writes the full plan mapping. The write is atomic (temp file +
// rename) so a crash mid-write never leaves a truncated mapping behind.
func (fs *FileStore) Save(projectRoot string, plans map[string]*Plan) error {
	data, err := json.MarshalIndent(plans, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling plans: %w", err)
	}

	path := PlansPath(projectRoot)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), PlansFile+".tmp-*")
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
