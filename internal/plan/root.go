package plan

import (
	"fmt"
	"os"
	"path/filepath"
)

// FindRoot walks up from the current working directory looking for an
// existing .waypoint/ directory and returns the directory holding it.
// If none is found it returns the working directory itself — the first
// initializing write then creates .waypoint there. This lets every
// entry point work from any subdirectory of the project.
func FindRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}

	current := dir
	for {
		candidate := filepath.Join(current, DataDir)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return current, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			// Reached the filesystem root with no project marker.
			return dir, nil
		}
		current = parent
	}
}
