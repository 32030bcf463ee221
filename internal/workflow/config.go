package workflow

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFile is the optional workflow override file under .waypoint/.
const ConfigFile = "workflows.yaml"

// Config is the merged view of built-in workflows plus the optional
// workflows.yaml override file.
//
// The override file is keyed by a freshness token (mtime + size) that is
// checked on every read: editing workflows.yaml takes effect on the next
// lookup without restarting the server. Reload is the manual escape hatch
// for cases the token cannot see (e.g. a same-second rewrite).
type Config struct {
	path string

	mu      sync.Mutex
	defs    map[string]Definition
	modTime time.Time
	size    int64
	checked bool
}

// fileConfig is the on-disk workflows.yaml shape.
type fileConfig struct {
	Workflows []Definition `yaml:"workflows"`
}

// ConfigPath returns the absolute path to the workflow override file.
func ConfigPath(projectRoot string) string {
	return filepath.Join(projectRoot, ".waypoint", ConfigFile)
}

// LoadConfig builds a Config rooted at the given project directory.
// A missing workflows.yaml is not an error — built-ins apply unchanged.
// A present but invalid file is an error: silently ignoring a typo'd
// override would hand out the wrong phase sequences.
func LoadConfig(projectRoot string) (*Config, error) {
	c := &Config{path: ConfigPath(projectRoot)}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Definition returns the workflow with the given name, refreshing from
// workflows.yaml first if the file changed since the last read.
func (c *Config) Definition(name string) (Definition, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.refreshLocked()
	def, ok := c.defs[name]
	if !ok {
		return Definition{}, false
	}
	return copyDefinition(def), true
}

// Names returns the sorted names of all known workflows.
func (c *Config) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.refreshLocked()
	names := make([]string, 0, len(c.defs))
	for name := range c.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reload forces a re-read of workflows.yaml regardless of the freshness
// token and fails on an invalid file.
func (c *Config) Reload() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadLocked()
}

// refreshLocked re-reads the override file only when its freshness token
// changed. Errors during a background refresh keep the previous merged
// view — a half-saved file must not wipe the running definitions.
func (c *Config) refreshLocked() {
	info, err := os.Stat(c.path)
	if err != nil {
		if c.checked && c.modTime.IsZero() {
			return // file still absent, built-ins already loaded
		}
		_ = c.loadLocked()
		return
	}
	if c.checked && info.ModTime().Equal(c.modTime) && info.Size() == c.size {
		return
	}
	_ = c.loadLocked()
}

func (c *Config) loadLocked() error {
	defs := builtinDefinitions()

	info, statErr := os.Stat(c.path)
	if statErr != nil {
		if !os.IsNotExist(statErr) {
			return fmt.Errorf("stat %s: %w", c.path, statErr)
		}
		c.defs = defs
		c.modTime = time.Time{}
		c.size = 0
		c.checked = true
		return nil
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", c.path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parsing %s: %w", c.path, err)
	}

	for _, def := range fc.Workflows {
		if err := def.Validate(); err != nil {
			return fmt.Errorf("invalid workflow in %s: %w", c.path, err)
		}
		defs[def.Name] = copyDefinition(def)
	}

	c.defs = defs
	c.modTime = info.ModTime()
	c.size = info.Size()
	c.checked = true
	return nil
}
