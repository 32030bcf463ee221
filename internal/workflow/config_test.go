package workflow

import (
	"os"
	"path/filepath"
	"testing"
)

// writeWorkflows writes a workflows.yaml under root/.waypoint.
func writeWorkflows(t *testing.T, root, content string) {
	t.Helper()
	dir := filepath.Join(root, ".waypoint")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("setup: mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ConfigFile), []byte(content), 0o644); err != nil {
		t.Fatalf("setup: write workflows.yaml: %v", err)
	}
}

// --- LoadConfig ---

func TestLoadConfig_MissingFileUsesBuiltins(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig = %v, want nil", err)
	}

	def, ok := cfg.Definition("feature")
	if !ok {
		t.Fatal("builtin workflow 'feature' not found")
	}
	if len(def.Phases) != 6 {
		t.Errorf("feature has %d phases, want 6", len(def.Phases))
	}
}

func TestLoadConfig_InvalidYAMLFails(t *testing.T) {
	root := t.TempDir()
	writeWorkflows(t, root, "workflows: [\n")

	if _, err := LoadConfig(root); err == nil {
		t.Error("LoadConfig accepted malformed YAML")
	}
}

func TestLoadConfig_InvalidWorkflowFails(t *testing.T) {
	root := t.TempDir()
	writeWorkflows(t, root, `workflows:
  - name: broken
    phases: []
`)

	if _, err := LoadConfig(root); err == nil {
		t.Error("LoadConfig accepted a workflow with no phases")
	}
}

func TestLoadConfig_OverrideAddsWorkflow(t *testing.T) {
	root := t.TempDir()
	writeWorkflows(t, root, `workflows:
  - name: hotfix
    phases: [tdd, integration]
`)

	cfg, err := LoadConfig(root)
	if err != nil {
		t.Fatalf("LoadConfig = %v, want nil", err)
	}

	def, ok := cfg.Definition("hotfix")
	if !ok {
		t.Fatal("override workflow 'hotfix' not found")
	}
	if len(def.Phases) != 2 || def.Phases[0] != PhaseTDD {
		t.Errorf("hotfix phases = %v, want [tdd integration]", def.Phases)
	}

	// Built-ins survive alongside the override.
	if _, ok := cfg.Definition("bug"); !ok {
		t.Error("builtin 'bug' lost after loading overrides")
	}
}

func TestLoadConfig_OverrideReplacesBuiltin(t *testing.T) {
	root := t.TempDir()
	writeWorkflows(t, root, `workflows:
  - name: bug
    phases: [tdd, documentation]
`)

	cfg, err := LoadConfig(root)
	if err != nil {
		t.Fatalf("LoadConfig = %v, want nil", err)
	}

	def, _ := cfg.Definition("bug")
	if len(def.Phases) != 2 {
		t.Errorf("overridden bug has %d phases, want 2", len(def.Phases))
	}
}

func TestLoadConfig_OverrideConventions(t *testing.T) {
	root := t.TempDir()
	writeWorkflows(t, root, `workflows:
  - name: spike
    phases: [research, tdd]
    conventions:
      research:
        prefixes: ["spike:"]
`)

	cfg, err := LoadConfig(root)
	if err != nil {
		t.Fatalf("LoadConfig = %v, want nil", err)
	}

	def, _ := cfg.Definition("spike")
	c, ok := def.Convention(PhaseResearch)
	if !ok || len(c.Prefixes) != 1 || c.Prefixes[0] != "spike:" {
		t.Errorf("spike research convention = %v (%v), want [spike:]", c.Prefixes, ok)
	}

	// Phases without an override fall back to the defaults.
	c, ok = def.Convention(PhaseTDD)
	if !ok || len(c.Prefixes) != 3 {
		t.Errorf("spike tdd convention = %v (%v), want built-in defaults", c.Prefixes, ok)
	}
}

// --- Freshness ---

func TestConfig_PicksUpFileEdits(t *testing.T) {
	root := t.TempDir()
	cfg, err := LoadConfig(root)
	if err != nil {
		t.Fatalf("LoadConfig = %v, want nil", err)
	}
	if _, ok := cfg.Definition("hotfix"); ok {
		t.Fatal("hotfix exists before the override file was written")
	}

	writeWorkflows(t, root, `workflows:
  - name: hotfix
    phases: [tdd, integration]
`)

	if _, ok := cfg.Definition("hotfix"); !ok {
		t.Error("Definition did not pick up the newly written workflows.yaml")
	}
}

func TestConfig_BadEditKeepsPreviousView(t *testing.T) {
	root := t.TempDir()
	writeWorkflows(t, root, `workflows:
  - name: hotfix
    phases: [tdd, integration]
`)

	cfg, err := LoadConfig(root)
	if err != nil {
		t.Fatalf("LoadConfig = %v, want nil", err)
	}

	// A half-saved file must not wipe the running definitions.
	writeWorkflows(t, root, "workflows: [\n")

	if _, ok := cfg.Definition("hotfix"); !ok {
		t.Error("a broken edit wiped the previously loaded definitions")
	}
}

func TestConfig_ReloadFailsOnBrokenFile(t *testing.T) {
	root := t.TempDir()
	cfg, err := LoadConfig(root)
	if err != nil {
		t.Fatalf("LoadConfig = %v, want nil", err)
	}

	writeWorkflows(t, root, "workflows: [\n")

	if err := cfg.Reload(); err == nil {
		t.Error("Reload accepted malformed YAML")
	}
}

// --- Names ---

func TestNames_SortedWithOverrides(t *testing.T) {
	root := t.TempDir()
	writeWorkflows(t, root, `workflows:
  - name: aardvark
    phases: [tdd]
`)

	cfg, err := LoadConfig(root)
	if err != nil {
		t.Fatalf("LoadConfig = %v, want nil", err)
	}

	names := cfg.Names()
	want := []string{"aardvark", "bug", "epic", "feature", "refactor"}
	if len(names) != len(want) {
		t.Fatalf("Names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}
