// Package workflow defines the named development workflows waypoint tracks
// and the commit-message conventions used to recognize their phases.
//
// A workflow is an ordered, non-empty sequence of phases. Project plans
// resolve their required phases from a workflow definition at creation time;
// the phase engine never invents phases outside that sequence.
//
// This package follows the same design principles as the rest of waypoint:
// - SRP: definitions and the config loader live in separate files
// - DIP: consumers receive a *Config; there is no package-global singleton
// - OCP: new workflows can be added via workflows.yaml without code changes
package workflow

import (
	"fmt"
	"strings"
)

// --- Phase enum ---

// Phase is a named stage in a workflow's ordered sequence.
type Phase string

const (
	PhaseResearch      Phase = "research"
	PhasePlanning      Phase = "planning"
	PhaseDesign        Phase = "design"
	PhaseTDD           Phase = "tdd"
	PhaseIntegration   Phase = "integration"
	PhaseDocumentation Phase = "documentation"
)

// --- Execution mode enum ---

// ExecutionMode governs whether transitions require human approval.
type ExecutionMode string

const (
	ModeInteractive ExecutionMode = "interactive"
	ModeAutonomous  ExecutionMode = "autonomous"
)

// validModes is the set of allowed execution modes.
var validModes = map[ExecutionMode]bool{
	ModeInteractive: true,
	ModeAutonomous:  true,
}

// ValidateMode returns an error if the mode is not recognized.
func ValidateMode(m ExecutionMode) error {
	if !validModes[m] {
		return fmt.Errorf("invalid execution mode %q: must be one of: interactive, autonomous", m)
	}
	return nil
}

// --- Commit-message conventions ---

// Convention describes how commits signal that a branch has reached a phase.
// Prefixes are compared against the commit's conventional type token, so
// "test:" matches "test(engine): add coverage" as well as "test: add coverage".
type Convention struct {
	Prefixes []string `yaml:"prefixes"`

	// Weak marks prefixes that appear throughout a branch's life
	// (docs, chore). A weak match decides the inferred phase only
	// when no strong prefix matched anywhere in the window.
	Weak bool `yaml:"weak,omitempty"`
}

// defaultConventions maps each built-in phase to its commit prefixes.
// The documentation convention is weak: notes get updated mid-work, so a
// docs commit alone must not outvote an implementation-bearing commit.
var defaultConventions = map[Phase]Convention{
	PhaseResearch:      {Prefixes: []string{"research:"}},
	PhasePlanning:      {Prefixes: []string{"plan:"}},
	PhaseDesign:        {Prefixes: []string{"design:"}},
	PhaseTDD:           {Prefixes: []string{"test:", "feat:", "fix:"}},
	PhaseIntegration:   {Prefixes: []string{"refactor:", "ci:", "build:"}},
	PhaseDocumentation: {Prefixes: []string{"docs:"}, Weak: true},
}

// DefaultConvention returns the built-in convention for a phase.
// The second return is false for phases with no built-in convention.
func DefaultConvention(p Phase) (Convention, bool) {
	c, ok := defaultConventions[p]
	return copyConvention(c), ok
}

// --- Workflow definitions ---

// Definition is a named workflow: its ordered phases and, optionally,
// per-phase conventions overriding the built-in ones.
type Definition struct {
	Name        string               `yaml:"name"`
	Phases      []Phase              `yaml:"phases"`
	Conventions map[Phase]Convention `yaml:"conventions,omitempty"`
}

// Validate checks the structural invariants every definition must satisfy:
// a non-empty name and a non-empty phase sequence with unique phase names.
func (d Definition) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("workflow name must not be empty")
	}
	if len(d.Phases) == 0 {
		return fmt.Errorf("workflow %q has no phases", d.Name)
	}
	seen := make(map[Phase]bool, len(d.Phases))
	for _, p := range d.Phases {
		if strings.TrimSpace(string(p)) == "" {
			return fmt.Errorf("workflow %q contains an empty phase name", d.Name)
		}
		if seen[p] {
			return fmt.Errorf("workflow %q lists phase %q twice", d.Name, p)
		}
		seen[p] = true
	}
	return nil
}

// PhaseIndex returns the ordinal position of p in the definition's
// phase sequence, or -1 if p is not part of the workflow.
func (d Definition) PhaseIndex(p Phase) int {
	for i, phase := range d.Phases {
		if phase == p {
			return i
		}
	}
	return -1
}

// Convention returns the convention for a phase, falling back to the
// built-in defaults when the definition doesn't override it.
func (d Definition) Convention(p Phase) (Convention, bool) {
	if c, ok := d.Conventions[p]; ok {
		return copyConvention(c), true
	}
	return DefaultConvention(p)
}

// builtins defines the closed set of workflows available without any
// workflows.yaml override. Each sequence is a subset of the full
// research → planning → design → tdd → integration → documentation order.
var builtins = map[string]Definition{
	"feature": {
		Name:   "feature",
		Phases: []Phase{PhaseResearch, PhasePlanning, PhaseDesign, PhaseTDD, PhaseIntegration, PhaseDocumentation},
	},
	"bug": {
		Name:   "bug",
		Phases: []Phase{PhaseResearch, PhaseTDD, PhaseIntegration, PhaseDocumentation},
	},
	"refactor": {
		Name:   "refactor",
		Phases: []Phase{PhasePlanning, PhaseDesign, PhaseTDD, PhaseIntegration},
	},
	"epic": {
		Name:   "epic",
		Phases: []Phase{PhaseResearch, PhasePlanning, PhaseTDD, PhaseIntegration, PhaseDocumentation},
	},
}

// builtinDefinitions returns a deep copy of the built-in workflows so
// callers can never mutate the registry.
func builtinDefinitions() map[string]Definition {
	out := make(map[string]Definition, len(builtins))
	for name, def := range builtins {
		out[name] = copyDefinition(def)
	}
	return out
}

func copyDefinition(d Definition) Definition {
	cp := Definition{Name: d.Name}
	cp.Phases = make([]Phase, len(d.Phases))
	copy(cp.Phases, d.Phases)
	if d.Conventions != nil {
		cp.Conventions = make(map[Phase]Convention, len(d.Conventions))
		for p, c := range d.Conventions {
			cp.Conventions[p] = copyConvention(c)
		}
	}
	return cp
}

func copyConvention(c Convention) Convention {
	cp := Convention{Weak: c.Weak}
	cp.Prefixes = make([]string, len(c.Prefixes))
	copy(cp.Prefixes, c.Prefixes)
	return cp
}
