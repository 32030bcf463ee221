package phase

import (
	"regexp"
	"strings"

	"waypoint/internal/workflow"
)

// commitTypeRE captures a conventional-commit type token, tolerating a
// scope and a breaking-change marker: "feat(api)!: ..." → "feat".
var commitTypeRE = regexp.MustCompile(`^([a-z]+)(?:\([^)]*\))?!?:`)

// commitType normalizes a commit message to its bare "type:" token, or
// returns "" when the message doesn't follow the convention.
func commitType(message string) string {
	m := commitTypeRE.FindStringSubmatch(strings.ToLower(strings.TrimSpace(message)))
	if m == nil {
		return ""
	}
	return m[1] + ":"
}

// InferPhase reconstructs the most advanced phase consistent with the
// observed commit messages. It is pure and deterministic: same phases,
// same conventions, same messages — same answer.
//
// The rule: the furthest phase along the sequence whose convention
// matches any message in the window wins, with one refinement — phases
// whose convention is weak (docs-style housekeeping prefixes that appear
// throughout a branch's life) only decide the result when no strong
// convention matched at all. A lone "docs: update notes" above a "test:"
// commit therefore infers tdd, not documentation.
//
// If nothing matches, the first phase is returned. Commit conventions are
// conventions, not guarantees: the result is a reasonable default, and
// callers treat it as provisional.
func InferPhase(def workflow.Definition, messages []string) workflow.Phase {
	types := make(map[string]bool, len(messages))
	for _, msg := range messages {
		if t := commitType(msg); t != "" {
			types[t] = true
		}
	}

	strong, weak := -1, -1
	for i, p := range def.Phases {
		conv, ok := def.Convention(p)
		if !ok {
			continue
		}
		matched := false
		for _, prefix := range conv.Prefixes {
			if types[strings.ToLower(prefix)] {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		if conv.Weak {
			weak = i
		} else {
			strong = i
		}
	}

	switch {
	case strong >= 0:
		return def.Phases[strong]
	case weak >= 0:
		return def.Phases[weak]
	default:
		return def.Phases[0]
	}
}
