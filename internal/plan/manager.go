package plan

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"waypoint/internal/workflow"
)

// Manager is the durable store of plans keyed by issue number.
// It enforces the create-once contract; it never touches branch state.
type Manager struct {
	store Store
	cfg   *workflow.Config

	// mu serializes read-modify-write of the plan mapping so two
	// concurrent Initialize calls cannot both pass the duplicate check.
	mu sync.Mutex
}

// NewManager creates a Manager with the given store and workflow config.
func NewManager(store Store, cfg *workflow.Config) *Manager {
	return &Manager{store: store, cfg: cfg}
}

// Initialize creates the plan for an issue. It fails with
// DuplicateIssueError if a plan already exists — re-initializing is
// rejected, never silently overwritten — and with UnknownWorkflowError
// if no workflow definition provides the named workflow.
func (m *Manager) Initialize(projectRoot string, issue int, title, workflowName string, mode workflow.ExecutionMode) (*Plan, error) {
	if issue <= 0 {
		return nil, fmt.Errorf("issue number must be positive, got %d", issue)
	}
	if mode == "" {
		mode = workflow.ModeInteractive
	}
	if err := workflow.ValidateMode(mode); err != nil {
		return nil, err
	}

	def, ok := m.cfg.Definition(workflowName)
	if !ok {
		return nil, &UnknownWorkflowError{Name: workflowName, Known: m.cfg.Names()}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	plans, err := m.store.Load(projectRoot)
	if err != nil {
		return nil, err
	}

	key := strconv.Itoa(issue)
	if _, exists := plans[key]; exists {
		return nil, &DuplicateIssueError{Issue: issue}
	}

	p := &Plan{
		IssueNumber:    issue,
		IssueTitle:     strings.TrimSpace(title),
		WorkflowName:   def.Name,
		RequiredPhases: def.Phases,
		ExecutionMode:  mode,
		CreatedAt:      timeNow().UTC().Format(time.RFC3339),
	}

	plans[key] = p
	if err := m.store.Save(projectRoot, plans); err != nil {
		return nil, err
	}
	return p.clone(), nil
}

// Get returns the plan for an issue. Pure read; fails with
// PlanNotFoundError if absent and PlanCorruptError if the persisted
// record violates the plan invariants.
func (m *Manager) Get(projectRoot string, issue int) (*Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	plans, err := m.store.Load(projectRoot)
	if err != nil {
		return nil, err
	}

	p, ok := plans[strconv.Itoa(issue)]
	if !ok {
		return nil, &PlanNotFoundError{Issue: issue}
	}
	if err := p.validate(issue); err != nil {
		raw, _ := json.Marshal(p)
		return nil, &PlanCorruptError{Issue: issue, Raw: raw, Err: err}
	}
	return p.clone(), nil
}
