// Package onboard implements onboarding and offboarding checklists. A
// template holds an ordered list of steps; starting a run snapshots the
// steps, so later template edits never change runs already in flight.
package onboard

import (
	"context"
	"strings"
	"time"

	"peopledesk.org/internal/auth"
	"peopledesk.org/internal/domain"
	"peopledesk.org/internal/tenant"
)

// Kind distinguishes the two checklist directions.
type Kind string

const (
	KindOnboarding  Kind = "onboarding"
	KindOffboarding Kind = "offboarding"
)

func validKind(k Kind) bool {
	return k == KindOnboarding || k == KindOffboarding
}

// Step is one checklist item inside a template.
type Step struct {
	Title        string    `json:"title"`
	Required     bool      `json:"required"`
	AssigneeRole auth.Role `json:"assignee_role,omitempty"`
}

// Template is a reusable checklist definition.
type Template struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	Kind           Kind      `json:"kind"`
	Steps          []Step    `json:"steps"`
	CreatedAt      time.Time `json:"created_at"`
}

// RunStatus of a checklist run.
type RunStatus string

const (
	RunInProgress RunStatus = "in_progress"
	RunCompleted  RunStatus = "completed"
)

// RunStep is a snapshotted step with completion state.
type RunStep struct {
	Title        string     `json:"title"`
	Required     bool       `json:"required"`
	AssigneeRole auth.Role  `json:"assignee_role,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CompletedBy  string     `json:"completed_by,omitempty"`
}

// Run is a checklist instance for one user.
type Run struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	TemplateID     string     `json:"template_id"`
	UserID         string     `json:"user_id"`
	Kind           Kind       `json:"kind"`
	Status         RunStatus  `json:"status"`
	Steps          []RunStep  `json:"steps"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// Store persists templates and runs within an organization.
type Store interface {
	InsertTemplate(ctx context.Context, scope tenant.Scope, tpl *Template) error
	GetTemplate(ctx context.Context, scope tenant.Scope, id string) (Template, error)
	ListTemplates(ctx context.Context, scope tenant.Scope) ([]Template, error)
	InsertRun(ctx context.Context, scope tenant.Scope, run *Run) error
	GetRun(ctx context.Context, scope tenant.Scope, id string) (Run, error)
	ListRuns(ctx context.Context, scope tenant.Scope) ([]Run, error)
	ListRunsByUser(ctx context.Context, scope tenant.Scope, userID string) ([]Run, error)
	// UpdateRun persists step state and status for an existing run.
	UpdateRun(ctx context.Context, scope tenant.Scope, run Run) error
}

// Service manages checklist templates and runs.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService constructs the onboarding service.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// CreateTemplate defines a new checklist template. Step order is preserved.
func (s *Service) CreateTemplate(ctx context.Context, scope tenant.Scope, name string, kind Kind, steps []Step) (Template, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Template{}, domain.Invalid("name", "is required")
	}
	if !validKind(kind) {
		return Template{}, domain.Invalid("kind", "must be onboarding or offboarding")
	}
	if len(steps) == 0 {
		return Template{}, domain.Invalid("steps", "at least one step is required")
	}
	for _, st := range steps {
		if strings.TrimSpace(st.Title) == "" {
			return Template{}, domain.Invalid("steps", "every step needs a title")
		}
		if st.AssigneeRole != "" && !st.AssigneeRole.Valid() {
			return Template{}, domain.Invalid("steps", "unknown assignee role")
		}
	}
	tpl := Template{
		Name:      name,
		Kind:      kind,
		Steps:     steps,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.InsertTemplate(ctx, scope, &tpl); err != nil {
		return Template{}, err
	}
	return tpl, nil
}

// GetTemplate returns one template within the scope.
func (s *Service) GetTemplate(ctx context.Context, scope tenant.Scope, id string) (Template, error) {
	return s.store.GetTemplate(ctx, scope, id)
}

// ListTemplates returns the organization's templates.
func (s *Service) ListTemplates(ctx context.Context, scope tenant.Scope) ([]Template, error) {
	return s.store.ListTemplates(ctx, scope)
}

// Start begins a run for a user by snapshotting the template's steps.
func (s *Service) Start(ctx context.Context, scope tenant.Scope, templateID, userID string) (Run, error) {
	if strings.TrimSpace(userID) == "" {
		return Run{}, domain.Invalid("user_id", "is required")
	}
	tpl, err := s.store.GetTemplate(ctx, scope, templateID)
	if err != nil {
		return Run{}, err
	}
	steps := make([]RunStep, len(tpl.Steps))
	for i, st := range tpl.Steps {
		steps[i] = RunStep{Title: st.Title, Required: st.Required, AssigneeRole: st.AssigneeRole}
	}
	run := Run{
		TemplateID: tpl.ID,
		UserID:     userID,
		Kind:       tpl.Kind,
		Status:     RunInProgress,
		Steps:      steps,
		StartedAt:  s.now().UTC(),
	}
	if err := s.store.InsertRun(ctx, scope, &run); err != nil {
		return Run{}, err
	}
	return run, nil
}

// GetRun returns one run within the scope.
func (s *Service) GetRun(ctx context.Context, scope tenant.Scope, id string) (Run, error) {
	return s.store.GetRun(ctx, scope, id)
}

// ListRuns returns the organization's runs.
func (s *Service) ListRuns(ctx context.Context, scope tenant.Scope) ([]Run, error) {
	return s.store.ListRuns(ctx, scope)
}

// ListRunsByUser returns one user's runs.
func (s *Service) ListRunsByUser(ctx context.Context, scope tenant.Scope, userID string) ([]Run, error) {
	return s.store.ListRunsByUser(ctx, scope, userID)
}

// CompleteStep marks step idx of the run done. Completing a step twice is a
// no-op. The run flips to completed once every required step is done;
// optional steps never hold it back.
func (s *Service) CompleteStep(ctx context.Context, scope tenant.Scope, runID string, idx int) (Run, error) {
	run, err := s.store.GetRun(ctx, scope, runID)
	if err != nil {
		return Run{}, err
	}
	if idx < 0 || idx >= len(run.Steps) {
		return Run{}, domain.Invalid("step", "index out of range")
	}
	if run.Steps[idx].CompletedAt != nil {
		return run, nil
	}
	now := s.now().UTC()
	run.Steps[idx].CompletedAt = &now
	run.Steps[idx].CompletedBy = scope.Principal().ID

	if run.Status == RunInProgress && requiredDone(run.Steps) {
		run.Status = RunCompleted
		run.CompletedAt = &now
	}
	if err := s.store.UpdateRun(ctx, scope, run); err != nil {
		return Run{}, err
	}
	return run, nil
}

func requiredDone(steps []RunStep) bool {
	for _, st := range steps {
		if st.Required && st.CompletedAt == nil {
			return false
		}
	}
	return true
}
