// Package task implements tasks and the dependency graph between them. The
// graph is directed and must stay acyclic: an edge (blocked, blocker) means
// blocked cannot complete while blocker is not done.
package task

import (
	"context"
	"strings"
	"time"

	"peopledesk.org/internal/domain"
	"peopledesk.org/internal/tenant"
)

// Status of a task.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
)

func validStatus(s Status) bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Task is a task row.
type Task struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	Title          string     `json:"title"`
	Status         Status     `json:"status"`
	AssigneeID     string     `json:"assignee_id,omitempty"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Dependency is a directed edge: Blocked waits on Blocker.
type Dependency struct {
	BlockedID string `json:"blocked_id"`
	BlockerID string `json:"blocker_id"`
}

// Store is the persistence surface, organization-scoped throughout.
type Store interface {
	Insert(ctx context.Context, scope tenant.Scope, t *Task) error
	Get(ctx context.Context, scope tenant.Scope, id string) (Task, error)
	List(ctx context.Context, scope tenant.Scope) ([]Task, error)
	SetStatus(ctx context.Context, scope tenant.Scope, id string, status Status) error
	InsertDependency(ctx context.Context, scope tenant.Scope, dep Dependency) error
	// DeleteDependency is idempotent: removing a missing edge is not an error.
	DeleteDependency(ctx context.Context, scope tenant.Scope, dep Dependency) error
	// Dependencies returns every edge in the organization's graph.
	Dependencies(ctx context.Context, scope tenant.Scope) ([]Dependency, error)
	// Blockers returns the tasks the given task directly waits on.
	Blockers(ctx context.Context, scope tenant.Scope, id string) ([]Task, error)
}

// Service enforces the graph invariants.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService constructs the task service.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Create files a new task.
func (s *Service) Create(ctx context.Context, scope tenant.Scope, title, assigneeID string, due *time.Time) (Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Task{}, domain.Invalid("title", "is required")
	}
	t := Task{
		Title:      title,
		Status:     StatusTodo,
		AssigneeID: strings.TrimSpace(assigneeID),
		DueDate:    due,
		CreatedAt:  s.now().UTC(),
	}
	t.UpdatedAt = t.CreatedAt
	if err := s.store.Insert(ctx, scope, &t); err != nil {
		return Task{}, err
	}
	return t, nil
}

// Get returns one task within the scope.
func (s *Service) Get(ctx context.Context, scope tenant.Scope, id string) (Task, error) {
	return s.store.Get(ctx, scope, id)
}

// List returns the organization's tasks.
func (s *Service) List(ctx context.Context, scope tenant.Scope) ([]Task, error) {
	return s.store.List(ctx, scope)
}

// SetStatus updates a task's status.
func (s *Service) SetStatus(ctx context.Context, scope tenant.Scope, id string, status Status) error {
	if !validStatus(status) {
		return domain.Invalid("status", "must be todo, in_progress or done")
	}
	return s.store.SetStatus(ctx, scope, id, status)
}

// AddDependency records that blocked waits on blocker. Self-edges are
// rejected outright; any edge that would close a directed cycle is rejected
// before insertion, leaving the graph unchanged.
func (s *Service) AddDependency(ctx context.Context, scope tenant.Scope, blockedID, blockerID string) error {
	if blockedID == blockerID {
		return domain.Invalid("dependency", "a task cannot depend on itself")
	}
	// Both endpoints must exist in this organization; a foreign id reads as
	// not found.
	if _, err := s.store.Get(ctx, scope, blockedID); err != nil {
		return err
	}
	if _, err := s.store.Get(ctx, scope, blockerID); err != nil {
		return err
	}

	edges, err := s.store.Dependencies(ctx, scope)
	if err != nil {
		return err
	}
	if reachable(edges, blockerID, blockedID) {
		return domain.Invalid("dependency", "would create a dependency cycle")
	}
	return s.store.InsertDependency(ctx, scope, Dependency{BlockedID: blockedID, BlockerID: blockerID})
}

// reachable walks from start through blocker edges and reports whether
// target is on the path. If blocked is reachable from blocker, the new edge
// (blocked → blocker) would close a cycle.
func reachable(edges []Dependency, start, target string) bool {
	blockersOf := make(map[string][]string, len(edges))
	for _, e := range edges {
		blockersOf[e.BlockedID] = append(blockersOf[e.BlockedID], e.BlockerID)
	}
	seen := map[string]bool{start: true}
	stack := []string{start}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == target {
			return true
		}
		for _, next := range blockersOf[cur] {
			if !seen[next] {
				seen[next] = true
				stack = append(stack, next)
			}
		}
	}
	return false
}

// RemoveDependency deletes an edge; removing a missing edge succeeds.
func (s *Service) RemoveDependency(ctx context.Context, scope tenant.Scope, blockedID, blockerID string) error {
	return s.store.DeleteDependency(ctx, scope, Dependency{BlockedID: blockedID, BlockerID: blockerID})
}

// Blockers returns the tasks that must finish before this one can start.
func (s *Service) Blockers(ctx context.Context, scope tenant.Scope, id string) ([]Task, error) {
	if _, err := s.store.Get(ctx, scope, id); err != nil {
		return nil, err
	}
	return s.store.Blockers(ctx, scope, id)
}

// Ready reports whether every blocker of the task is done. It is derived,
// never stored.
func (s *Service) Ready(ctx context.Context, scope tenant.Scope, id string) (bool, error) {
	if _, err := s.store.Get(ctx, scope, id); err != nil {
		return false, err
	}
	blockers, err := s.store.Blockers(ctx, scope, id)
	if err != nil {
		return false, err
	}
	for _, b := range blockers {
		if b.Status != StatusDone {
			return false, nil
		}
	}
	return true, nil
}
