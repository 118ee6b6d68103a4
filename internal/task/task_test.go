package task

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"peopledesk.org/internal/auth"
	"peopledesk.org/internal/domain"
	"peopledesk.org/internal/tenant"
)

type stubStore struct {
	seq   int
	tasks map[string]*Task
	edges []Dependency
}

func newStubStore() *stubStore {
	return &stubStore{tasks: map[string]*Task{}}
}

func (s *stubStore) Insert(_ context.Context, scope tenant.Scope, t *Task) error {
	s.seq++
	t.ID = fmt.Sprintf("task-%d", s.seq)
	t.OrganizationID = scope.OrgID()
	cp := *t
	s.tasks[t.ID] = &cp
	return nil
}

func (s *stubStore) Get(_ context.Context, scope tenant.Scope, id string) (Task, error) {
	t, ok := s.tasks[id]
	if !ok || t.OrganizationID != scope.OrgID() {
		return Task{}, domain.ErrNotFound
	}
	return *t, nil
}

func (s *stubStore) List(_ context.Context, scope tenant.Scope) ([]Task, error) {
	var out []Task
	for _, t := range s.tasks {
		if t.OrganizationID == scope.OrgID() {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (s *stubStore) SetStatus(_ context.Context, scope tenant.Scope, id string, status Status) error {
	t, ok := s.tasks[id]
	if !ok || t.OrganizationID != scope.OrgID() {
		return domain.ErrNotFound
	}
	t.Status = status
	return nil
}

func (s *stubStore) InsertDependency(_ context.Context, _ tenant.Scope, dep Dependency) error {
	s.edges = append(s.edges, dep)
	return nil
}

func (s *stubStore) DeleteDependency(_ context.Context, _ tenant.Scope, dep Dependency) error {
	for i, e := range s.edges {
		if e == dep {
			s.edges = append(s.edges[:i], s.edges[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *stubStore) Dependencies(_ context.Context, _ tenant.Scope) ([]Dependency, error) {
	return append([]Dependency(nil), s.edges...), nil
}

func (s *stubStore) Blockers(_ context.Context, scope tenant.Scope, id string) ([]Task, error) {
	var out []Task
	for _, e := range s.edges {
		if e.BlockedID != id {
			continue
		}
		if t, ok := s.tasks[e.BlockerID]; ok && t.OrganizationID == scope.OrgID() {
			out = append(out, *t)
		}
	}
	return out, nil
}

func testScope(t *testing.T) tenant.Scope {
	t.Helper()
	scope, err := tenant.Require(auth.Principal{ID: "u1", Role: auth.RoleManager, OrganizationID: "org-1"})
	if err != nil {
		t.Fatalf("tenant.Require: %v", err)
	}
	return scope
}

func mustCreate(t *testing.T, svc *Service, scope tenant.Scope, title string) Task {
	t.Helper()
	task, err := svc.Create(context.Background(), scope, title, "", nil)
	if err != nil {
		t.Fatalf("create %q: %v", title, err)
	}
	return task
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(newStubStore())
	if _, err := svc.Create(context.Background(), testScope(t), "  ", "", nil); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestAddDependencyRejectsSelf(t *testing.T) {
	store := newStubStore()
	svc := NewService(store)
	scope := testScope(t)
	a := mustCreate(t, svc, scope, "a")

	err := svc.AddDependency(context.Background(), scope, a.ID, a.ID)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for self-dependency, got %v", err)
	}
	if len(store.edges) != 0 {
		t.Fatalf("graph changed: %v", store.edges)
	}
}

func TestAddDependencyRejectsCycles(t *testing.T) {
	store := newStubStore()
	svc := NewService(store)
	scope := testScope(t)
	ctx := context.Background()

	a := mustCreate(t, svc, scope, "a")
	b := mustCreate(t, svc, scope, "b")
	c := mustCreate(t, svc, scope, "c")

	// a waits on b, b waits on c.
	if err := svc.AddDependency(ctx, scope, a.ID, b.ID); err != nil {
		t.Fatalf("a->b: %v", err)
	}
	if err := svc.AddDependency(ctx, scope, b.ID, c.ID); err != nil {
		t.Fatalf("b->c: %v", err)
	}

	// Direct cycle b->a and transitive cycle c->a must both be rejected.
	for _, edge := range []struct{ blocked, blocker string }{
		{b.ID, a.ID},
		{c.ID, a.ID},
		{c.ID, b.ID},
	} {
		before := len(store.edges)
		err := svc.AddDependency(ctx, scope, edge.blocked, edge.blocker)
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("edge %v: expected cycle rejection, got %v", edge, err)
		}
		if len(store.edges) != before {
			t.Fatalf("edge %v: graph changed after rejection", edge)
		}
	}
}

func TestAddDependencyGraphStaysAcyclic(t *testing.T) {
	store := newStubStore()
	svc := NewService(store)
	scope := testScope(t)
	ctx := context.Background()

	var tasks []Task
	for i := 0; i < 6; i++ {
		tasks = append(tasks, mustCreate(t, svc, scope, fmt.Sprintf("t%d", i)))
	}

	// Attempt every ordered pair; some succeed and some are rejected, but
	// the resulting graph must never contain a directed cycle.
	for i := range tasks {
		for j := range tasks {
			if i == j {
				continue
			}
			_ = svc.AddDependency(ctx, scope, tasks[i].ID, tasks[j].ID)
		}
	}

	for _, e := range store.edges {
		if reachable(store.edges, e.BlockerID, e.BlockedID) {
			t.Fatalf("cycle through edge %v", e)
		}
	}
}

func TestAddDependencyUnknownTask(t *testing.T) {
	store := newStubStore()
	svc := NewService(store)
	scope := testScope(t)
	a := mustCreate(t, svc, scope, "a")

	if err := svc.AddDependency(context.Background(), scope, a.ID, "task-missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRemoveDependencyIdempotent(t *testing.T) {
	store := newStubStore()
	svc := NewService(store)
	scope := testScope(t)
	ctx := context.Background()
	a := mustCreate(t, svc, scope, "a")
	b := mustCreate(t, svc, scope, "b")

	if err := svc.AddDependency(ctx, scope, a.ID, b.ID); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := svc.RemoveDependency(ctx, scope, a.ID, b.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := svc.RemoveDependency(ctx, scope, a.ID, b.ID); err != nil {
		t.Fatalf("second remove: %v", err)
	}
	if len(store.edges) != 0 {
		t.Fatalf("edges remain: %v", store.edges)
	}
}

func TestReady(t *testing.T) {
	store := newStubStore()
	svc := NewService(store)
	scope := testScope(t)
	ctx := context.Background()

	a := mustCreate(t, svc, scope, "a")
	b := mustCreate(t, svc, scope, "b")
	c := mustCreate(t, svc, scope, "c")
	if err := svc.AddDependency(ctx, scope, a.ID, b.ID); err != nil {
		t.Fatalf("a->b: %v", err)
	}
	if err := svc.AddDependency(ctx, scope, a.ID, c.ID); err != nil {
		t.Fatalf("a->c: %v", err)
	}

	ready, err := svc.Ready(ctx, scope, a.ID)
	if err != nil || ready {
		t.Fatalf("expected not ready, got ready=%v err=%v", ready, err)
	}

	if err := svc.SetStatus(ctx, scope, b.ID, StatusDone); err != nil {
		t.Fatalf("set b done: %v", err)
	}
	ready, err = svc.Ready(ctx, scope, a.ID)
	if err != nil || ready {
		t.Fatalf("one blocker open: ready=%v err=%v", ready, err)
	}

	if err := svc.SetStatus(ctx, scope, c.ID, StatusDone); err != nil {
		t.Fatalf("set c done: %v", err)
	}
	ready, err = svc.Ready(ctx, scope, a.ID)
	if err != nil || !ready {
		t.Fatalf("all blockers done: ready=%v err=%v", ready, err)
	}

	// Task without dependencies is ready by definition.
	ready, err = svc.Ready(ctx, scope, b.ID)
	if err != nil || !ready {
		t.Fatalf("no blockers: ready=%v err=%v", ready, err)
	}
}
