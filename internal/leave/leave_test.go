package leave

import (
	"context"
	"errors"
	"testing"
	"time"

	"peopledesk.org/internal/auth"
	"peopledesk.org/internal/domain"
	"peopledesk.org/internal/people"
	"peopledesk.org/internal/tenant"
)

type stubStore struct {
	inserted []Request
	byID     map[string]*Request
}

func newStubStore() *stubStore {
	return &stubStore{byID: map[string]*Request{}}
}

func (s *stubStore) Insert(_ context.Context, scope tenant.Scope, req *Request) error {
	req.ID = "leave-" + string(rune('a'+len(s.inserted)))
	req.OrganizationID = scope.OrgID()
	s.inserted = append(s.inserted, *req)
	cp := *req
	s.byID[req.ID] = &cp
	return nil
}

func (s *stubStore) Get(_ context.Context, scope tenant.Scope, id string) (Request, error) {
	req, ok := s.byID[id]
	if !ok || req.OrganizationID != scope.OrgID() {
		return Request{}, domain.ErrNotFound
	}
	return *req, nil
}

func (s *stubStore) ListByUser(_ context.Context, scope tenant.Scope, userID string) ([]Request, error) {
	var out []Request
	for _, req := range s.byID {
		if req.OrganizationID == scope.OrgID() && req.UserID == userID {
			out = append(out, *req)
		}
	}
	return out, nil
}

func (s *stubStore) ListPending(_ context.Context, scope tenant.Scope) ([]Request, error) {
	var out []Request
	for _, req := range s.byID {
		if req.OrganizationID == scope.OrgID() && req.Status == StatusPending {
			out = append(out, *req)
		}
	}
	return out, nil
}

func (s *stubStore) SetStatus(_ context.Context, scope tenant.Scope, id string, to Status, decidedBy string) error {
	req, ok := s.byID[id]
	if !ok || req.OrganizationID != scope.OrgID() {
		return domain.ErrNotFound
	}
	if req.Status != StatusPending {
		return domain.ErrAlreadyProcessed
	}
	req.Status = to
	req.DecidedBy = decidedBy
	return nil
}

func (s *stubStore) ApprovedInYear(_ context.Context, scope tenant.Scope, userID string, year int) ([]Request, error) {
	var out []Request
	for _, req := range s.byID {
		if req.OrganizationID != scope.OrgID() || req.UserID != userID || req.Status != StatusApproved {
			continue
		}
		if _, ok := req.Dates.ClampToYear(year); ok {
			out = append(out, *req)
		}
	}
	return out, nil
}

func (s *stubStore) ApprovedOverlapping(_ context.Context, scope tenant.Scope, rng domain.DateRange, excludeUserID string) ([]Request, error) {
	var out []Request
	for _, req := range s.byID {
		if req.OrganizationID != scope.OrgID() || req.Status != StatusApproved {
			continue
		}
		if excludeUserID != "" && req.UserID == excludeUserID {
			continue
		}
		if req.Dates.Overlaps(rng) {
			out = append(out, *req)
		}
	}
	return out, nil
}

func memberScope(t *testing.T, userID string) tenant.Scope {
	t.Helper()
	scope, err := tenant.Require(auth.Principal{ID: userID, Role: auth.RoleMember, OrganizationID: "org-1"})
	if err != nil {
		t.Fatalf("tenant.Require: %v", err)
	}
	return scope
}

func managerScope(t *testing.T, userID string) tenant.Scope {
	t.Helper()
	scope, err := tenant.Require(auth.Principal{ID: userID, Role: auth.RoleManager, OrganizationID: "org-1"})
	if err != nil {
		t.Fatalf("tenant.Require: %v", err)
	}
	return scope
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestSubmitValidation(t *testing.T) {
	svc := NewService(newStubStore(), nil, nil)
	scope := memberScope(t, "u1")

	_, err := svc.Submit(context.Background(), scope, "vacation", domain.DateRange{Start: day(2025, 1, 1), End: day(2025, 1, 2)}, "")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid type error, got %v", err)
	}

	_, err = svc.Submit(context.Background(), scope, TypeCasual, domain.DateRange{Start: day(2025, 1, 5), End: day(2025, 1, 2)}, "")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid range error, got %v", err)
	}
}

func TestSubmitCreatesPending(t *testing.T) {
	store := newStubStore()
	svc := NewService(store, nil, nil)
	scope := memberScope(t, "u1")

	req, err := svc.Submit(context.Background(), scope, TypeCasual, domain.DateRange{Start: day(2025, 1, 1), End: day(2025, 1, 5)}, "  family trip  ")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if req.Status != StatusPending || req.UserID != "u1" || req.OrganizationID != "org-1" {
		t.Fatalf("unexpected request: %+v", req)
	}
	if req.Reason != "family trip" {
		t.Fatalf("reason not trimmed: %q", req.Reason)
	}
}

func TestApproveConsumesBalanceInclusive(t *testing.T) {
	store := newStubStore()
	svc := NewService(store, nil, nil)
	member := memberScope(t, "u1")
	manager := managerScope(t, "m1")

	req, err := svc.Submit(context.Background(), member, TypeCasual, domain.DateRange{Start: day(2025, 1, 1), End: day(2025, 1, 5)}, "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	before, err := svc.BalanceFor(context.Background(), manager, "u1", 2025)
	if err != nil {
		t.Fatalf("BalanceFor: %v", err)
	}
	if err := svc.Approve(context.Background(), manager, req.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	after, err := svc.BalanceFor(context.Background(), manager, "u1", 2025)
	if err != nil {
		t.Fatalf("BalanceFor: %v", err)
	}
	if after[TypeCasual].Used != before[TypeCasual].Used+5 {
		t.Fatalf("used: before=%d after=%d, want +5", before[TypeCasual].Used, after[TypeCasual].Used)
	}
	if after[TypeCasual].Remaining != before[TypeCasual].Remaining-5 {
		t.Fatalf("remaining did not decrease by 5")
	}
}

func TestBalanceIdempotent(t *testing.T) {
	store := newStubStore()
	svc := NewService(store, nil, nil)
	manager := managerScope(t, "m1")

	first, err := svc.BalanceFor(context.Background(), manager, "u1", 2025)
	if err != nil {
		t.Fatalf("BalanceFor: %v", err)
	}
	second, err := svc.BalanceFor(context.Background(), manager, "u1", 2025)
	if err != nil {
		t.Fatalf("BalanceFor: %v", err)
	}
	for typ, bal := range first {
		if second[typ] != bal {
			t.Fatalf("balance changed with no state change: %v vs %v", bal, second[typ])
		}
	}
}

func TestBalanceClampsYearBoundary(t *testing.T) {
	store := newStubStore()
	svc := NewService(store, nil, nil)
	member := memberScope(t, "u1")
	manager := managerScope(t, "m1")

	// Dec 30 2024 .. Jan 2 2025: only two days fall into 2025.
	req, err := svc.Submit(context.Background(), member, TypeSick, domain.DateRange{Start: day(2024, 12, 30), End: day(2025, 1, 2)}, "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := svc.Approve(context.Background(), manager, req.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	bal, err := svc.BalanceFor(context.Background(), manager, "u1", 2025)
	if err != nil {
		t.Fatalf("BalanceFor: %v", err)
	}
	if bal[TypeSick].Used != 2 {
		t.Fatalf("used=%d, want 2", bal[TypeSick].Used)
	}
}

func TestDoubleDecisionLosesRace(t *testing.T) {
	store := newStubStore()
	svc := NewService(store, nil, nil)
	member := memberScope(t, "u1")
	manager := managerScope(t, "m1")

	req, _ := svc.Submit(context.Background(), member, TypeCasual, domain.DateRange{Start: day(2025, 2, 1), End: day(2025, 2, 1)}, "")
	if err := svc.Approve(context.Background(), manager, req.ID); err != nil {
		t.Fatalf("first Approve: %v", err)
	}
	if err := svc.Approve(context.Background(), manager, req.ID); !errors.Is(err, domain.ErrAlreadyProcessed) {
		t.Fatalf("second Approve: expected ErrAlreadyProcessed, got %v", err)
	}
	if err := svc.Reject(context.Background(), manager, req.ID); !errors.Is(err, domain.ErrAlreadyProcessed) {
		t.Fatalf("Reject after approve: expected ErrAlreadyProcessed, got %v", err)
	}
}

type stubDirectory map[string]people.User

func (d stubDirectory) Get(_ context.Context, scope tenant.Scope, id string) (people.User, error) {
	u, ok := d[id]
	if !ok || u.OrganizationID != scope.OrgID() {
		return people.User{}, domain.ErrNotFound
	}
	return u, nil
}

func TestSubmitForVerifiesSubject(t *testing.T) {
	dir := stubDirectory{
		"u1": {ID: "u1", OrganizationID: "org-1"},
		"u9": {ID: "u9", OrganizationID: "org-2"},
	}
	svc := NewService(newStubStore(), dir, nil)
	scope := memberScope(t, "api:org-1")
	rng := domain.DateRange{Start: day(2025, 4, 1), End: day(2025, 4, 2)}

	if _, err := svc.SubmitFor(context.Background(), scope, "u9", TypeCasual, rng, ""); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("subject from another organization: expected ErrNotFound, got %v", err)
	}
	req, err := svc.SubmitFor(context.Background(), scope, "u1", TypeCasual, rng, "")
	if err != nil {
		t.Fatalf("SubmitFor: %v", err)
	}
	if req.UserID != "u1" || req.OrganizationID != "org-1" {
		t.Fatalf("unexpected request: %+v", req)
	}

	noDir := NewService(newStubStore(), nil, nil)
	if _, err := noDir.SubmitFor(context.Background(), scope, "u1", TypeCasual, rng, ""); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("no directory wired: expected ErrNotFound, got %v", err)
	}
}

type fixedAllowances map[Type]int

func (f fixedAllowances) LeaveAllowances(context.Context, tenant.Scope) (map[Type]int, error) {
	return f, nil
}

func TestAllowanceOverride(t *testing.T) {
	svc := NewService(newStubStore(), nil, fixedAllowances{TypeCasual: 20})
	manager := managerScope(t, "m1")

	bal, err := svc.BalanceFor(context.Background(), manager, "u1", 2025)
	if err != nil {
		t.Fatalf("BalanceFor: %v", err)
	}
	if bal[TypeCasual].Total != 20 {
		t.Fatalf("casual total=%d, want 20", bal[TypeCasual].Total)
	}
	if bal[TypeSick].Total != DefaultAllowances[TypeSick] {
		t.Fatalf("sick total should fall back to default")
	}
}

func TestOverlappingExcludesUser(t *testing.T) {
	store := newStubStore()
	svc := NewService(store, nil, nil)
	manager := managerScope(t, "m1")

	a, _ := svc.Submit(context.Background(), memberScope(t, "u1"), TypeCasual, domain.DateRange{Start: day(2025, 3, 1), End: day(2025, 3, 5)}, "")
	b, _ := svc.Submit(context.Background(), memberScope(t, "u2"), TypeCasual, domain.DateRange{Start: day(2025, 3, 4), End: day(2025, 3, 8)}, "")
	_ = svc.Approve(context.Background(), manager, a.ID)
	_ = svc.Approve(context.Background(), manager, b.ID)

	overlapping, err := svc.Overlapping(context.Background(), manager, domain.DateRange{Start: day(2025, 3, 5), End: day(2025, 3, 5)}, "u1")
	if err != nil {
		t.Fatalf("Overlapping: %v", err)
	}
	if len(overlapping) != 1 || overlapping[0].UserID != "u2" {
		t.Fatalf("unexpected overlap result: %+v", overlapping)
	}
}
