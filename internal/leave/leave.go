// Package leave implements leave requests, the approve/reject transition and
// balance accounting.
package leave

import (
	"context"
	"strings"
	"time"

	"peopledesk.org/internal/domain"
	"peopledesk.org/internal/people"
	"peopledesk.org/internal/tenant"
)

// Type is a leave category charged against its own yearly allowance.
type Type string

const (
	TypeCasual    Type = "casual"
	TypeSick      Type = "sick"
	TypePrivilege Type = "privilege"
)

// DefaultAllowances apply when the organization settings do not override a
// type.
var DefaultAllowances = map[Type]int{
	TypeCasual:    12,
	TypeSick:      8,
	TypePrivilege: 15,
}

// Status is the request lifecycle state. Transitions are pending→approved
// and pending→rejected, each exactly once.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Request is a leave request row.
type Request struct {
	ID             string           `json:"id"`
	OrganizationID string           `json:"organization_id"`
	UserID         string           `json:"user_id"`
	Type           Type             `json:"type"`
	Dates          domain.DateRange `json:"dates"`
	Status         Status           `json:"status"`
	Reason         string           `json:"reason,omitempty"`
	DecidedBy      string           `json:"decided_by,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// Balance is the per-type accounting for one user and calendar year.
type Balance struct {
	Used      int `json:"used"`
	Remaining int `json:"remaining"`
	Total     int `json:"total"`
}

// Store is the persistence surface. Every method is organization-scoped;
// SetStatus must be a compare-and-set on the expected prior status.
type Store interface {
	Insert(ctx context.Context, scope tenant.Scope, req *Request) error
	Get(ctx context.Context, scope tenant.Scope, id string) (Request, error)
	ListByUser(ctx context.Context, scope tenant.Scope, userID string) ([]Request, error)
	ListPending(ctx context.Context, scope tenant.Scope) ([]Request, error)
	// SetStatus transitions id from StatusPending to the given status. It
	// returns domain.ErrNotFound when no row matches the scope and id, and
	// domain.ErrAlreadyProcessed when the row exists but is no longer
	// pending.
	SetStatus(ctx context.Context, scope tenant.Scope, id string, to Status, decidedBy string) error
	ApprovedInYear(ctx context.Context, scope tenant.Scope, userID string, year int) ([]Request, error)
	ApprovedOverlapping(ctx context.Context, scope tenant.Scope, rng domain.DateRange, excludeUserID string) ([]Request, error)
}

// AllowanceSource yields the organization's per-type yearly allowances.
// Missing types fall back to DefaultAllowances.
type AllowanceSource interface {
	LeaveAllowances(ctx context.Context, scope tenant.Scope) (map[Type]int, error)
}

// Directory resolves users within the scope. SubmitFor uses it to confirm a
// caller-named subject belongs to the organization before inserting a row
// for them.
type Directory interface {
	Get(ctx context.Context, scope tenant.Scope, id string) (people.User, error)
}

// Service enforces the leave business rules on top of the scoped store.
type Service struct {
	store      Store
	directory  Directory
	allowances AllowanceSource
	now        func() time.Time
}

// NewService constructs the leave service. directory and allowances may be
// nil: without a directory SubmitFor only accepts the acting principal as
// subject, and without allowances the defaults apply throughout.
func NewService(store Store, directory Directory, allowances AllowanceSource) *Service {
	return &Service{store: store, directory: directory, allowances: allowances, now: time.Now}
}

// Valid reports whether t is a known leave type.
func (t Type) Valid() bool {
	switch t {
	case TypeCasual, TypeSick, TypePrivilege:
		return true
	}
	return false
}

// Submit files a new pending request for the acting principal. Balance is
// deliberately not checked at submission time; approvers see the balance and
// decide.
func (s *Service) Submit(ctx context.Context, scope tenant.Scope, typ Type, dates domain.DateRange, reason string) (Request, error) {
	return s.SubmitFor(ctx, scope, scope.Principal().ID, typ, dates, reason)
}

// SubmitFor files a request on behalf of the named user. Integration tokens
// use it because they act for an organization, not a person.
func (s *Service) SubmitFor(ctx context.Context, scope tenant.Scope, userID string, typ Type, dates domain.DateRange, reason string) (Request, error) {
	if userID == "" {
		return Request{}, domain.Invalid("user_id", "is required")
	}
	if !typ.Valid() {
		return Request{}, domain.Invalid("type", "must be casual, sick or privilege")
	}
	if dates.Start.IsZero() || dates.End.IsZero() {
		return Request{}, domain.Invalid("dates", "start and end are required")
	}
	if !dates.Valid() {
		return Request{}, domain.Invalid("dates", "end date must not precede start date")
	}
	if userID != scope.Principal().ID {
		if s.directory == nil {
			return Request{}, domain.ErrNotFound
		}
		if _, err := s.directory.Get(ctx, scope, userID); err != nil {
			return Request{}, err
		}
	}
	req := Request{
		UserID:    userID,
		Type:      typ,
		Dates:     dates,
		Status:    StatusPending,
		Reason:    strings.TrimSpace(reason),
		CreatedAt: s.now().UTC(),
	}
	req.UpdatedAt = req.CreatedAt
	if err := s.store.Insert(ctx, scope, &req); err != nil {
		return Request{}, err
	}
	return req, nil
}

// Approve transitions a pending request to approved. Concurrent decisions
// race on the store's status predicate; the loser surfaces
// domain.ErrAlreadyProcessed.
func (s *Service) Approve(ctx context.Context, scope tenant.Scope, id string) error {
	return s.store.SetStatus(ctx, scope, id, StatusApproved, scope.Principal().ID)
}

// Reject mirrors Approve with the rejected status.
func (s *Service) Reject(ctx context.Context, scope tenant.Scope, id string) error {
	return s.store.SetStatus(ctx, scope, id, StatusRejected, scope.Principal().ID)
}

// Get returns one request within the scope.
func (s *Service) Get(ctx context.Context, scope tenant.Scope, id string) (Request, error) {
	return s.store.Get(ctx, scope, id)
}

// ListByUser returns a user's requests within the scope.
func (s *Service) ListByUser(ctx context.Context, scope tenant.Scope, userID string) ([]Request, error) {
	return s.store.ListByUser(ctx, scope, userID)
}

// Pending returns the requests still awaiting a decision.
func (s *Service) Pending(ctx context.Context, scope tenant.Scope) ([]Request, error) {
	return s.store.ListPending(ctx, scope)
}

// BalanceFor computes fresh per-type balances for the user and year. The
// result is never cached: approvals can change it at any moment and a stale
// balance is worse than a slower read.
func (s *Service) BalanceFor(ctx context.Context, scope tenant.Scope, userID string, year int) (map[Type]Balance, error) {
	if year <= 0 {
		year = s.now().UTC().Year()
	}
	approved, err := s.store.ApprovedInYear(ctx, scope, userID, year)
	if err != nil {
		return nil, err
	}
	allowances := map[Type]int{}
	for t, days := range DefaultAllowances {
		allowances[t] = days
	}
	if s.allowances != nil {
		override, err := s.allowances.LeaveAllowances(ctx, scope)
		if err != nil {
			return nil, err
		}
		for t, days := range override {
			if t.Valid() && days >= 0 {
				allowances[t] = days
			}
		}
	}

	used := map[Type]int{}
	for _, req := range approved {
		clamped, ok := req.Dates.ClampToYear(year)
		if !ok {
			continue
		}
		used[req.Type] += clamped.Days()
	}

	out := make(map[Type]Balance, len(allowances))
	for t, total := range allowances {
		out[t] = Balance{Used: used[t], Remaining: total - used[t], Total: total}
	}
	return out, nil
}

// Overlapping returns approved requests intersecting the range, optionally
// excluding one user. Used by approvers to see who else is away.
func (s *Service) Overlapping(ctx context.Context, scope tenant.Scope, rng domain.DateRange, excludeUserID string) ([]Request, error) {
	if !rng.Valid() {
		return nil, domain.Invalid("dates", "end date must not precede start date")
	}
	return s.store.ApprovedOverlapping(ctx, scope, rng, excludeUserID)
}
