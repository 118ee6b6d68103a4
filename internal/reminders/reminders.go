// Package reminders aggregates attention items for managers and admins:
// approvals waiting on them, overdue work, upcoming renewals and the people
// events worth a check-in.
package reminders

import (
	"context"
	"sort"
	"time"

	"peopledesk.org/internal/asset"
	"peopledesk.org/internal/leave"
	"peopledesk.org/internal/people"
	"peopledesk.org/internal/task"
	"peopledesk.org/internal/tenant"
)

// Priority orders reminders; urgent sorts first.
type Priority int

const (
	PriorityNormal Priority = iota
	PriorityHigh
	PriorityUrgent
)

// String returns the wire label.
func (p Priority) String() string {
	switch p {
	case PriorityUrgent:
		return "urgent"
	case PriorityHigh:
		return "high"
	}
	return "normal"
}

// MarshalText implements encoding.TextMarshaler for JSON output.
func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Reminder is one attention item.
type Reminder struct {
	Kind     string     `json:"kind"`
	Subject  string     `json:"subject"`
	RefID    string     `json:"ref_id,omitempty"`
	Priority Priority   `json:"priority"`
	DueAt    *time.Time `json:"due_at,omitempty"`
}

// Reminder kinds.
const (
	KindPendingLeave    = "pending_leave"
	KindOverdueTask     = "overdue_task"
	KindPendingExpenses = "pending_expenses"
	KindAssetRenewal    = "asset_renewal"
	KindProbationReview = "probation_review"
	KindContractEnding  = "contract_ending"
)

// Horizons for the time-based reminders. RenewalHorizon is the default
// lookahead; WithRenewalHorizon overrides it per deployment.
const (
	RenewalHorizon      = 30 * 24 * time.Hour
	renewalUrgentWithin = 3 * 24 * time.Hour
	contractHorizon     = 30 * 24 * time.Hour

	// Probation reviews surface toward the end of the probation period and
	// stay in the feed through a short grace stretch past its close, so a
	// missed review still shows up.
	probationReviewFrom  = 80
	probationReviewUntil = 100
)

// Store is the read surface the aggregation runs over.
type Store interface {
	PendingLeaves(ctx context.Context, scope tenant.Scope) ([]leave.Request, error)
	OverdueTasks(ctx context.Context, scope tenant.Scope, asOf time.Time) ([]task.Task, error)
	PendingExpenseCount(ctx context.Context, scope tenant.Scope) (int, error)
	RenewingAssets(ctx context.Context, scope tenant.Scope, cutoff time.Time) ([]asset.Asset, error)
	ActiveUsers(ctx context.Context, scope tenant.Scope) ([]people.User, error)
}

// Service builds the reminder feed.
type Service struct {
	store          Store
	renewalHorizon time.Duration
	now            func() time.Time
}

// Option adjusts service tuning.
type Option func(*Service)

// WithRenewalHorizon overrides how far ahead asset renewals surface.
// Non-positive values are ignored.
func WithRenewalHorizon(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.renewalHorizon = d
		}
	}
}

// NewService constructs the reminders service.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, renewalHorizon: RenewalHorizon, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List assembles the scope's reminders, urgent first and earliest due date
// first within a priority.
func (s *Service) List(ctx context.Context, scope tenant.Scope) ([]Reminder, error) {
	now := s.now().UTC()
	var out []Reminder

	pending, err := s.store.PendingLeaves(ctx, scope)
	if err != nil {
		return nil, err
	}
	for _, req := range pending {
		start := req.Dates.Start
		out = append(out, Reminder{
			Kind:     KindPendingLeave,
			Subject:  "Leave request awaiting decision",
			RefID:    req.ID,
			Priority: PriorityHigh,
			DueAt:    &start,
		})
	}

	overdue, err := s.store.OverdueTasks(ctx, scope, now)
	if err != nil {
		return nil, err
	}
	for _, t := range overdue {
		out = append(out, Reminder{
			Kind:     KindOverdueTask,
			Subject:  "Task overdue: " + t.Title,
			RefID:    t.ID,
			Priority: PriorityUrgent,
			DueAt:    t.DueDate,
		})
	}

	expenseCount, err := s.store.PendingExpenseCount(ctx, scope)
	if err != nil {
		return nil, err
	}
	if expenseCount > 0 {
		out = append(out, Reminder{
			Kind:     KindPendingExpenses,
			Subject:  "Expenses awaiting review",
			Priority: PriorityNormal,
		})
	}

	renewing, err := s.store.RenewingAssets(ctx, scope, now.Add(s.renewalHorizon))
	if err != nil {
		return nil, err
	}
	for _, a := range renewing {
		if a.RenewsAt == nil {
			continue
		}
		priority := PriorityNormal
		if a.RenewsAt.Sub(now) <= renewalUrgentWithin {
			priority = PriorityUrgent
		}
		out = append(out, Reminder{
			Kind:     KindAssetRenewal,
			Subject:  "Renewal due: " + a.Name,
			RefID:    a.ID,
			Priority: priority,
			DueAt:    a.RenewsAt,
		})
	}

	users, err := s.store.ActiveUsers(ctx, scope)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if r, ok := probationReminder(u, now); ok {
			out = append(out, r)
		}
		if r, ok := contractReminder(u, now); ok {
			out = append(out, r)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		switch {
		case out[i].DueAt == nil:
			return false
		case out[j].DueAt == nil:
			return true
		}
		return out[i].DueAt.Before(*out[j].DueAt)
	})
	return out, nil
}

// probationReminder fires between day probationReviewFrom and day
// probationReviewUntil after the join date. The upper bound runs past the
// probation period itself on purpose.
func probationReminder(u people.User, now time.Time) (Reminder, bool) {
	if u.JoinedAt == nil {
		return Reminder{}, false
	}
	reviewFrom := u.JoinedAt.Add(probationReviewFrom * 24 * time.Hour)
	reviewUntil := u.JoinedAt.Add(probationReviewUntil * 24 * time.Hour)
	if now.Before(reviewFrom) || !now.Before(reviewUntil) {
		return Reminder{}, false
	}
	end := u.JoinedAt.Add(people.ProbationDays * 24 * time.Hour)
	return Reminder{
		Kind:     KindProbationReview,
		Subject:  "Probation review due: " + u.Name,
		RefID:    u.ID,
		Priority: PriorityHigh,
		DueAt:    &end,
	}, true
}

// contractReminder fires when a contract ends within the horizon.
func contractReminder(u people.User, now time.Time) (Reminder, bool) {
	if u.Employment != people.EmploymentContract || u.ContractEndsAt == nil {
		return Reminder{}, false
	}
	if u.ContractEndsAt.Before(now) || u.ContractEndsAt.Sub(now) > contractHorizon {
		return Reminder{}, false
	}
	return Reminder{
		Kind:     KindContractEnding,
		Subject:  "Contract ending: " + u.Name,
		RefID:    u.ID,
		Priority: PriorityHigh,
		DueAt:    u.ContractEndsAt,
	}, true
}
