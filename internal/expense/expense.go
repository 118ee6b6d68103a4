// Package expense implements expense submission and the
// pending→approved→reimbursed state machine.
package expense

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"peopledesk.org/internal/auth"
	"peopledesk.org/internal/domain"
	"peopledesk.org/internal/tenant"
)

// Status is the expense lifecycle state. Legal hops: pending→approved,
// pending→rejected (terminal), approved→reimbursed.
type Status string

const (
	StatusPending    Status = "pending"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
	StatusReimbursed Status = "reimbursed"
)

// Amounts are integer cents, following the money handling used elsewhere in
// the store.
const (
	maxAmountCents     = 100_000_00
	receiptOverCents   = 100_00
	minDescriptionLen  = 5
	maxDescriptionLen  = 500
)

// Categories an expense may be filed under.
var Categories = map[string]bool{
	"travel":          true,
	"meals":           true,
	"office_supplies": true,
	"software":        true,
	"training":        true,
	"other":           true,
}

// Expense is an expense row.
type Expense struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	UserID         string    `json:"user_id"`
	AmountCents    int64     `json:"amount_cents"`
	Category       string    `json:"category"`
	Description    string    `json:"description"`
	ReceiptURL     string    `json:"receipt_url,omitempty"`
	Status         Status    `json:"status"`
	ApprovedBy     string    `json:"approved_by,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Store is the persistence surface. Transition applies the compare-and-set:
// the update predicate includes the expected prior status, so concurrent
// decisions cannot both take effect.
type Store interface {
	Insert(ctx context.Context, scope tenant.Scope, e *Expense) error
	Get(ctx context.Context, scope tenant.Scope, id string) (Expense, error)
	List(ctx context.Context, scope tenant.Scope) ([]Expense, error)
	ListByUser(ctx context.Context, scope tenant.Scope, userID string) ([]Expense, error)
	// Transition moves id from the expected status to the new one, stamping
	// approvedBy when non-empty. domain.ErrNotFound when no row matches the
	// scope; domain.ErrAlreadyProcessed when the row is not in the expected
	// status.
	Transition(ctx context.Context, scope tenant.Scope, id string, from, to Status, approvedBy string) error
}

// Service enforces the expense guards and state machine.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService constructs the expense service.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Submit validates and files a new pending expense for the acting principal.
// All guards are checked before any write; a failed guard leaves no partial
// state.
func (s *Service) Submit(ctx context.Context, scope tenant.Scope, amountCents int64, category, description, receiptURL string) (Expense, error) {
	if amountCents <= 0 {
		return Expense{}, domain.Invalid("amount", "must be greater than zero")
	}
	if amountCents > maxAmountCents {
		return Expense{}, domain.Invalid("amount", "exceeds the maximum of $100000")
	}
	description = strings.TrimSpace(description)
	if n := utf8.RuneCountInString(description); n < minDescriptionLen || n > maxDescriptionLen {
		return Expense{}, domain.Invalid("description", fmt.Sprintf("must be between %d and %d characters", minDescriptionLen, maxDescriptionLen))
	}
	category = strings.TrimSpace(strings.ToLower(category))
	if !Categories[category] {
		return Expense{}, domain.Invalid("category", "unknown category "+category)
	}
	receiptURL = strings.TrimSpace(receiptURL)
	if amountCents > receiptOverCents && receiptURL == "" {
		return Expense{}, fmt.Errorf("%w: receipt_url: Receipt is required for expenses over $100", domain.ErrInvalidInput)
	}

	e := Expense{
		UserID:      scope.Principal().ID,
		AmountCents: amountCents,
		Category:    category,
		Description: description,
		ReceiptURL:  receiptURL,
		Status:      StatusPending,
		CreatedAt:   s.now().UTC(),
	}
	e.UpdatedAt = e.CreatedAt
	if err := s.store.Insert(ctx, scope, &e); err != nil {
		return Expense{}, err
	}
	return e, nil
}

// Approve transitions pending→approved. The approver can never be the
// submitter.
func (s *Service) Approve(ctx context.Context, scope tenant.Scope, id string) error {
	return s.decide(ctx, scope, id, StatusApproved)
}

// Reject transitions pending→rejected, which is terminal.
func (s *Service) Reject(ctx context.Context, scope tenant.Scope, id string) error {
	return s.decide(ctx, scope, id, StatusRejected)
}

func (s *Service) decide(ctx context.Context, scope tenant.Scope, id string, to Status) error {
	e, err := s.store.Get(ctx, scope, id)
	if err != nil {
		return err
	}
	if e.UserID == scope.Principal().ID {
		return fmt.Errorf("%w: You cannot approve your own expense", auth.ErrUnauthorized)
	}
	switch e.Status {
	case StatusPending:
	case StatusApproved, StatusRejected, StatusReimbursed:
		// Let the store's predicate make the final call; a concurrent winner
		// surfaces the same way.
		return domain.ErrAlreadyProcessed
	default:
		return domain.Transition(string(e.Status), string(to))
	}
	return s.store.Transition(ctx, scope, id, StatusPending, to, scope.Principal().ID)
}

// MarkReimbursed transitions approved→reimbursed.
func (s *Service) MarkReimbursed(ctx context.Context, scope tenant.Scope, id string) error {
	e, err := s.store.Get(ctx, scope, id)
	if err != nil {
		return err
	}
	switch e.Status {
	case StatusApproved:
		return s.store.Transition(ctx, scope, id, StatusApproved, StatusReimbursed, "")
	case StatusPending, StatusRejected:
		return domain.Transition(string(e.Status), string(StatusReimbursed))
	case StatusReimbursed:
		return domain.ErrAlreadyProcessed
	default:
		return domain.Transition(string(e.Status), string(StatusReimbursed))
	}
}

// Get returns one expense within the scope.
func (s *Service) Get(ctx context.Context, scope tenant.Scope, id string) (Expense, error) {
	return s.store.Get(ctx, scope, id)
}

// List returns the organization's expenses.
func (s *Service) List(ctx context.Context, scope tenant.Scope) ([]Expense, error) {
	return s.store.List(ctx, scope)
}

// ListByUser returns one user's expenses within the scope.
func (s *Service) ListByUser(ctx context.Context, scope tenant.Scope, userID string) ([]Expense, error) {
	return s.store.ListByUser(ctx, scope, userID)
}
