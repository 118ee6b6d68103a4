package pg

import (
	"context"
	"database/sql"
	"errors"

	"peopledesk.org/internal/domain"
	"peopledesk.org/internal/expense"
	"peopledesk.org/internal/ids"
	"peopledesk.org/internal/tenant"
)

// ExpenseStore implements expense.Store.
type ExpenseStore struct {
	store *Store
}

var _ expense.Store = (*ExpenseStore)(nil)

func (s *Store) Expenses() *ExpenseStore { return &ExpenseStore{store: s} }

const expenseColumns = `id, organization_id, user_id, amount_cents, category, description,
	coalesce(receipt_url,''), status, coalesce(approved_by,''), created_at, updated_at`

func scanExpense(row interface{ Scan(...any) error }) (expense.Expense, error) {
	var e expense.Expense
	err := row.Scan(&e.ID, &e.OrganizationID, &e.UserID, &e.AmountCents, &e.Category,
		&e.Description, &e.ReceiptURL, &e.Status, &e.ApprovedBy, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return expense.Expense{}, domain.ErrNotFound
	}
	if err != nil {
		return expense.Expense{}, err
	}
	return e, nil
}

func (es *ExpenseStore) Insert(ctx context.Context, scope tenant.Scope, e *expense.Expense) error {
	e.ID = ids.New()
	e.OrganizationID = scope.OrgID()
	_, err := es.store.db.ExecContext(ctx, `
		insert into expenses(id, organization_id, user_id, amount_cents, category, description,
			receipt_url, status, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, e.ID, e.OrganizationID, e.UserID, e.AmountCents, e.Category, e.Description,
		e.ReceiptURL, string(e.Status), e.CreatedAt, e.UpdatedAt)
	return err
}

func (es *ExpenseStore) Get(ctx context.Context, scope tenant.Scope, id string) (expense.Expense, error) {
	row := es.store.db.QueryRowContext(ctx, `
		select `+expenseColumns+` from expenses where id=$1 and organization_id=$2
	`, id, scope.OrgID())
	return scanExpense(row)
}

func (es *ExpenseStore) List(ctx context.Context, scope tenant.Scope) ([]expense.Expense, error) {
	return es.list(ctx, `
		select `+expenseColumns+` from expenses where organization_id=$1 order by created_at desc
	`, scope.OrgID())
}

func (es *ExpenseStore) ListByUser(ctx context.Context, scope tenant.Scope, userID string) ([]expense.Expense, error) {
	return es.list(ctx, `
		select `+expenseColumns+` from expenses
		where organization_id=$1 and user_id=$2 order by created_at desc
	`, scope.OrgID(), userID)
}

// Transition applies the state machine move as a compare-and-set on the
// expected prior status.
func (es *ExpenseStore) Transition(ctx context.Context, scope tenant.Scope, id string, from, to expense.Status, approvedBy string) error {
	res, err := es.store.db.ExecContext(ctx, `
		update expenses
		set status=$4, approved_by=case when $5 <> '' then $5 else approved_by end, updated_at=now()
		where id=$1 and organization_id=$2 and status=$3
	`, id, scope.OrgID(), string(from), string(to), approvedBy)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := es.Get(ctx, scope, id); err != nil {
			return err
		}
		return domain.ErrAlreadyProcessed
	}
	return nil
}

// PendingCount feeds the reminders aggregation.
func (es *ExpenseStore) PendingCount(ctx context.Context, scope tenant.Scope) (int, error) {
	var n int
	err := es.store.db.QueryRowContext(ctx, `
		select count(*) from expenses where organization_id=$1 and status=$2
	`, scope.OrgID(), string(expense.StatusPending)).Scan(&n)
	return n, err
}

func (es *ExpenseStore) list(ctx context.Context, query string, args ...any) ([]expense.Expense, error) {
	rows, err := es.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []expense.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
