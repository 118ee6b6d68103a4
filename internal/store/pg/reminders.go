package pg

import (
	"context"
	"time"

	"peopledesk.org/internal/asset"
	"peopledesk.org/internal/auth"
	"peopledesk.org/internal/leave"
	"peopledesk.org/internal/people"
	"peopledesk.org/internal/reminders"
	"peopledesk.org/internal/task"
	"peopledesk.org/internal/tenant"
)

// ReminderStore composes the per-domain stores into the read surface the
// reminders aggregation needs.
type ReminderStore struct {
	store *Store
}

var _ reminders.Store = (*ReminderStore)(nil)

func (s *Store) Reminders() *ReminderStore { return &ReminderStore{store: s} }

func (rs *ReminderStore) PendingLeaves(ctx context.Context, scope tenant.Scope) ([]leave.Request, error) {
	return rs.store.Leaves().ListPending(ctx, scope)
}

func (rs *ReminderStore) OverdueTasks(ctx context.Context, scope tenant.Scope, asOf time.Time) ([]task.Task, error) {
	return rs.store.Tasks().Overdue(ctx, scope, asOf)
}

func (rs *ReminderStore) PendingExpenseCount(ctx context.Context, scope tenant.Scope) (int, error) {
	return rs.store.Expenses().PendingCount(ctx, scope)
}

func (rs *ReminderStore) RenewingAssets(ctx context.Context, scope tenant.Scope, cutoff time.Time) ([]asset.Asset, error) {
	return rs.store.Assets().RenewingBefore(ctx, scope, cutoff)
}

func (rs *ReminderStore) ActiveUsers(ctx context.Context, scope tenant.Scope) ([]people.User, error) {
	rows, err := rs.store.db.QueryContext(ctx, `
		select `+userColumns+` from users where organization_id=$1 and status=$2
	`, scope.OrgID(), auth.StatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []people.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
