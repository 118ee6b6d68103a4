package pg

import (
	"context"
	"database/sql"
	"errors"

	"peopledesk.org/internal/domain"
	"peopledesk.org/internal/ids"
	"peopledesk.org/internal/leave"
	"peopledesk.org/internal/tenant"
)

// LeaveStore implements leave.Store.
type LeaveStore struct {
	store *Store
}

var _ leave.Store = (*LeaveStore)(nil)

func (s *Store) Leaves() *LeaveStore { return &LeaveStore{store: s} }

const leaveColumns = `id, organization_id, user_id, type, start_date, end_date,
	status, coalesce(reason,''), coalesce(decided_by,''), created_at, updated_at`

func scanLeave(row interface{ Scan(...any) error }) (leave.Request, error) {
	var req leave.Request
	err := row.Scan(&req.ID, &req.OrganizationID, &req.UserID, &req.Type,
		&req.Dates.Start, &req.Dates.End, &req.Status, &req.Reason,
		&req.DecidedBy, &req.CreatedAt, &req.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return leave.Request{}, domain.ErrNotFound
	}
	if err != nil {
		return leave.Request{}, err
	}
	return req, nil
}

func (ls *LeaveStore) Insert(ctx context.Context, scope tenant.Scope, req *leave.Request) error {
	req.ID = ids.New()
	req.OrganizationID = scope.OrgID()
	_, err := ls.store.db.ExecContext(ctx, `
		insert into leave_requests(id, organization_id, user_id, type, start_date, end_date,
			status, reason, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, req.ID, req.OrganizationID, req.UserID, string(req.Type), req.Dates.Start, req.Dates.End,
		string(req.Status), req.Reason, req.CreatedAt, req.UpdatedAt)
	return err
}

func (ls *LeaveStore) Get(ctx context.Context, scope tenant.Scope, id string) (leave.Request, error) {
	row := ls.store.db.QueryRowContext(ctx, `
		select `+leaveColumns+` from leave_requests where id=$1 and organization_id=$2
	`, id, scope.OrgID())
	return scanLeave(row)
}

func (ls *LeaveStore) ListByUser(ctx context.Context, scope tenant.Scope, userID string) ([]leave.Request, error) {
	return ls.list(ctx, `
		select `+leaveColumns+` from leave_requests
		where organization_id=$1 and user_id=$2 order by created_at desc
	`, scope.OrgID(), userID)
}

func (ls *LeaveStore) ListPending(ctx context.Context, scope tenant.Scope) ([]leave.Request, error) {
	return ls.list(ctx, `
		select `+leaveColumns+` from leave_requests
		where organization_id=$1 and status=$2 order by created_at
	`, scope.OrgID(), string(leave.StatusPending))
}

// SetStatus is the compare-and-set decision: the pending predicate in the
// UPDATE guarantees at most one decision wins. When zero rows change, a
// re-read splits not-found from already-decided.
func (ls *LeaveStore) SetStatus(ctx context.Context, scope tenant.Scope, id string, to leave.Status, decidedBy string) error {
	res, err := ls.store.db.ExecContext(ctx, `
		update leave_requests set status=$4, decided_by=$5, updated_at=now()
		where id=$1 and organization_id=$2 and status=$3
	`, id, scope.OrgID(), string(leave.StatusPending), string(to), decidedBy)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := ls.Get(ctx, scope, id); err != nil {
			return err
		}
		return domain.ErrAlreadyProcessed
	}
	return nil
}

func (ls *LeaveStore) ApprovedInYear(ctx context.Context, scope tenant.Scope, userID string, year int) ([]leave.Request, error) {
	return ls.list(ctx, `
		select `+leaveColumns+` from leave_requests
		where organization_id=$1 and user_id=$2 and status=$3
		  and extract(year from start_date) <= $4 and extract(year from end_date) >= $4
	`, scope.OrgID(), userID, string(leave.StatusApproved), year)
}

func (ls *LeaveStore) ApprovedOverlapping(ctx context.Context, scope tenant.Scope, rng domain.DateRange, excludeUserID string) ([]leave.Request, error) {
	return ls.list(ctx, `
		select `+leaveColumns+` from leave_requests
		where organization_id=$1 and status=$2
		  and start_date <= $4 and end_date >= $3
		  and ($5 = '' or user_id <> $5)
	`, scope.OrgID(), string(leave.StatusApproved), rng.Start, rng.End, excludeUserID)
}

func (ls *LeaveStore) list(ctx context.Context, query string, args ...any) ([]leave.Request, error) {
	rows, err := ls.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []leave.Request
	for rows.Next() {
		req, err := scanLeave(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}
