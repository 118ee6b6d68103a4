package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"peopledesk.org/internal/domain"
	"peopledesk.org/internal/ids"
	"peopledesk.org/internal/task"
	"peopledesk.org/internal/tenant"
)

// TaskStore implements task.Store.
type TaskStore struct {
	store *Store
}

var _ task.Store = (*TaskStore)(nil)

func (s *Store) Tasks() *TaskStore { return &TaskStore{store: s} }

const taskColumns = `id, organization_id, title, status, coalesce(assignee_id,''),
	due_date, created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (task.Task, error) {
	var t task.Task
	err := row.Scan(&t.ID, &t.OrganizationID, &t.Title, &t.Status, &t.AssigneeID,
		&t.DueDate, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return task.Task{}, domain.ErrNotFound
	}
	if err != nil {
		return task.Task{}, err
	}
	return t, nil
}

func (ts *TaskStore) Insert(ctx context.Context, scope tenant.Scope, t *task.Task) error {
	t.ID = ids.New()
	t.OrganizationID = scope.OrgID()
	_, err := ts.store.db.ExecContext(ctx, `
		insert into tasks(id, organization_id, title, status, assignee_id, due_date, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8)
	`, t.ID, t.OrganizationID, t.Title, string(t.Status), t.AssigneeID, t.DueDate, t.CreatedAt, t.UpdatedAt)
	return err
}

func (ts *TaskStore) Get(ctx context.Context, scope tenant.Scope, id string) (task.Task, error) {
	row := ts.store.db.QueryRowContext(ctx, `
		select `+taskColumns+` from tasks where id=$1 and organization_id=$2
	`, id, scope.OrgID())
	return scanTask(row)
}

func (ts *TaskStore) List(ctx context.Context, scope tenant.Scope) ([]task.Task, error) {
	return ts.list(ctx, `
		select `+taskColumns+` from tasks where organization_id=$1 order by created_at desc
	`, scope.OrgID())
}

func (ts *TaskStore) SetStatus(ctx context.Context, scope tenant.Scope, id string, status task.Status) error {
	res, err := ts.store.db.ExecContext(ctx, `
		update tasks set status=$3, updated_at=now() where id=$1 and organization_id=$2
	`, id, scope.OrgID(), string(status))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (ts *TaskStore) InsertDependency(ctx context.Context, scope tenant.Scope, dep task.Dependency) error {
	_, err := ts.store.db.ExecContext(ctx, `
		insert into task_dependencies(organization_id, blocked_id, blocker_id)
		values ($1,$2,$3)
		on conflict do nothing
	`, scope.OrgID(), dep.BlockedID, dep.BlockerID)
	return err
}

func (ts *TaskStore) DeleteDependency(ctx context.Context, scope tenant.Scope, dep task.Dependency) error {
	_, err := ts.store.db.ExecContext(ctx, `
		delete from task_dependencies
		where organization_id=$1 and blocked_id=$2 and blocker_id=$3
	`, scope.OrgID(), dep.BlockedID, dep.BlockerID)
	return err
}

func (ts *TaskStore) Dependencies(ctx context.Context, scope tenant.Scope) ([]task.Dependency, error) {
	rows, err := ts.store.db.QueryContext(ctx, `
		select blocked_id, blocker_id from task_dependencies where organization_id=$1
	`, scope.OrgID())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []task.Dependency
	for rows.Next() {
		var dep task.Dependency
		if err := rows.Scan(&dep.BlockedID, &dep.BlockerID); err != nil {
			return nil, err
		}
		out = append(out, dep)
	}
	return out, rows.Err()
}

func (ts *TaskStore) Blockers(ctx context.Context, scope tenant.Scope, id string) ([]task.Task, error) {
	return ts.list(ctx, `
		select t.id, t.organization_id, t.title, t.status, coalesce(t.assignee_id,''),
			t.due_date, t.created_at, t.updated_at
		from tasks t
		join task_dependencies d on d.blocker_id = t.id and d.organization_id = t.organization_id
		where d.organization_id=$1 and d.blocked_id=$2
	`, scope.OrgID(), id)
}

// Overdue feeds the reminders aggregation.
func (ts *TaskStore) Overdue(ctx context.Context, scope tenant.Scope, asOf time.Time) ([]task.Task, error) {
	return ts.list(ctx, `
		select `+taskColumns+` from tasks
		where organization_id=$1 and status <> $2 and due_date is not null and due_date < $3
	`, scope.OrgID(), string(task.StatusDone), asOf)
}

func (ts *TaskStore) list(ctx context.Context, query string, args ...any) ([]task.Task, error) {
	rows, err := ts.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
