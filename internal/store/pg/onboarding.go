package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"peopledesk.org/internal/domain"
	"peopledesk.org/internal/ids"
	"peopledesk.org/internal/onboard"
	"peopledesk.org/internal/tenant"
)

// OnboardStore implements onboard.Store. Template and run steps are stored
// as jsonb: they are always read and written whole, never queried by field.
type OnboardStore struct {
	store *Store
}

var _ onboard.Store = (*OnboardStore)(nil)

func (s *Store) Onboarding() *OnboardStore { return &OnboardStore{store: s} }

func (os *OnboardStore) InsertTemplate(ctx context.Context, scope tenant.Scope, tpl *onboard.Template) error {
	tpl.ID = ids.New()
	tpl.OrganizationID = scope.OrgID()
	steps, err := json.Marshal(tpl.Steps)
	if err != nil {
		return err
	}
	_, err = os.store.db.ExecContext(ctx, `
		insert into onboarding_templates(id, organization_id, name, kind, steps, created_at)
		values ($1,$2,$3,$4,$5,$6)
	`, tpl.ID, tpl.OrganizationID, tpl.Name, string(tpl.Kind), steps, tpl.CreatedAt)
	return err
}

func (os *OnboardStore) GetTemplate(ctx context.Context, scope tenant.Scope, id string) (onboard.Template, error) {
	return os.scanTemplate(os.store.db.QueryRowContext(ctx, `
		select id, organization_id, name, kind, steps, created_at
		from onboarding_templates where id=$1 and organization_id=$2
	`, id, scope.OrgID()))
}

func (os *OnboardStore) ListTemplates(ctx context.Context, scope tenant.Scope) ([]onboard.Template, error) {
	rows, err := os.store.db.QueryContext(ctx, `
		select id, organization_id, name, kind, steps, created_at
		from onboarding_templates where organization_id=$1 order by created_at
	`, scope.OrgID())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []onboard.Template
	for rows.Next() {
		tpl, err := os.scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tpl)
	}
	return out, rows.Err()
}

func (os *OnboardStore) InsertRun(ctx context.Context, scope tenant.Scope, run *onboard.Run) error {
	run.ID = ids.New()
	run.OrganizationID = scope.OrgID()
	steps, err := json.Marshal(run.Steps)
	if err != nil {
		return err
	}
	_, err = os.store.db.ExecContext(ctx, `
		insert into onboarding_runs(id, organization_id, template_id, user_id, kind, status, steps, started_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8)
	`, run.ID, run.OrganizationID, run.TemplateID, run.UserID, string(run.Kind), string(run.Status), steps, run.StartedAt)
	return err
}

func (os *OnboardStore) GetRun(ctx context.Context, scope tenant.Scope, id string) (onboard.Run, error) {
	return os.scanRun(os.store.db.QueryRowContext(ctx, `
		select id, organization_id, template_id, user_id, kind, status, steps, started_at, completed_at
		from onboarding_runs where id=$1 and organization_id=$2
	`, id, scope.OrgID()))
}

func (os *OnboardStore) ListRuns(ctx context.Context, scope tenant.Scope) ([]onboard.Run, error) {
	return os.listRuns(ctx, `
		select id, organization_id, template_id, user_id, kind, status, steps, started_at, completed_at
		from onboarding_runs where organization_id=$1 order by started_at desc
	`, scope.OrgID())
}

func (os *OnboardStore) ListRunsByUser(ctx context.Context, scope tenant.Scope, userID string) ([]onboard.Run, error) {
	return os.listRuns(ctx, `
		select id, organization_id, template_id, user_id, kind, status, steps, started_at, completed_at
		from onboarding_runs where organization_id=$1 and user_id=$2 order by started_at desc
	`, scope.OrgID(), userID)
}

func (os *OnboardStore) UpdateRun(ctx context.Context, scope tenant.Scope, run onboard.Run) error {
	steps, err := json.Marshal(run.Steps)
	if err != nil {
		return err
	}
	res, err := os.store.db.ExecContext(ctx, `
		update onboarding_runs set status=$3, steps=$4, completed_at=$5
		where id=$1 and organization_id=$2
	`, run.ID, scope.OrgID(), string(run.Status), steps, run.CompletedAt)
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

func (os *OnboardStore) scanTemplate(row interface{ Scan(...any) error }) (onboard.Template, error) {
	var tpl onboard.Template
	var steps []byte
	err := row.Scan(&tpl.ID, &tpl.OrganizationID, &tpl.Name, &tpl.Kind, &steps, &tpl.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return onboard.Template{}, domain.ErrNotFound
	}
	if err != nil {
		return onboard.Template{}, err
	}
	if err := json.Unmarshal(steps, &tpl.Steps); err != nil {
		return onboard.Template{}, err
	}
	return tpl, nil
}

func (os *OnboardStore) scanRun(row interface{ Scan(...any) error }) (onboard.Run, error) {
	var run onboard.Run
	var steps []byte
	err := row.Scan(&run.ID, &run.OrganizationID, &run.TemplateID, &run.UserID,
		&run.Kind, &run.Status, &steps, &run.StartedAt, &run.CompletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return onboard.Run{}, domain.ErrNotFound
	}
	if err != nil {
		return onboard.Run{}, err
	}
	if err := json.Unmarshal(steps, &run.Steps); err != nil {
		return onboard.Run{}, err
	}
	return run, nil
}

func (os *OnboardStore) listRuns(ctx context.Context, query string, args ...any) ([]onboard.Run, error) {
	rows, err := os.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []onboard.Run
	for rows.Next() {
		run, err := os.scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}
