package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"peopledesk.org/internal/auth"
	"peopledesk.org/internal/domain"
	"peopledesk.org/internal/ids"
	"peopledesk.org/internal/org"
	"peopledesk.org/internal/tenant"
)

// OrgStore implements org.Store. Settings live in a jsonb column so adding a
// toggle never needs a migration.
type OrgStore struct {
	store *Store
}

var _ org.Store = (*OrgStore)(nil)

func (s *Store) Orgs() *OrgStore { return &OrgStore{store: s} }

func (os *OrgStore) Insert(ctx context.Context, o *org.Organization) error {
	o.ID = ids.New()
	settings, err := json.Marshal(o.Settings)
	if err != nil {
		return err
	}
	_, err = os.store.db.ExecContext(ctx, `
		insert into organizations(id, name, settings, created_at)
		values ($1,$2,$3,$4)
	`, o.ID, o.Name, settings, o.CreatedAt)
	return err
}

func (os *OrgStore) GetByID(ctx context.Context, id string) (org.Organization, error) {
	return os.scanOrg(os.store.db.QueryRowContext(ctx, `
		select id, name, settings, created_at from organizations where id=$1
	`, id))
}

func (os *OrgStore) Get(ctx context.Context, scope tenant.Scope) (org.Organization, error) {
	return os.GetByID(ctx, scope.OrgID())
}

func (os *OrgStore) ListAll(ctx context.Context) ([]org.Organization, error) {
	rows, err := os.store.db.QueryContext(ctx, `
		select id, name, settings, created_at from organizations order by created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []org.Organization
	for rows.Next() {
		o, err := os.scanOrg(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (os *OrgStore) UpdateSettings(ctx context.Context, scope tenant.Scope, settings org.Settings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	res, err := os.store.db.ExecContext(ctx, `
		update organizations set settings=$2 where id=$1
	`, scope.OrgID(), raw)
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

func (os *OrgStore) InsertAdmin(ctx context.Context, orgID string, admin *auth.Account) error {
	admin.ID = ids.New()
	admin.OrganizationID = orgID
	_, err := os.store.db.ExecContext(ctx, `
		insert into users(id, organization_id, email, name, role, status, employment, created_at, password_hash)
		values ($1,$2,$3,$4,$5,$6,'permanent',now(),$7)
	`, admin.ID, orgID, admin.Email, admin.Name, string(admin.Role), admin.Status, admin.PasswordHash)
	return err
}

func (os *OrgStore) scanOrg(row interface{ Scan(...any) error }) (org.Organization, error) {
	var o org.Organization
	var settings []byte
	err := row.Scan(&o.ID, &o.Name, &settings, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return org.Organization{}, domain.ErrNotFound
	}
	if err != nil {
		return org.Organization{}, err
	}
	if err := json.Unmarshal(settings, &o.Settings); err != nil {
		return org.Organization{}, err
	}
	return o, nil
}
