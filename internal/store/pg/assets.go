package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"peopledesk.org/internal/asset"
	"peopledesk.org/internal/domain"
	"peopledesk.org/internal/ids"
	"peopledesk.org/internal/tenant"
)

// AssetStore implements asset.Store.
type AssetStore struct {
	store *Store
}

var _ asset.Store = (*AssetStore)(nil)

func (s *Store) Assets() *AssetStore { return &AssetStore{store: s} }

const assetColumns = `id, organization_id, name, kind, status, coalesce(assigned_to,''),
	coalesce(serial_number,''), renews_at, created_at, updated_at`

func scanAsset(row interface{ Scan(...any) error }) (asset.Asset, error) {
	var a asset.Asset
	err := row.Scan(&a.ID, &a.OrganizationID, &a.Name, &a.Kind, &a.Status,
		&a.AssignedTo, &a.SerialNumber, &a.RenewsAt, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return asset.Asset{}, domain.ErrNotFound
	}
	if err != nil {
		return asset.Asset{}, err
	}
	return a, nil
}

func (as *AssetStore) Insert(ctx context.Context, scope tenant.Scope, a *asset.Asset) error {
	a.ID = ids.New()
	a.OrganizationID = scope.OrgID()
	_, err := as.store.db.ExecContext(ctx, `
		insert into assets(id, organization_id, name, kind, status, serial_number, renews_at, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, a.ID, a.OrganizationID, a.Name, string(a.Kind), string(a.Status), a.SerialNumber,
		a.RenewsAt, a.CreatedAt, a.UpdatedAt)
	return err
}

func (as *AssetStore) Get(ctx context.Context, scope tenant.Scope, id string) (asset.Asset, error) {
	row := as.store.db.QueryRowContext(ctx, `
		select `+assetColumns+` from assets where id=$1 and organization_id=$2
	`, id, scope.OrgID())
	return scanAsset(row)
}

func (as *AssetStore) List(ctx context.Context, scope tenant.Scope) ([]asset.Asset, error) {
	return as.list(ctx, `
		select `+assetColumns+` from assets where organization_id=$1 order by created_at
	`, scope.OrgID())
}

func (as *AssetStore) ListByUser(ctx context.Context, scope tenant.Scope, userID string) ([]asset.Asset, error) {
	return as.list(ctx, `
		select `+assetColumns+` from assets
		where organization_id=$1 and assigned_to=$2 order by created_at
	`, scope.OrgID(), userID)
}

func (as *AssetStore) Update(ctx context.Context, scope tenant.Scope, a asset.Asset) error {
	var assigned sql.NullString
	if a.AssignedTo != "" {
		assigned = sql.NullString{String: a.AssignedTo, Valid: true}
	}
	res, err := as.store.db.ExecContext(ctx, `
		update assets set name=$3, status=$4, assigned_to=$5, renews_at=$6, updated_at=$7
		where id=$1 and organization_id=$2
	`, a.ID, scope.OrgID(), a.Name, string(a.Status), assigned, a.RenewsAt, a.UpdatedAt)
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

func (as *AssetStore) RenewingBefore(ctx context.Context, scope tenant.Scope, cutoff time.Time) ([]asset.Asset, error) {
	return as.list(ctx, `
		select `+assetColumns+` from assets
		where organization_id=$1 and status <> $2 and renews_at is not null and renews_at <= $3
		order by renews_at
	`, scope.OrgID(), string(asset.StatusRetired), cutoff)
}

func (as *AssetStore) list(ctx context.Context, query string, args ...any) ([]asset.Asset, error) {
	rows, err := as.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []asset.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
