package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"peopledesk.org/internal/auth"
	"peopledesk.org/internal/domain"
	"peopledesk.org/internal/ids"
	"peopledesk.org/internal/people"
	"peopledesk.org/internal/tenant"
)

// UserStore implements people.Store and auth.Directory.
type UserStore struct {
	store *Store
}

var (
	_ people.Store   = (*UserStore)(nil)
	_ auth.Directory = (*UserStore)(nil)
)

func (s *Store) Users() *UserStore { return &UserStore{store: s} }

const userColumns = `id, organization_id, email, name, role, status, title, department,
	employment, joined_at, contract_ends_at, created_at, password_hash,
	coalesce(invite_token_hash,''), invite_expires_at`

func scanUser(row interface{ Scan(...any) error }) (people.User, error) {
	var u people.User
	err := row.Scan(&u.ID, &u.OrganizationID, &u.Email, &u.Name, &u.Role, &u.Status,
		&u.Title, &u.Department, &u.Employment, &u.JoinedAt, &u.ContractEndsAt,
		&u.CreatedAt, &u.PasswordHash, &u.InviteTokenHash, &u.InviteExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return people.User{}, domain.ErrNotFound
	}
	if err != nil {
		return people.User{}, err
	}
	return u, nil
}

func (us *UserStore) Insert(ctx context.Context, scope tenant.Scope, u *people.User) error {
	u.ID = ids.New()
	u.OrganizationID = scope.OrgID()
	var inviteHash sql.NullString
	if u.InviteTokenHash != "" {
		inviteHash = sql.NullString{String: u.InviteTokenHash, Valid: true}
	}
	_, err := us.store.db.ExecContext(ctx, `
		insert into users(id, organization_id, email, name, role, status, title, department,
			employment, joined_at, contract_ends_at, created_at, password_hash,
			invite_token_hash, invite_expires_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`, u.ID, u.OrganizationID, u.Email, u.Name, string(u.Role), u.Status, u.Title, u.Department,
		string(u.Employment), u.JoinedAt, u.ContractEndsAt, u.CreatedAt, u.PasswordHash,
		inviteHash, u.InviteExpiresAt)
	return err
}

func (us *UserStore) Get(ctx context.Context, scope tenant.Scope, id string) (people.User, error) {
	row := us.store.db.QueryRowContext(ctx, `
		select `+userColumns+` from users where id=$1 and organization_id=$2
	`, id, scope.OrgID())
	return scanUser(row)
}

func (us *UserStore) GetByEmail(ctx context.Context, scope tenant.Scope, email string) (people.User, error) {
	row := us.store.db.QueryRowContext(ctx, `
		select `+userColumns+` from users where email=$1 and organization_id=$2
	`, strings.ToLower(email), scope.OrgID())
	return scanUser(row)
}

func (us *UserStore) List(ctx context.Context, scope tenant.Scope) ([]people.User, error) {
	rows, err := us.store.db.QueryContext(ctx, `
		select `+userColumns+` from users where organization_id=$1 order by created_at
	`, scope.OrgID())
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

func (us *UserStore) Update(ctx context.Context, scope tenant.Scope, u people.User) error {
	res, err := us.store.db.ExecContext(ctx, `
		update users set name=$3, role=$4, status=$5, title=$6, department=$7,
			employment=$8, joined_at=$9, contract_ends_at=$10
		where id=$1 and organization_id=$2
	`, u.ID, scope.OrgID(), u.Name, string(u.Role), u.Status, u.Title, u.Department,
		string(u.Employment), u.JoinedAt, u.ContractEndsAt)
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

func (us *UserStore) FindByInviteHash(ctx context.Context, tokenHash string) (people.User, error) {
	row := us.store.db.QueryRowContext(ctx, `
		select `+userColumns+` from users where invite_token_hash=$1
	`, tokenHash)
	return scanUser(row)
}

// Activate flips an invited user to active and burns the invite token. The
// status predicate makes the redemption single-use under concurrency.
func (us *UserStore) Activate(ctx context.Context, userID, passwordHash string) error {
	res, err := us.store.db.ExecContext(ctx, `
		update users set status=$3, password_hash=$4, invite_token_hash=null, invite_expires_at=null
		where id=$1 and status=$2
	`, userID, auth.StatusInvited, auth.StatusActive, passwordHash)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var status string
		err := us.store.db.QueryRowContext(ctx, `select status from users where id=$1`, userID).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		return domain.ErrAlreadyProcessed
	}
	return nil
}

// FindAccount implements auth.Directory for the session resolver.
func (us *UserStore) FindAccount(ctx context.Context, id string) (auth.Account, error) {
	return us.scanAccount(us.store.db.QueryRowContext(ctx, `
		select id, organization_id, email, name, role, status, password_hash
		from users where id=$1
	`, id))
}

// FindAccountByEmail implements auth.Directory for the login flow. Emails are
// unique per organization, not globally, so login matches on the lowest
// created account; single-org deployments never hit the ambiguity.
func (us *UserStore) FindAccountByEmail(ctx context.Context, email string) (auth.Account, error) {
	return us.scanAccount(us.store.db.QueryRowContext(ctx, `
		select id, organization_id, email, name, role, status, password_hash
		from users where email=$1 order by created_at limit 1
	`, strings.ToLower(email)))
}

func (us *UserStore) scanAccount(row *sql.Row) (auth.Account, error) {
	var a auth.Account
	err := row.Scan(&a.ID, &a.OrganizationID, &a.Email, &a.Name, &a.Role, &a.Status, &a.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Account{}, auth.ErrUserNotFound
	}
	if err != nil {
		return auth.Account{}, err
	}
	return a, nil
}
