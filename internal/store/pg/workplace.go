package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"peopledesk.org/internal/domain"
	"peopledesk.org/internal/ids"
	"peopledesk.org/internal/tenant"
	"peopledesk.org/internal/workplace"
)

// WorkplaceStore implements workplace.Store.
type WorkplaceStore struct {
	store *Store
}

var _ workplace.Store = (*WorkplaceStore)(nil)

func (s *Store) Workplace() *WorkplaceStore { return &WorkplaceStore{store: s} }

func (ws *WorkplaceStore) InsertAnnouncement(ctx context.Context, scope tenant.Scope, a *workplace.Announcement) error {
	a.ID = ids.New()
	a.OrganizationID = scope.OrgID()
	_, err := ws.store.db.ExecContext(ctx, `
		insert into announcements(id, organization_id, title, body, pinned, author_id, created_at)
		values ($1,$2,$3,$4,$5,$6,$7)
	`, a.ID, a.OrganizationID, a.Title, a.Body, a.Pinned, a.AuthorID, a.CreatedAt)
	return err
}

func (ws *WorkplaceStore) ListAnnouncements(ctx context.Context, scope tenant.Scope) ([]workplace.Announcement, error) {
	rows, err := ws.store.db.QueryContext(ctx, `
		select id, organization_id, title, body, pinned, author_id, created_at
		from announcements where organization_id=$1
	`, scope.OrgID())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []workplace.Announcement
	for rows.Next() {
		var a workplace.Announcement
		if err := rows.Scan(&a.ID, &a.OrganizationID, &a.Title, &a.Body, &a.Pinned, &a.AuthorID, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (ws *WorkplaceStore) DeleteAnnouncement(ctx context.Context, scope tenant.Scope, id string) error {
	return ws.deleteScoped(ctx, `delete from announcements where id=$1 and organization_id=$2`, id, scope.OrgID())
}

func (ws *WorkplaceStore) InsertRequest(ctx context.Context, scope tenant.Scope, r *workplace.Request) error {
	r.ID = ids.New()
	r.OrganizationID = scope.OrgID()
	_, err := ws.store.db.ExecContext(ctx, `
		insert into internal_requests(id, organization_id, title, category, status, requester_id, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8)
	`, r.ID, r.OrganizationID, r.Title, r.Category, string(r.Status), r.RequesterID, r.CreatedAt, r.UpdatedAt)
	return err
}

func (ws *WorkplaceStore) GetRequest(ctx context.Context, scope tenant.Scope, id string) (workplace.Request, error) {
	return ws.scanRequest(ws.store.db.QueryRowContext(ctx, `
		select id, organization_id, title, coalesce(category,''), status, requester_id, created_at, updated_at
		from internal_requests where id=$1 and organization_id=$2
	`, id, scope.OrgID()))
}

func (ws *WorkplaceStore) ListRequests(ctx context.Context, scope tenant.Scope) ([]workplace.Request, error) {
	rows, err := ws.store.db.QueryContext(ctx, `
		select id, organization_id, title, coalesce(category,''), status, requester_id, created_at, updated_at
		from internal_requests where organization_id=$1 order by created_at desc
	`, scope.OrgID())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []workplace.Request
	for rows.Next() {
		r, err := ws.scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// TransitionRequest applies the lifecycle move as a compare-and-set on the
// expected prior status.
func (ws *WorkplaceStore) TransitionRequest(ctx context.Context, scope tenant.Scope, id string, from, to workplace.RequestStatus) error {
	res, err := ws.store.db.ExecContext(ctx, `
		update internal_requests set status=$4, updated_at=now()
		where id=$1 and organization_id=$2 and status=$3
	`, id, scope.OrgID(), string(from), string(to))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := ws.GetRequest(ctx, scope, id); err != nil {
			return err
		}
		return domain.ErrAlreadyProcessed
	}
	return nil
}

func (ws *WorkplaceStore) InsertMeeting(ctx context.Context, scope tenant.Scope, m *workplace.Meeting) error {
	m.ID = ids.New()
	m.OrganizationID = scope.OrgID()
	_, err := ws.store.db.ExecContext(ctx, `
		insert into meetings(id, organization_id, title, room, starts_at, ends_at, organizer_id, created_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8)
	`, m.ID, m.OrganizationID, m.Title, m.Room, m.StartsAt, m.EndsAt, m.OrganizerID, m.CreatedAt)
	return err
}

func (ws *WorkplaceStore) ListMeetings(ctx context.Context, scope tenant.Scope) ([]workplace.Meeting, error) {
	return ws.listMeetings(ctx, `
		select id, organization_id, title, room, starts_at, ends_at, organizer_id, created_at
		from meetings where organization_id=$1 order by starts_at
	`, scope.OrgID())
}

func (ws *WorkplaceStore) DeleteMeeting(ctx context.Context, scope tenant.Scope, id string) error {
	return ws.deleteScoped(ctx, `delete from meetings where id=$1 and organization_id=$2`, id, scope.OrgID())
}

func (ws *WorkplaceStore) MeetingsInRoom(ctx context.Context, scope tenant.Scope, room string, from, to time.Time) ([]workplace.Meeting, error) {
	return ws.listMeetings(ctx, `
		select id, organization_id, title, room, starts_at, ends_at, organizer_id, created_at
		from meetings
		where organization_id=$1 and room=$2 and starts_at < $4 and ends_at > $3
	`, scope.OrgID(), room, from, to)
}

func (ws *WorkplaceStore) scanRequest(row interface{ Scan(...any) error }) (workplace.Request, error) {
	var r workplace.Request
	err := row.Scan(&r.ID, &r.OrganizationID, &r.Title, &r.Category, &r.Status,
		&r.RequesterID, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return workplace.Request{}, domain.ErrNotFound
	}
	if err != nil {
		return workplace.Request{}, err
	}
	return r, nil
}

func (ws *WorkplaceStore) listMeetings(ctx context.Context, query string, args ...any) ([]workplace.Meeting, error) {
	rows, err := ws.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []workplace.Meeting
	for rows.Next() {
		var m workplace.Meeting
		if err := rows.Scan(&m.ID, &m.OrganizationID, &m.Title, &m.Room, &m.StartsAt, &m.EndsAt, &m.OrganizerID, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (ws *WorkplaceStore) deleteScoped(ctx context.Context, query string, args ...any) error {
	res, err := ws.store.db.ExecContext(ctx, query, args...)
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
