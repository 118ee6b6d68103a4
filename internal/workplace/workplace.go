// Package workplace covers day-to-day office features: announcements,
// internal requests routed to admins, and meeting room bookings.
package workplace

import (
	"context"
	"sort"
	"strings"
	"time"

	"peopledesk.org/internal/domain"
	"peopledesk.org/internal/tenant"
)

// Announcement is a company-wide post. Pinned announcements sort first.
type Announcement struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	Pinned         bool      `json:"pinned"`
	AuthorID       string    `json:"author_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// RequestStatus tracks an internal request through its lifecycle.
type RequestStatus string

const (
	RequestOpen       RequestStatus = "open"
	RequestInProgress RequestStatus = "in_progress"
	RequestResolved   RequestStatus = "resolved"
	RequestClosed     RequestStatus = "closed"
)

// requestNext lists the allowed forward transitions.
var requestNext = map[RequestStatus][]RequestStatus{
	RequestOpen:       {RequestInProgress, RequestClosed},
	RequestInProgress: {RequestResolved, RequestClosed},
	RequestResolved:   {RequestClosed},
}

// Request is an internal request (IT, facilities, HR paperwork).
type Request struct {
	ID             string        `json:"id"`
	OrganizationID string        `json:"organization_id"`
	Title          string        `json:"title"`
	Category       string        `json:"category"`
	Status         RequestStatus `json:"status"`
	RequesterID    string        `json:"requester_id"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// Meeting is a room booking.
type Meeting struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Title          string    `json:"title"`
	Room           string    `json:"room"`
	StartsAt       time.Time `json:"starts_at"`
	EndsAt         time.Time `json:"ends_at"`
	OrganizerID    string    `json:"organizer_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// Store persists workplace records within an organization.
type Store interface {
	InsertAnnouncement(ctx context.Context, scope tenant.Scope, a *Announcement) error
	ListAnnouncements(ctx context.Context, scope tenant.Scope) ([]Announcement, error)
	DeleteAnnouncement(ctx context.Context, scope tenant.Scope, id string) error

	InsertRequest(ctx context.Context, scope tenant.Scope, r *Request) error
	GetRequest(ctx context.Context, scope tenant.Scope, id string) (Request, error)
	ListRequests(ctx context.Context, scope tenant.Scope) ([]Request, error)
	// TransitionRequest moves a request from one status to another in a
	// single compare-and-set. A missing row in scope reads as not found; a
	// row no longer in the from status reads as already processed.
	TransitionRequest(ctx context.Context, scope tenant.Scope, id string, from, to RequestStatus) error

	InsertMeeting(ctx context.Context, scope tenant.Scope, m *Meeting) error
	ListMeetings(ctx context.Context, scope tenant.Scope) ([]Meeting, error)
	DeleteMeeting(ctx context.Context, scope tenant.Scope, id string) error
	// MeetingsInRoom returns bookings for a room overlapping the window.
	MeetingsInRoom(ctx context.Context, scope tenant.Scope, room string, from, to time.Time) ([]Meeting, error)
}

// Service implements the workplace features.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService constructs the workplace service.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// PostAnnouncement publishes an announcement.
func (s *Service) PostAnnouncement(ctx context.Context, scope tenant.Scope, title, body string, pinned bool) (Announcement, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Announcement{}, domain.Invalid("title", "is required")
	}
	a := Announcement{
		Title:     title,
		Body:      strings.TrimSpace(body),
		Pinned:    pinned,
		AuthorID:  scope.Principal().ID,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.InsertAnnouncement(ctx, scope, &a); err != nil {
		return Announcement{}, err
	}
	return a, nil
}

// ListAnnouncements returns announcements with pinned posts first, newest
// first within each group.
func (s *Service) ListAnnouncements(ctx context.Context, scope tenant.Scope) ([]Announcement, error) {
	out, err := s.store.ListAnnouncements(ctx, scope)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Pinned != out[j].Pinned {
			return out[i].Pinned
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// DeleteAnnouncement removes a post.
func (s *Service) DeleteAnnouncement(ctx context.Context, scope tenant.Scope, id string) error {
	return s.store.DeleteAnnouncement(ctx, scope, id)
}

// OpenRequest files an internal request.
func (s *Service) OpenRequest(ctx context.Context, scope tenant.Scope, title, category string) (Request, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Request{}, domain.Invalid("title", "is required")
	}
	r := Request{
		Title:       title,
		Category:    strings.TrimSpace(category),
		Status:      RequestOpen,
		RequesterID: scope.Principal().ID,
		CreatedAt:   s.now().UTC(),
	}
	r.UpdatedAt = r.CreatedAt
	if err := s.store.InsertRequest(ctx, scope, &r); err != nil {
		return Request{}, err
	}
	return r, nil
}

// GetRequest returns one request within the scope.
func (s *Service) GetRequest(ctx context.Context, scope tenant.Scope, id string) (Request, error) {
	return s.store.GetRequest(ctx, scope, id)
}

// ListRequests returns the organization's requests.
func (s *Service) ListRequests(ctx context.Context, scope tenant.Scope) ([]Request, error) {
	return s.store.ListRequests(ctx, scope)
}

// AdvanceRequest moves a request to the next status. The allowed moves are
// open→in_progress, in_progress→resolved, resolved→closed, plus closing
// from open or in_progress. The store applies the move as a compare-and-set
// so concurrent updaters cannot double-apply.
func (s *Service) AdvanceRequest(ctx context.Context, scope tenant.Scope, id string, to RequestStatus) (Request, error) {
	r, err := s.store.GetRequest(ctx, scope, id)
	if err != nil {
		return Request{}, err
	}
	if !allowedRequestMove(r.Status, to) {
		if r.Status == RequestClosed {
			return Request{}, domain.ErrAlreadyProcessed
		}
		return Request{}, domain.Transition(string(r.Status), string(to))
	}
	if err := s.store.TransitionRequest(ctx, scope, id, r.Status, to); err != nil {
		return Request{}, err
	}
	return s.store.GetRequest(ctx, scope, id)
}

func allowedRequestMove(from, to RequestStatus) bool {
	for _, next := range requestNext[from] {
		if next == to {
			return true
		}
	}
	return false
}

// BookMeeting reserves a room. Two bookings for the same room may not
// overlap in time; back-to-back bookings sharing only an endpoint are fine.
func (s *Service) BookMeeting(ctx context.Context, scope tenant.Scope, title, room string, startsAt, endsAt time.Time) (Meeting, error) {
	title = strings.TrimSpace(title)
	room = strings.TrimSpace(room)
	if title == "" {
		return Meeting{}, domain.Invalid("title", "is required")
	}
	if room == "" {
		return Meeting{}, domain.Invalid("room", "is required")
	}
	if !endsAt.After(startsAt) {
		return Meeting{}, domain.Invalid("ends_at", "must be after starts_at")
	}
	clashes, err := s.store.MeetingsInRoom(ctx, scope, room, startsAt, endsAt)
	if err != nil {
		return Meeting{}, err
	}
	if len(clashes) > 0 {
		return Meeting{}, domain.Invalid("room", "is already booked for that time")
	}
	m := Meeting{
		Title:       title,
		Room:        room,
		StartsAt:    startsAt.UTC(),
		EndsAt:      endsAt.UTC(),
		OrganizerID: scope.Principal().ID,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.InsertMeeting(ctx, scope, &m); err != nil {
		return Meeting{}, err
	}
	return m, nil
}

// ListMeetings returns the organization's bookings.
func (s *Service) ListMeetings(ctx context.Context, scope tenant.Scope) ([]Meeting, error) {
	return s.store.ListMeetings(ctx, scope)
}

// CancelMeeting deletes a booking.
func (s *Service) CancelMeeting(ctx context.Context, scope tenant.Scope, id string) error {
	return s.store.DeleteMeeting(ctx, scope, id)
}
