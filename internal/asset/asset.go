// Package asset tracks company assets: hardware handed to employees plus
// licenses and subscriptions with renewal dates.
package asset

import (
	"context"
	"strings"
	"time"

	"peopledesk.org/internal/domain"
	"peopledesk.org/internal/tenant"
)

// Kind of asset.
type Kind string

const (
	KindHardware     Kind = "hardware"
	KindLicense      Kind = "license"
	KindSubscription Kind = "subscription"
)

func validKind(k Kind) bool {
	switch k {
	case KindHardware, KindLicense, KindSubscription:
		return true
	}
	return false
}

// Status of an asset. An in-service asset is "available" or "assigned"
// depending on whether AssignedTo holds it; "retired" is terminal. Clients
// that only care about in-service versus retired should treat the first two
// as one state.
type Status string

const (
	StatusAvailable Status = "available"
	StatusAssigned  Status = "assigned"
	StatusRetired   Status = "retired"
)

// Asset is one tracked item.
type Asset struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	Name           string     `json:"name"`
	Kind           Kind       `json:"kind"`
	Status         Status     `json:"status"`
	AssignedTo     string     `json:"assigned_to,omitempty"`
	SerialNumber   string     `json:"serial_number,omitempty"`
	RenewsAt       *time.Time `json:"renews_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Store persists assets within an organization.
type Store interface {
	Insert(ctx context.Context, scope tenant.Scope, a *Asset) error
	Get(ctx context.Context, scope tenant.Scope, id string) (Asset, error)
	List(ctx context.Context, scope tenant.Scope) ([]Asset, error)
	ListByUser(ctx context.Context, scope tenant.Scope, userID string) ([]Asset, error)
	Update(ctx context.Context, scope tenant.Scope, a Asset) error
	// RenewingBefore returns non-retired license and subscription assets
	// whose renewal date falls on or before the cutoff.
	RenewingBefore(ctx context.Context, scope tenant.Scope, cutoff time.Time) ([]Asset, error)
}

// Service manages the asset lifecycle.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService constructs the asset service.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Register adds a new asset in the available state. Renewal dates only make
// sense for licenses and subscriptions.
func (s *Service) Register(ctx context.Context, scope tenant.Scope, name string, kind Kind, serial string, renewsAt *time.Time) (Asset, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Asset{}, domain.Invalid("name", "is required")
	}
	if !validKind(kind) {
		return Asset{}, domain.Invalid("kind", "must be hardware, license or subscription")
	}
	if renewsAt != nil && kind == KindHardware {
		return Asset{}, domain.Invalid("renews_at", "hardware has no renewal date")
	}
	a := Asset{
		Name:         name,
		Kind:         kind,
		Status:       StatusAvailable,
		SerialNumber: strings.TrimSpace(serial),
		RenewsAt:     renewsAt,
		CreatedAt:    s.now().UTC(),
	}
	a.UpdatedAt = a.CreatedAt
	if err := s.store.Insert(ctx, scope, &a); err != nil {
		return Asset{}, err
	}
	return a, nil
}

// Get returns one asset within the scope.
func (s *Service) Get(ctx context.Context, scope tenant.Scope, id string) (Asset, error) {
	return s.store.Get(ctx, scope, id)
}

// List returns the organization's assets.
func (s *Service) List(ctx context.Context, scope tenant.Scope) ([]Asset, error) {
	return s.store.List(ctx, scope)
}

// ListByUser returns the assets assigned to a user.
func (s *Service) ListByUser(ctx context.Context, scope tenant.Scope, userID string) ([]Asset, error) {
	return s.store.ListByUser(ctx, scope, userID)
}

// Assign hands an available asset to a user. Retired assets cannot be
// assigned; reassigning takes the asset from the previous holder.
func (s *Service) Assign(ctx context.Context, scope tenant.Scope, id, userID string) (Asset, error) {
	if strings.TrimSpace(userID) == "" {
		return Asset{}, domain.Invalid("user_id", "is required")
	}
	a, err := s.store.Get(ctx, scope, id)
	if err != nil {
		return Asset{}, err
	}
	if a.Status == StatusRetired {
		return Asset{}, domain.Transition(string(StatusRetired), string(StatusAssigned))
	}
	a.Status = StatusAssigned
	a.AssignedTo = userID
	a.UpdatedAt = s.now().UTC()
	if err := s.store.Update(ctx, scope, a); err != nil {
		return Asset{}, err
	}
	return a, nil
}

// Unassign returns an asset to the pool.
func (s *Service) Unassign(ctx context.Context, scope tenant.Scope, id string) (Asset, error) {
	a, err := s.store.Get(ctx, scope, id)
	if err != nil {
		return Asset{}, err
	}
	if a.Status != StatusAssigned {
		return Asset{}, domain.Transition(string(a.Status), string(StatusAvailable))
	}
	a.Status = StatusAvailable
	a.AssignedTo = ""
	a.UpdatedAt = s.now().UTC()
	if err := s.store.Update(ctx, scope, a); err != nil {
		return Asset{}, err
	}
	return a, nil
}

// Retire takes an asset out of circulation permanently. Retiring twice
// reports the asset as already processed.
func (s *Service) Retire(ctx context.Context, scope tenant.Scope, id string) (Asset, error) {
	a, err := s.store.Get(ctx, scope, id)
	if err != nil {
		return Asset{}, err
	}
	if a.Status == StatusRetired {
		return Asset{}, domain.ErrAlreadyProcessed
	}
	a.Status = StatusRetired
	a.AssignedTo = ""
	a.UpdatedAt = s.now().UTC()
	if err := s.store.Update(ctx, scope, a); err != nil {
		return Asset{}, err
	}
	return a, nil
}

// RenewingWithin returns the licenses and subscriptions whose renewal date
// falls within the given horizon from now.
func (s *Service) RenewingWithin(ctx context.Context, scope tenant.Scope, horizon time.Duration) ([]Asset, error) {
	if horizon <= 0 {
		return nil, domain.Invalid("horizon", "must be positive")
	}
	cutoff := s.now().UTC().Add(horizon)
	return s.store.RenewingBefore(ctx, scope, cutoff)
}
