// Package org manages organizations, their subscription plan and the
// per-organization module toggles.
package org

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"peopledesk.org/internal/auth"
	"peopledesk.org/internal/domain"
	"peopledesk.org/internal/leave"
	"peopledesk.org/internal/tenant"
)

// Module identifiers. Core modules are always on and cannot be disabled or
// hidden.
const (
	ModulePeople     = "people"
	ModuleLeave      = "leave"
	ModuleExpenses   = "expenses"
	ModuleTasks      = "tasks"
	ModuleOnboarding = "onboarding"
	ModuleAssets     = "assets"
	ModuleWorkplace  = "workplace"
)

// coreModules are available on every plan regardless of settings.
var coreModules = map[string]bool{
	ModulePeople: true,
	ModuleLeave:  true,
}

// KnownModules lists every module identifier.
var KnownModules = []string{
	ModulePeople, ModuleLeave, ModuleExpenses, ModuleTasks,
	ModuleOnboarding, ModuleAssets, ModuleWorkplace,
}

func knownModule(id string) bool {
	for _, m := range KnownModules {
		if m == id {
			return true
		}
	}
	return false
}

// Plan names.
const (
	PlanFree     = "free"
	PlanStandard = "standard"
	PlanPremium  = "premium"
)

// Subscription states.
const (
	SubscriptionActive   = "active"
	SubscriptionPastDue  = "past_due"
	SubscriptionCanceled = "canceled"
)

// Settings holds the per-organization configuration.
type Settings struct {
	Plan               string             `json:"plan"`
	SubscriptionStatus string             `json:"subscription_status"`
	EnabledModules     map[string]bool    `json:"enabled_modules"`
	HiddenModules      map[string]bool    `json:"hidden_modules"`
	LeaveAllowances    map[leave.Type]int `json:"leave_allowances,omitempty"`
}

// Organization is one tenant.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Settings  Settings  `json:"settings"`
	CreatedAt time.Time `json:"created_at"`
}

// ModuleEnabled reports whether a module is available to the organization:
// core modules always are; everything else must be enabled and not hidden.
func (o Organization) ModuleEnabled(id string) bool {
	if coreModules[id] {
		return true
	}
	return o.Settings.EnabledModules[id] && !o.Settings.HiddenModules[id]
}

// Store persists organizations. Reads within a tenant take a scope; the
// provisioning and listing paths are super-admin territory and work on raw
// ids instead.
type Store interface {
	Insert(ctx context.Context, o *Organization) error
	GetByID(ctx context.Context, id string) (Organization, error)
	Get(ctx context.Context, scope tenant.Scope) (Organization, error)
	ListAll(ctx context.Context) ([]Organization, error)
	UpdateSettings(ctx context.Context, scope tenant.Scope, settings Settings) error
	// InsertAdmin creates the first user of a freshly provisioned
	// organization.
	InsertAdmin(ctx context.Context, orgID string, admin *auth.Account) error
}

// Service manages organizations.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService constructs the org service.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// DefaultSettings for a new organization.
func DefaultSettings() Settings {
	return Settings{
		Plan:               PlanFree,
		SubscriptionStatus: SubscriptionActive,
		EnabledModules: map[string]bool{
			ModuleExpenses: true,
			ModuleTasks:    true,
		},
		HiddenModules: map[string]bool{},
	}
}

// Provision creates an organization together with its first admin user. Only
// the cross-tenant scope may call it; tenant-bound principals cannot create
// organizations.
func (s *Service) Provision(ctx context.Context, scope tenant.Scope, name, adminEmail, adminName, adminPassword string) (Organization, auth.Account, error) {
	if !scope.CrossTenant() {
		return Organization{}, auth.Account{}, auth.ErrUnauthorized
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Organization{}, auth.Account{}, domain.Invalid("name", "is required")
	}
	adminEmail = strings.ToLower(strings.TrimSpace(adminEmail))
	if _, err := mail.ParseAddress(adminEmail); err != nil {
		return Organization{}, auth.Account{}, domain.Invalid("admin_email", "is not a valid address")
	}
	adminName = strings.TrimSpace(adminName)
	if adminName == "" {
		return Organization{}, auth.Account{}, domain.Invalid("admin_name", "is required")
	}
	if len(adminPassword) < 8 {
		return Organization{}, auth.Account{}, domain.Invalid("admin_password", "must be at least 8 characters")
	}
	hash, err := auth.HashPassword(adminPassword)
	if err != nil {
		return Organization{}, auth.Account{}, err
	}

	o := Organization{
		Name:      name,
		Settings:  DefaultSettings(),
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.Insert(ctx, &o); err != nil {
		return Organization{}, auth.Account{}, err
	}
	admin := auth.Account{
		OrganizationID: o.ID,
		Email:          adminEmail,
		Name:           adminName,
		Role:           auth.RoleAdmin,
		Status:         auth.StatusActive,
		PasswordHash:   hash,
	}
	if err := s.store.InsertAdmin(ctx, o.ID, &admin); err != nil {
		return Organization{}, auth.Account{}, err
	}
	return o, admin, nil
}

// Get returns the caller's organization.
func (s *Service) Get(ctx context.Context, scope tenant.Scope) (Organization, error) {
	return s.store.Get(ctx, scope)
}

// ListAll returns every organization; cross-tenant scope only.
func (s *Service) ListAll(ctx context.Context, scope tenant.Scope) ([]Organization, error) {
	if !scope.CrossTenant() {
		return nil, auth.ErrUnauthorized
	}
	return s.store.ListAll(ctx)
}

// UpdateSettings replaces the organization's settings. Core modules cannot
// be hidden, and unknown module ids are rejected.
func (s *Service) UpdateSettings(ctx context.Context, scope tenant.Scope, settings Settings) (Organization, error) {
	switch settings.Plan {
	case PlanFree, PlanStandard, PlanPremium:
	default:
		return Organization{}, domain.Invalid("plan", "is unknown")
	}
	switch settings.SubscriptionStatus {
	case SubscriptionActive, SubscriptionPastDue, SubscriptionCanceled:
	default:
		return Organization{}, domain.Invalid("subscription_status", "is unknown")
	}
	for id := range settings.EnabledModules {
		if !knownModule(id) {
			return Organization{}, domain.Invalid("enabled_modules", "unknown module "+id)
		}
	}
	for id := range settings.HiddenModules {
		if !knownModule(id) {
			return Organization{}, domain.Invalid("hidden_modules", "unknown module "+id)
		}
		if coreModules[id] {
			return Organization{}, domain.Invalid("hidden_modules", id+" is a core module")
		}
	}
	for typ, n := range settings.LeaveAllowances {
		if !typ.Valid() {
			return Organization{}, domain.Invalid("leave_allowances", "unknown leave type "+string(typ))
		}
		if n < 0 {
			return Organization{}, domain.Invalid("leave_allowances", "must not be negative")
		}
	}
	if err := s.store.UpdateSettings(ctx, scope, settings); err != nil {
		return Organization{}, err
	}
	return s.store.Get(ctx, scope)
}

// LeaveAllowances implements leave.AllowanceSource: organizations may
// override the default per-type allowances in their settings.
func (s *Service) LeaveAllowances(ctx context.Context, scope tenant.Scope) (map[leave.Type]int, error) {
	o, err := s.store.Get(ctx, scope)
	if err != nil {
		return nil, err
	}
	allowances := make(map[leave.Type]int, len(leave.DefaultAllowances))
	for typ, n := range leave.DefaultAllowances {
		allowances[typ] = n
	}
	for typ, n := range o.Settings.LeaveAllowances {
		allowances[typ] = n
	}
	return allowances, nil
}
