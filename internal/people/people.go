// Package people manages the employee directory: user records, invite
// tokens, bulk provisioning and employment metadata.
package people

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"peopledesk.org/internal/auth"
	"peopledesk.org/internal/domain"
	"peopledesk.org/internal/tenant"
)

// EmploymentType of a user.
type EmploymentType string

const (
	EmploymentPermanent EmploymentType = "permanent"
	EmploymentContract  EmploymentType = "contract"
)

// User is an employee record. PasswordHash and InviteTokenHash never leave
// the server.
type User struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organization_id"`
	Email          string         `json:"email"`
	Name           string         `json:"name"`
	Role           auth.Role      `json:"role"`
	Status         string         `json:"status"`
	Title          string         `json:"title,omitempty"`
	Department     string         `json:"department,omitempty"`
	Employment     EmploymentType `json:"employment"`
	JoinedAt       *time.Time     `json:"joined_at,omitempty"`
	ContractEndsAt *time.Time     `json:"contract_ends_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`

	PasswordHash    string     `json:"-"`
	InviteTokenHash string     `json:"-"`
	InviteExpiresAt *time.Time `json:"-"`
}

// Invite TTLs. Bulk-provisioned invites get a shorter window because they
// are issued without an individual conversation behind them.
const (
	InviteTTL     = 7 * 24 * time.Hour
	BulkInviteTTL = 48 * time.Hour
)

// ProbationDays is the length of the probation period from the join date.
const ProbationDays = 90

// Store persists users within an organization. FindByInviteHash is the one
// lookup that runs without a scope: the redeeming user is not signed in yet,
// and the hash itself identifies the row.
type Store interface {
	Insert(ctx context.Context, scope tenant.Scope, u *User) error
	Get(ctx context.Context, scope tenant.Scope, id string) (User, error)
	GetByEmail(ctx context.Context, scope tenant.Scope, email string) (User, error)
	List(ctx context.Context, scope tenant.Scope) ([]User, error)
	Update(ctx context.Context, scope tenant.Scope, u User) error
	FindByInviteHash(ctx context.Context, tokenHash string) (User, error)
	// Activate flips an invited user to active, setting the password hash
	// and clearing the invite token in one compare-and-set on the invited
	// status. A user no longer invited reads as already processed.
	Activate(ctx context.Context, userID, passwordHash string) error
}

// Service manages the directory.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService constructs the people service.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// NewUserParams carries the fields for inviting a user.
type NewUserParams struct {
	Email          string
	Name           string
	Role           auth.Role
	Title          string
	Department     string
	Employment     EmploymentType
	JoinedAt       *time.Time
	ContractEndsAt *time.Time
}

func (p *NewUserParams) normalize() error {
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	if _, err := mail.ParseAddress(p.Email); err != nil {
		return domain.Invalid("email", "is not a valid address")
	}
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return domain.Invalid("name", "is required")
	}
	if p.Role == "" {
		p.Role = auth.RoleMember
	}
	role, err := auth.ParseRole(string(p.Role))
	if err != nil {
		return domain.Invalid("role", "is unknown")
	}
	p.Role = role
	if p.Employment == "" {
		p.Employment = EmploymentPermanent
	}
	if p.Employment != EmploymentPermanent && p.Employment != EmploymentContract {
		return domain.Invalid("employment", "must be permanent or contract")
	}
	if p.Employment == EmploymentContract && p.ContractEndsAt == nil {
		return domain.Invalid("contract_ends_at", "is required for contract employment")
	}
	if p.Employment == EmploymentPermanent && p.ContractEndsAt != nil {
		return domain.Invalid("contract_ends_at", "only applies to contract employment")
	}
	return nil
}

// Invite creates an invited user and returns the record together with the
// one-time invite token. Only the token's SHA-256 hash is stored; the
// plaintext exists only in this return value.
func (s *Service) Invite(ctx context.Context, scope tenant.Scope, params NewUserParams) (User, string, error) {
	return s.invite(ctx, scope, params, InviteTTL)
}

func (s *Service) invite(ctx context.Context, scope tenant.Scope, params NewUserParams, ttl time.Duration) (User, string, error) {
	if err := params.normalize(); err != nil {
		return User{}, "", err
	}
	if _, err := s.store.GetByEmail(ctx, scope, params.Email); err == nil {
		return User{}, "", domain.Invalid("email", "is already in use")
	} else if !domain.IsNotFound(err) {
		return User{}, "", err
	}

	token, hash, err := newInviteToken()
	if err != nil {
		return User{}, "", err
	}
	expires := s.now().UTC().Add(ttl)
	u := User{
		Email:           params.Email,
		Name:            params.Name,
		Role:            params.Role,
		Status:          auth.StatusInvited,
		Title:           strings.TrimSpace(params.Title),
		Department:      strings.TrimSpace(params.Department),
		Employment:      params.Employment,
		JoinedAt:        params.JoinedAt,
		ContractEndsAt:  params.ContractEndsAt,
		CreatedAt:       s.now().UTC(),
		InviteTokenHash: hash,
		InviteExpiresAt: &expires,
	}
	if err := s.store.Insert(ctx, scope, &u); err != nil {
		return User{}, "", err
	}
	return u, token, nil
}

func newInviteToken() (token, hash string, err error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("generate invite token: %w", err)
	}
	token = hex.EncodeToString(raw)
	return token, HashInviteToken(token), nil
}

// HashInviteToken returns the stored form of an invite token.
func HashInviteToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Redeem activates an invited user. The token is single-use: redemption
// clears the stored hash, and a second attempt with the same token reads as
// not found. A token past its expiry is rejected the same way an unknown
// one is.
func (s *Service) Redeem(ctx context.Context, token, password string) (User, error) {
	if len(password) < 8 {
		return User{}, domain.Invalid("password", "must be at least 8 characters")
	}
	u, err := s.store.FindByInviteHash(ctx, HashInviteToken(token))
	if err != nil {
		return User{}, err
	}
	if u.InviteExpiresAt == nil || s.now().After(*u.InviteExpiresAt) {
		return User{}, domain.ErrNotFound
	}
	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return User{}, err
	}
	if err := s.store.Activate(ctx, u.ID, passwordHash); err != nil {
		return User{}, err
	}
	u.Status = auth.StatusActive
	u.PasswordHash = passwordHash
	u.InviteTokenHash = ""
	u.InviteExpiresAt = nil
	return u, nil
}

// BulkResult reports the outcome for one entry of a bulk provisioning call.
type BulkResult struct {
	Email string `json:"email"`
	User  *User  `json:"user,omitempty"`
	Token string `json:"token,omitempty"`
	Error string `json:"error,omitempty"`
}

// BulkInvite provisions many users in one call. Entries succeed or fail
// independently: a bad row never blocks the rows around it, and each result
// carries either the created user or the reason it was skipped.
func (s *Service) BulkInvite(ctx context.Context, scope tenant.Scope, entries []NewUserParams) ([]BulkResult, error) {
	if len(entries) == 0 {
		return nil, domain.Invalid("entries", "at least one entry is required")
	}
	results := make([]BulkResult, 0, len(entries))
	for _, entry := range entries {
		res := BulkResult{Email: strings.ToLower(strings.TrimSpace(entry.Email))}
		u, token, err := s.invite(ctx, scope, entry, BulkInviteTTL)
		if err != nil {
			res.Error = err.Error()
		} else {
			res.User = &u
			res.Token = token
		}
		results = append(results, res)
	}
	return results, nil
}

// Get returns one user within the scope.
func (s *Service) Get(ctx context.Context, scope tenant.Scope, id string) (User, error) {
	return s.store.Get(ctx, scope, id)
}

// List returns the organization's users.
func (s *Service) List(ctx context.Context, scope tenant.Scope) ([]User, error) {
	return s.store.List(ctx, scope)
}

// SetRole changes a user's role.
func (s *Service) SetRole(ctx context.Context, scope tenant.Scope, id string, role auth.Role) (User, error) {
	role, err := auth.ParseRole(string(role))
	if err != nil {
		return User{}, domain.Invalid("role", "is unknown")
	}
	u, err := s.store.Get(ctx, scope, id)
	if err != nil {
		return User{}, err
	}
	u.Role = role
	if err := s.store.Update(ctx, scope, u); err != nil {
		return User{}, err
	}
	return u, nil
}

// Deactivate suspends a user's access without deleting the record.
func (s *Service) Deactivate(ctx context.Context, scope tenant.Scope, id string) (User, error) {
	u, err := s.store.Get(ctx, scope, id)
	if err != nil {
		return User{}, err
	}
	if u.Status == auth.StatusSuspended {
		return User{}, domain.ErrAlreadyProcessed
	}
	u.Status = auth.StatusSuspended
	if err := s.store.Update(ctx, scope, u); err != nil {
		return User{}, err
	}
	return u, nil
}

// OnProbation reports whether the user is inside the probation window:
// the first ProbationDays days from the join date.
func (u User) OnProbation(at time.Time) bool {
	if u.JoinedAt == nil {
		return false
	}
	end := u.JoinedAt.Add(ProbationDays * 24 * time.Hour)
	return !at.Before(*u.JoinedAt) && at.Before(end)
}
