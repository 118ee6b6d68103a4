package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const sessionTTL = 12 * time.Hour

// Directory is the account lookup the resolver and login flow depend on.
type Directory interface {
	FindAccount(ctx context.Context, id string) (Account, error)
	FindAccountByEmail(ctx context.Context, email string) (Account, error)
}

// Resolver turns session tokens into principals.
type Resolver struct {
	dir Directory

	// superAdminEmail and superAdminHash come from the environment; when the
	// email is empty the super-admin path is disabled entirely.
	superAdminEmail string
	superAdminHash  string
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithSuperAdmin enables the synthetic cross-tenant administrator for the
// given email and bcrypt password hash.
func WithSuperAdmin(email, passwordHash string) ResolverOption {
	return func(r *Resolver) {
		r.superAdminEmail = strings.TrimSpace(strings.ToLower(email))
		r.superAdminHash = strings.TrimSpace(passwordHash)
	}
}

// NewResolver constructs a Resolver backed by the given directory.
func NewResolver(dir Directory, opts ...ResolverOption) (*Resolver, error) {
	if dir == nil {
		return nil, errors.New("account directory is required")
	}
	r := &Resolver{dir: dir}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// superAdminPrincipal is the synthetic identity returned without a database
// lookup. It carries no organization, which keeps it outside every tenant
// scope.
func (r *Resolver) superAdminPrincipal() Principal {
	return Principal{
		ID:    SuperAdminID,
		Email: r.superAdminEmail,
		Name:  "Super Admin",
		Role:  RoleAdmin,
	}
}

// Login verifies credentials and issues a session token. Credential failures
// are reported uniformly so callers cannot probe which part was wrong.
func (r *Resolver) Login(ctx context.Context, email, password string) (string, Principal, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return "", Principal{}, fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}

	if r.superAdminEmail != "" && email == r.superAdminEmail {
		if r.superAdminHash == "" || VerifyPassword(r.superAdminHash, password) != nil {
			return "", Principal{}, ErrNotAuthenticated
		}
		token, err := GenerateSessionToken(SuperAdminID, sessionTTL)
		if err != nil {
			return "", Principal{}, err
		}
		return token, r.superAdminPrincipal(), nil
	}

	account, err := r.dir.FindAccountByEmail(ctx, email)
	if err != nil {
		return "", Principal{}, ErrNotAuthenticated
	}
	if account.Status != StatusActive {
		return "", Principal{}, ErrNotAuthenticated
	}
	if err := VerifyPassword(account.PasswordHash, password); err != nil {
		return "", Principal{}, ErrNotAuthenticated
	}
	token, err := GenerateSessionToken(account.ID, sessionTTL)
	if err != nil {
		return "", Principal{}, err
	}
	return token, principalFor(account), nil
}

// Resolve validates a session token and loads the principal behind it.
func (r *Resolver) Resolve(ctx context.Context, token string) (Principal, error) {
	subject, err := ParseSessionToken(token)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %w", ErrNotAuthenticated, err)
	}
	if subject == SuperAdminID {
		if r.superAdminEmail == "" {
			return Principal{}, fmt.Errorf("%w: super-admin disabled", ErrNotAuthenticated)
		}
		return r.superAdminPrincipal(), nil
	}
	account, err := r.dir.FindAccount(ctx, subject)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %s", ErrUserNotFound, subject)
	}
	if account.Status != StatusActive {
		return Principal{}, fmt.Errorf("%w: account inactive", ErrNotAuthenticated)
	}
	return principalFor(account), nil
}

func principalFor(a Account) Principal {
	return Principal{
		ID:             a.ID,
		Email:          a.Email,
		Name:           a.Name,
		Role:           a.Role,
		OrganizationID: a.OrganizationID,
	}
}
