package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	issuer            = "peopledesk"
	secretEnvVariable = "PD_AUTH_SECRET"

	sessionTokenType = "session"
	apiTokenType     = "api"
)

var (
	errMissingSecret = errors.New("auth secret is not configured")

	secretMu sync.Mutex
	secret   cachedSecret
)

type cachedSecret struct {
	value []byte
	err   error
	ready bool
}

// SessionClaims are the JWT claims carried by interactive session tokens.
type SessionClaims struct {
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// APIClaims are the JWT claims carried by public-API bearer tokens. The token
// is bound to one organization and a fixed scope set.
type APIClaims struct {
	TokenType      string   `json:"token_type"`
	OrganizationID string   `json:"org"`
	Scopes         []string `json:"scopes"`
	jwt.RegisteredClaims
}

// HasScope reports whether the token grants the named scope.
func (c *APIClaims) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// GenerateSessionToken signs an HS256 session JWT for the given subject.
func GenerateSessionToken(subject string, ttl time.Duration) (string, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", errors.New("subject is required")
	}
	if ttl <= 0 {
		return "", errors.New("ttl must be greater than zero")
	}
	secretBytes, err := loadSecret()
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	claims := SessionClaims{
		TokenType: sessionTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secretBytes)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseSessionToken verifies the signature and claims of a session token and
// returns its subject.
func ParseSessionToken(token string) (string, error) {
	claims := &SessionClaims{}
	if err := parseInto(token, claims); err != nil {
		return "", err
	}
	if claims.TokenType != sessionTokenType {
		return "", ErrInvalidToken
	}
	if err := validateRegistered(&claims.RegisteredClaims); err != nil {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// GenerateAPIToken signs a public-API bearer token bound to an organization
// and scope set.
func GenerateAPIToken(orgID string, scopes []string, ttl time.Duration) (string, error) {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return "", errors.New("organization id is required")
	}
	scopes = dedupeScopes(scopes)
	if len(scopes) == 0 {
		return "", errors.New("at least one scope is required")
	}
	if ttl <= 0 {
		return "", errors.New("ttl must be greater than zero")
	}
	secretBytes, err := loadSecret()
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	claims := APIClaims{
		TokenType:      apiTokenType,
		OrganizationID: orgID,
		Scopes:         scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   "api:" + orgID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secretBytes)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseAPIToken verifies a public-API bearer token.
func ParseAPIToken(token string) (*APIClaims, error) {
	claims := &APIClaims{}
	if err := parseInto(token, claims); err != nil {
		return nil, err
	}
	if claims.TokenType != apiTokenType || claims.OrganizationID == "" {
		return nil, ErrInvalidToken
	}
	if err := validateRegistered(&claims.RegisteredClaims); err != nil {
		return nil, ErrInvalidToken
	}
	claims.Scopes = dedupeScopes(claims.Scopes)
	return claims, nil
}

func parseInto(token string, claims jwt.Claims) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidToken
	}
	secretBytes, err := loadSecret()
	if err != nil {
		return err
	}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return secretBytes, nil
	})
	if err != nil || !parsed.Valid {
		return ErrInvalidToken
	}
	return nil
}

func validateRegistered(claims *jwt.RegisteredClaims) error {
	if claims.Issuer != issuer {
		return fmt.Errorf("unexpected issuer: %s", claims.Issuer)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return errors.New("subject missing")
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return errors.New("timestamps missing")
	}
	now := time.Now().UTC()
	if now.After(claims.ExpiresAt.Time) {
		return errors.New("token expired")
	}
	// Allow a small clock skew of 5 seconds when validating issued-at.
	if claims.IssuedAt.Time.After(now.Add(5 * time.Second)) {
		return errors.New("token issued in the future")
	}
	if claims.ExpiresAt.Time.Before(claims.IssuedAt.Time) {
		return errors.New("token expiry precedes issued-at")
	}
	return nil
}

func dedupeScopes(scopes []string) []string {
	if len(scopes) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(scopes))
	var normalized []string
	for _, scope := range scopes {
		scope = strings.TrimSpace(strings.ToLower(scope))
		if scope == "" {
			continue
		}
		if _, ok := seen[scope]; ok {
			continue
		}
		seen[scope] = struct{}{}
		normalized = append(normalized, scope)
	}
	return normalized
}

func loadSecret() ([]byte, error) {
	secretMu.Lock()
	defer secretMu.Unlock()
	if secret.ready {
		return secret.value, secret.err
	}
	raw := strings.TrimSpace(os.Getenv(secretEnvVariable))
	if raw == "" {
		secret.err = errMissingSecret
		secret.ready = true
		return nil, secret.err
	}
	secret.value = []byte(raw)
	secret.err = nil
	secret.ready = true
	return secret.value, nil
}

// ResetSecretForTests clears the cached secret value. Only intended for test use.
func ResetSecretForTests() {
	secretMu.Lock()
	defer secretMu.Unlock()
	secret = cachedSecret{}
}
