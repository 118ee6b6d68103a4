package httpapi

import (
	"net/http"
	"time"

	"peopledesk.org/internal/audit"
	"peopledesk.org/internal/auth"
	"peopledesk.org/internal/domain"
	"peopledesk.org/internal/notify"
	"peopledesk.org/internal/people"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string         `json:"token"`
	Principal auth.Principal `json:"principal"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}
	token, principal, err := a.deps.Resolver.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	audit.LogEvent(r.Context(), "auth.login", map[string]any{"subject": principal.ID})
	writeJSON(w, http.StatusOK, loginResponse{Token: token, Principal: principal})
}

type redeemRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (a *API) handleRedeem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req redeemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}
	user, err := a.deps.People.Redeem(r.Context(), req.Token, req.Password)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	audit.LogEvent(r.Context(), "user.activated", map[string]any{
		"subject":      user.ID,
		"organization": user.OrganizationID,
	})
	a.publish(notify.EventUserActivated, user.OrganizationID, user.ID, "", "")
	writeJSON(w, http.StatusOK, user)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	p, ok := a.require(w, r, auth.AnyAuthenticated())
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type apiTokenRequest struct {
	Scopes  []string `json:"scopes"`
	TTLDays int      `json:"ttl_days"`
}

type apiTokenResponse struct {
	Token     string    `json:"token"`
	Scopes    []string  `json:"scopes"`
	ExpiresAt time.Time `json:"expires_at"`
}

// handleAPITokens mints integration tokens bound to the admin's own
// organization.
func (a *API) handleAPITokens(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	_, ok := a.require(w, r, auth.RoleAtLeast(auth.RoleAdmin))
	if !ok {
		return
	}
	scope, err := scopeFor(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	var req apiTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}
	if len(req.Scopes) == 0 {
		writeDomainError(w, r, domain.Invalid("scopes", "at least one scope is required"))
		return
	}
	for _, s := range req.Scopes {
		if !auth.ValidScope(s) {
			writeDomainError(w, r, domain.Invalid("scopes", "unknown scope "+s))
			return
		}
	}
	ttl := 90 * 24 * time.Hour
	if req.TTLDays > 0 {
		ttl = time.Duration(req.TTLDays) * 24 * time.Hour
	}
	token, err := auth.GenerateAPIToken(scope.OrgID(), req.Scopes, ttl)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	audit.LogEvent(r.Context(), "auth.api_token_issued", map[string]any{"scopes": req.Scopes})
	writeJSON(w, http.StatusCreated, apiTokenResponse{
		Token:     token,
		Scopes:    req.Scopes,
		ExpiresAt: time.Now().UTC().Add(ttl),
	})
}

// inviteView is the invite response. The raw token is returned exactly once,
// here; only its hash is stored.
type inviteView struct {
	User  people.User `json:"user"`
	Token string      `json:"invite_token"`
}
