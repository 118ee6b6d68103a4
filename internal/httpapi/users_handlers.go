package httpapi

import (
	"net/http"
	"time"

	"peopledesk.org/internal/audit"
	"peopledesk.org/internal/auth"
	"peopledesk.org/internal/notify"
	"peopledesk.org/internal/people"
)

type inviteUserRequest struct {
	Email          string     `json:"email"`
	Name           string     `json:"name"`
	Role           string     `json:"role"`
	Title          string     `json:"title"`
	Department     string     `json:"department"`
	Employment     string     `json:"employment"`
	JoinedAt       *time.Time `json:"joined_at"`
	ContractEndsAt *time.Time `json:"contract_ends_at"`
}

func (req inviteUserRequest) params() people.NewUserParams {
	return people.NewUserParams{
		Email:          req.Email,
		Name:           req.Name,
		Role:           auth.Role(req.Role),
		Title:          req.Title,
		Department:     req.Department,
		Employment:     people.EmploymentType(req.Employment),
		JoinedAt:       req.JoinedAt,
		ContractEndsAt: req.ContractEndsAt,
	}
}

func (a *API) handleUsersCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		_, ok := a.require(w, r, auth.AnyAuthenticated())
		if !ok {
			return
		}
		scope, err := scopeFor(r)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		users, err := a.deps.People.List(r.Context(), scope)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, users)
	case http.MethodPost:
		_, ok := a.require(w, r, auth.RoleAtLeast(auth.RoleAdmin))
		if !ok {
			return
		}
		scope, err := scopeFor(r)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		var req inviteUserRequest
		if err := decodeJSON(r, &req); err != nil {
			writeDomainError(w, r, err)
			return
		}
		user, token, err := a.deps.People.Invite(r.Context(), scope, req.params())
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		audit.LogEvent(r.Context(), "user.invited", map[string]any{"subject": user.ID, "email": user.Email})
		a.publish(notify.EventUserInvited, user.OrganizationID, user.ID, scope.Principal().ID, user.Email)
		w.Header().Set("Location", "/v1/users/"+user.ID)
		writeJSON(w, http.StatusCreated, inviteView{User: user, Token: token})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleUsersResource(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/v1/users/")
	switch {
	case len(parts) == 1 && parts[0] == "bulk":
		a.handleUsersBulk(w, r)
	case len(parts) == 1:
		a.handleUserGet(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "role":
		a.handleUserRole(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "deactivate":
		a.handleUserDeactivate(w, r, parts[0])
	default:
		writeError(w, r, http.StatusNotFound, "not found")
	}
}

func (a *API) handleUserGet(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	_, ok := a.require(w, r, auth.OwnerOrRoleAtLeast(id, auth.RoleManager))
	if !ok {
		return
	}
	scope, err := scopeFor(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	user, err := a.deps.People.Get(r.Context(), scope, id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) handleUsersBulk(w http.ResponseWriter, r *http.Request) {
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
	var req struct {
		Entries []inviteUserRequest `json:"entries"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}
	entries := make([]people.NewUserParams, 0, len(req.Entries))
	for _, e := range req.Entries {
		entries = append(entries, e.params())
	}
	results, err := a.deps.People.BulkInvite(r.Context(), scope, entries)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	audit.LogEvent(r.Context(), "user.bulk_invited", map[string]any{"count": len(results)})
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (a *API) handleUserRole(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPatch && r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPatch, http.MethodPost)
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
	var req struct {
		Role string `json:"role"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}
	role, err := auth.ParseRole(req.Role)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	user, err := a.deps.People.SetRole(r.Context(), scope, id, role)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	audit.LogEvent(r.Context(), "user.role_changed", map[string]any{"subject": id, "role": string(role)})
	writeJSON(w, http.StatusOK, user)
}

func (a *API) handleUserDeactivate(w http.ResponseWriter, r *http.Request, id string) {
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
	user, err := a.deps.People.Deactivate(r.Context(), scope, id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	audit.LogEvent(r.Context(), "user.deactivated", map[string]any{"subject": id})
	writeJSON(w, http.StatusOK, user)
}
