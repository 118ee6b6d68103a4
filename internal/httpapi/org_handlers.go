package httpapi

import (
	"net/http"

	"peopledesk.org/internal/audit"
	"peopledesk.org/internal/auth"
	"peopledesk.org/internal/org"
	"peopledesk.org/internal/tenant"
)

type provisionOrgRequest struct {
	Name          string `json:"name"`
	AdminEmail    string `json:"admin_email"`
	AdminName     string `json:"admin_name"`
	AdminPassword string `json:"admin_password"`
}

// handleOrgsCollection is the super-admin surface: provisioning tenants and
// listing all of them.
func (a *API) handleOrgsCollection(w http.ResponseWriter, r *http.Request) {
	p, ok := a.require(w, r, auth.SuperAdminOnly())
	if !ok {
		return
	}
	scope, err := tenant.All(p)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	switch r.Method {
	case http.MethodGet:
		list, err := a.deps.Orgs.ListAll(r.Context(), scope)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	case http.MethodPost:
		var req provisionOrgRequest
		if err := decodeJSON(r, &req); err != nil {
			writeDomainError(w, r, err)
			return
		}
		created, admin, err := a.deps.Orgs.Provision(r.Context(), scope, req.Name, req.AdminEmail, req.AdminName, req.AdminPassword)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		audit.LogEvent(r.Context(), "org.provisioned", map[string]any{"subject": created.ID, "admin": admin.ID})
		w.Header().Set("Location", "/v1/orgs/"+created.ID)
		writeJSON(w, http.StatusCreated, map[string]any{
			"organization": created,
			"admin_id":     admin.ID,
		})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleOrg(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	_, ok := a.require(w, r, auth.AnyAuthenticated())
	if !ok {
		return
	}
	scope, err := scopeFor(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	o, err := a.deps.Orgs.Get(r.Context(), scope)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (a *API) handleOrgSettings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut && r.Method != http.MethodPatch {
		methodNotAllowed(w, r, http.MethodPut, http.MethodPatch)
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
	var settings org.Settings
	if err := decodeJSON(r, &settings); err != nil {
		writeDomainError(w, r, err)
		return
	}
	updated, err := a.deps.Orgs.UpdateSettings(r.Context(), scope, settings)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	audit.LogEvent(r.Context(), "org.settings_updated", map[string]any{"plan": updated.Settings.Plan})
	writeJSON(w, http.StatusOK, updated)
}
