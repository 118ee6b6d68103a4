package httpapi

import (
	"net/http"
	"time"

	"peopledesk.org/internal/asset"
	"peopledesk.org/internal/audit"
	"peopledesk.org/internal/auth"
	"peopledesk.org/internal/org"
)

type registerAssetRequest struct {
	Name     string     `json:"name"`
	Kind     string     `json:"kind"`
	Serial   string     `json:"serial"`
	RenewsAt *time.Time `json:"renews_at"`
}

func (a *API) handleAssetsCollection(w http.ResponseWriter, r *http.Request) {
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
		if !a.requireModule(w, r, scope, org.ModuleAssets) {
			return
		}
		list, err := a.deps.Assets.List(r.Context(), scope)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	case http.MethodPost:
		_, ok := a.require(w, r, auth.RoleAtLeast(auth.RoleManager))
		if !ok {
			return
		}
		scope, err := scopeFor(r)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		if !a.requireModule(w, r, scope, org.ModuleAssets) {
			return
		}
		var req registerAssetRequest
		if err := decodeJSON(r, &req); err != nil {
			writeDomainError(w, r, err)
			return
		}
		created, err := a.deps.Assets.Register(r.Context(), scope, req.Name, asset.Kind(req.Kind), req.Serial, req.RenewsAt)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		audit.LogEvent(r.Context(), "asset.registered", map[string]any{"subject": created.ID})
		w.Header().Set("Location", "/v1/assets/"+created.ID)
		writeJSON(w, http.StatusCreated, created)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleAssetsResource(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/v1/assets/")
	switch {
	case len(parts) == 1 && parts[0] == "renewals":
		a.handleAssetRenewals(w, r)
	case len(parts) == 1:
		a.handleAssetGet(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "assign":
		a.handleAssetAssign(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "unassign":
		a.handleAssetUnassign(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "retire":
		a.handleAssetRetire(w, r, parts[0])
	default:
		writeError(w, r, http.StatusNotFound, "not found")
	}
}

func (a *API) handleAssetGet(w http.ResponseWriter, r *http.Request, id string) {
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
	if !a.requireModule(w, r, scope, org.ModuleAssets) {
		return
	}
	got, err := a.deps.Assets.Get(r.Context(), scope, id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, got)
}

func (a *API) handleAssetAssign(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	_, ok := a.require(w, r, auth.RoleAtLeast(auth.RoleManager))
	if !ok {
		return
	}
	scope, err := scopeFor(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if !a.requireModule(w, r, scope, org.ModuleAssets) {
		return
	}
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}
	got, err := a.deps.Assets.Assign(r.Context(), scope, id, req.UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	audit.LogEvent(r.Context(), "asset.assigned", map[string]any{"subject": id, "user": req.UserID})
	writeJSON(w, http.StatusOK, got)
}

func (a *API) handleAssetUnassign(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	_, ok := a.require(w, r, auth.RoleAtLeast(auth.RoleManager))
	if !ok {
		return
	}
	scope, err := scopeFor(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if !a.requireModule(w, r, scope, org.ModuleAssets) {
		return
	}
	got, err := a.deps.Assets.Unassign(r.Context(), scope, id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	audit.LogEvent(r.Context(), "asset.unassigned", map[string]any{"subject": id})
	writeJSON(w, http.StatusOK, got)
}

func (a *API) handleAssetRetire(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	_, ok := a.require(w, r, auth.RoleAtLeast(auth.RoleManager))
	if !ok {
		return
	}
	scope, err := scopeFor(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if !a.requireModule(w, r, scope, org.ModuleAssets) {
		return
	}
	got, err := a.deps.Assets.Retire(r.Context(), scope, id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	audit.LogEvent(r.Context(), "asset.retired", map[string]any{"subject": id})
	writeJSON(w, http.StatusOK, got)
}

func (a *API) handleAssetRenewals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	_, ok := a.require(w, r, auth.RoleAtLeast(auth.RoleManager))
	if !ok {
		return
	}
	scope, err := scopeFor(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if !a.requireModule(w, r, scope, org.ModuleAssets) {
		return
	}
	horizon := 30 * 24 * time.Hour
	list, err := a.deps.Assets.RenewingWithin(r.Context(), scope, horizon)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
