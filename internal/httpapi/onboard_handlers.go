package httpapi

import (
	"net/http"
	"strconv"

	"peopledesk.org/internal/audit"
	"peopledesk.org/internal/auth"
	"peopledesk.org/internal/onboard"
	"peopledesk.org/internal/org"
)

type createTemplateRequest struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Steps []struct {
		Title        string `json:"title"`
		Required     bool   `json:"required"`
		AssigneeRole string `json:"assignee_role"`
	} `json:"steps"`
}

func (a *API) handleTemplatesCollection(w http.ResponseWriter, r *http.Request) {
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
		if !a.requireModule(w, r, scope, org.ModuleOnboarding) {
			return
		}
		list, err := a.deps.Onboarding.ListTemplates(r.Context(), scope)
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
		if !a.requireModule(w, r, scope, org.ModuleOnboarding) {
			return
		}
		var req createTemplateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeDomainError(w, r, err)
			return
		}
		steps := make([]onboard.Step, 0, len(req.Steps))
		for _, s := range req.Steps {
			steps = append(steps, onboard.Step{
				Title:        s.Title,
				Required:     s.Required,
				AssigneeRole: auth.Role(s.AssigneeRole),
			})
		}
		created, err := a.deps.Onboarding.CreateTemplate(r.Context(), scope, req.Name, onboard.Kind(req.Kind), steps)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		audit.LogEvent(r.Context(), "onboarding.template_created", map[string]any{"subject": created.ID})
		w.Header().Set("Location", "/v1/onboarding/templates/"+created.ID)
		writeJSON(w, http.StatusCreated, created)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleTemplatesResource(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/v1/onboarding/templates/")
	if len(parts) != 1 {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}
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
	if !a.requireModule(w, r, scope, org.ModuleOnboarding) {
		return
	}
	tpl, err := a.deps.Onboarding.GetTemplate(r.Context(), scope, parts[0])
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tpl)
}

func (a *API) handleRunsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		p, ok := a.require(w, r, auth.AnyAuthenticated())
		if !ok {
			return
		}
		scope, err := scopeFor(r)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		if !a.requireModule(w, r, scope, org.ModuleOnboarding) {
			return
		}
		if p.Role.AtLeast(auth.RoleManager) {
			list, err := a.deps.Onboarding.ListRuns(r.Context(), scope)
			if err != nil {
				writeDomainError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, list)
			return
		}
		list, err := a.deps.Onboarding.ListRunsByUser(r.Context(), scope, p.ID)
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
		if !a.requireModule(w, r, scope, org.ModuleOnboarding) {
			return
		}
		var req struct {
			TemplateID string `json:"template_id"`
			UserID     string `json:"user_id"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeDomainError(w, r, err)
			return
		}
		run, err := a.deps.Onboarding.Start(r.Context(), scope, req.TemplateID, req.UserID)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		audit.LogEvent(r.Context(), "onboarding.run_started", map[string]any{"subject": run.ID, "user": req.UserID})
		w.Header().Set("Location", "/v1/onboarding/runs/"+run.ID)
		writeJSON(w, http.StatusCreated, run)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleRunsResource(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/v1/onboarding/runs/")
	switch {
	case len(parts) == 1:
		a.handleRunGet(w, r, parts[0])
	case len(parts) == 4 && parts[1] == "steps" && parts[3] == "complete":
		a.handleRunStepComplete(w, r, parts[0], parts[2])
	default:
		writeError(w, r, http.StatusNotFound, "not found")
	}
}

func (a *API) handleRunGet(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	p, ok := a.require(w, r, auth.AnyAuthenticated())
	if !ok {
		return
	}
	scope, err := scopeFor(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if !a.requireModule(w, r, scope, org.ModuleOnboarding) {
		return
	}
	run, err := a.deps.Onboarding.GetRun(r.Context(), scope, id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if err := auth.Authorize(p, auth.OwnerOrRoleAtLeast(run.UserID, auth.RoleManager)); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (a *API) handleRunStepComplete(w http.ResponseWriter, r *http.Request, id, rawIdx string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
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
	if !a.requireModule(w, r, scope, org.ModuleOnboarding) {
		return
	}
	idx, err := strconv.Atoi(rawIdx)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}
	run, err := a.deps.Onboarding.CompleteStep(r.Context(), scope, id, idx)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	audit.LogEvent(r.Context(), "onboarding.step_completed", map[string]any{"subject": id, "step": idx})
	writeJSON(w, http.StatusOK, run)
}
