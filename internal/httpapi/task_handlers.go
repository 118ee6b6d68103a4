package httpapi

import (
	"net/http"
	"time"

	"peopledesk.org/internal/audit"
	"peopledesk.org/internal/auth"
	"peopledesk.org/internal/notify"
	"peopledesk.org/internal/org"
	"peopledesk.org/internal/task"
)

type createTaskRequest struct {
	Title      string     `json:"title"`
	AssigneeID string     `json:"assignee_id"`
	DueDate    *time.Time `json:"due_date"`
}

func (a *API) handleTasksCollection(w http.ResponseWriter, r *http.Request) {
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
		if !a.requireModule(w, r, scope, org.ModuleTasks) {
			return
		}
		list, err := a.deps.Tasks.List(r.Context(), scope)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	case http.MethodPost:
		p, ok := a.require(w, r, auth.AnyAuthenticated())
		if !ok {
			return
		}
		scope, err := scopeFor(r)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		if !a.requireModule(w, r, scope, org.ModuleTasks) {
			return
		}
		var req createTaskRequest
		if err := decodeJSON(r, &req); err != nil {
			writeDomainError(w, r, err)
			return
		}
		created, err := a.deps.Tasks.Create(r.Context(), scope, req.Title, req.AssigneeID, req.DueDate)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		audit.LogEvent(r.Context(), "task.created", map[string]any{"subject": created.ID})
		if created.AssigneeID != "" {
			a.publish(notify.EventTaskAssigned, created.OrganizationID, created.ID, p.ID, created.AssigneeID)
		}
		w.Header().Set("Location", "/v1/tasks/"+created.ID)
		writeJSON(w, http.StatusCreated, created)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleTasksResource(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/v1/tasks/")
	switch {
	case len(parts) == 1:
		a.handleTaskGet(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "status":
		a.handleTaskStatus(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "dependencies":
		a.handleTaskDependencies(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "ready":
		a.handleTaskReady(w, r, parts[0])
	default:
		writeError(w, r, http.StatusNotFound, "not found")
	}
}

func (a *API) handleTaskGet(w http.ResponseWriter, r *http.Request, id string) {
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
	if !a.requireModule(w, r, scope, org.ModuleTasks) {
		return
	}
	t, err := a.deps.Tasks.Get(r.Context(), scope, id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (a *API) handleTaskStatus(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost && r.Method != http.MethodPatch {
		methodNotAllowed(w, r, http.MethodPost, http.MethodPatch)
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
	if !a.requireModule(w, r, scope, org.ModuleTasks) {
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}
	if err := a.deps.Tasks.SetStatus(r.Context(), scope, id, task.Status(req.Status)); err != nil {
		writeDomainError(w, r, err)
		return
	}
	audit.LogEvent(r.Context(), "task.status_changed", map[string]any{"subject": id, "status": req.Status})
	writeJSON(w, http.StatusOK, map[string]string{"status": req.Status})
}

func (a *API) handleTaskDependencies(w http.ResponseWriter, r *http.Request, id string) {
	_, ok := a.require(w, r, auth.AnyAuthenticated())
	if !ok {
		return
	}
	scope, err := scopeFor(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if !a.requireModule(w, r, scope, org.ModuleTasks) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		blockers, err := a.deps.Tasks.Blockers(r.Context(), scope, id)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, blockers)
	case http.MethodPost:
		var req struct {
			BlockerID string `json:"blocker_id"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeDomainError(w, r, err)
			return
		}
		if err := a.deps.Tasks.AddDependency(r.Context(), scope, id, req.BlockerID); err != nil {
			writeDomainError(w, r, err)
			return
		}
		audit.LogEvent(r.Context(), "task.dependency_added", map[string]any{"subject": id, "blocker": req.BlockerID})
		writeJSON(w, http.StatusCreated, map[string]string{"blocked_id": id, "blocker_id": req.BlockerID})
	case http.MethodDelete:
		blockerID := r.URL.Query().Get("blocker_id")
		if err := a.deps.Tasks.RemoveDependency(r.Context(), scope, id, blockerID); err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusNoContent, nil)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost, http.MethodDelete)
	}
}

func (a *API) handleTaskReady(w http.ResponseWriter, r *http.Request, id string) {
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
	if !a.requireModule(w, r, scope, org.ModuleTasks) {
		return
	}
	ready, err := a.deps.Tasks.Ready(r.Context(), scope, id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ready": ready})
}
