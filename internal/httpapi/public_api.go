package httpapi

import (
	"net/http"
	"time"

	"peopledesk.org/internal/auth"
	"peopledesk.org/internal/domain"
	"peopledesk.org/internal/leave"
	"peopledesk.org/internal/tenant"
)

// The /api/v1 surface is for integrations holding an organization-bound
// token. Every handler re-checks its scope; the middleware only verifies
// the signature.

func (a *API) handlePublicLeaves(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		claims, ok := requireScope(w, r, auth.ScopeReadLeaves)
		if !ok {
			return
		}
		scope, err := tenant.ForAPIToken(claims)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		userID := r.URL.Query().Get("user_id")
		if userID == "" {
			writeDomainError(w, r, domain.Invalid("user_id", "is required"))
			return
		}
		list, err := a.deps.Leaves.ListByUser(r.Context(), scope, userID)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	case http.MethodPost:
		claims, ok := requireScope(w, r, auth.ScopeWriteLeaves)
		if !ok {
			return
		}
		scope, err := tenant.ForAPIToken(claims)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		var req struct {
			UserID string `json:"user_id"`
			Type   string `json:"type"`
			Start  string `json:"start"`
			End    string `json:"end"`
			Reason string `json:"reason"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeDomainError(w, r, err)
			return
		}
		if req.UserID == "" {
			writeDomainError(w, r, domain.Invalid("user_id", "is required"))
			return
		}
		start, err := parseDate("start", req.Start)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		end, err := parseDate("end", req.End)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		created, err := a.deps.Leaves.SubmitFor(r.Context(), scope, req.UserID, leave.Type(req.Type), domain.DateRange{Start: start, End: end}, req.Reason)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handlePublicTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		claims, ok := requireScope(w, r, auth.ScopeReadTasks)
		if !ok {
			return
		}
		scope, err := tenant.ForAPIToken(claims)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		list, err := a.deps.Tasks.List(r.Context(), scope)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	case http.MethodPost:
		claims, ok := requireScope(w, r, auth.ScopeWriteTasks)
		if !ok {
			return
		}
		scope, err := tenant.ForAPIToken(claims)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		var req struct {
			Title      string     `json:"title"`
			AssigneeID string     `json:"assignee_id"`
			DueDate    *time.Time `json:"due_date"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeDomainError(w, r, err)
			return
		}
		created, err := a.deps.Tasks.Create(r.Context(), scope, req.Title, req.AssigneeID, req.DueDate)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handlePublicExpenses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	claims, ok := requireScope(w, r, auth.ScopeReadExpenses)
	if !ok {
		return
	}
	scope, err := tenant.ForAPIToken(claims)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	list, err := a.deps.Expenses.List(r.Context(), scope)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) handlePublicReminders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	claims, ok := requireScope(w, r, auth.ScopeReadReminders)
	if !ok {
		return
	}
	scope, err := tenant.ForAPIToken(claims)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	list, err := a.deps.Reminders.List(r.Context(), scope)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
