package httpapi

import (
	"net/http"

	"peopledesk.org/internal/audit"
	"peopledesk.org/internal/auth"
	"peopledesk.org/internal/notify"
	"peopledesk.org/internal/org"
)

type submitExpenseRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Category    string `json:"category"`
	Description string `json:"description"`
	ReceiptURL  string `json:"receipt_url"`
}

func (a *API) handleExpensesCollection(w http.ResponseWriter, r *http.Request) {
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
		if !a.requireModule(w, r, scope, org.ModuleExpenses) {
			return
		}
		if p.Role.AtLeast(auth.RoleManager) {
			list, err := a.deps.Expenses.List(r.Context(), scope)
			if err != nil {
				writeDomainError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, list)
			return
		}
		list, err := a.deps.Expenses.ListByUser(r.Context(), scope, p.ID)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	case http.MethodPost:
		_, ok := a.require(w, r, auth.AnyAuthenticated())
		if !ok {
			return
		}
		scope, err := scopeFor(r)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		if !a.requireModule(w, r, scope, org.ModuleExpenses) {
			return
		}
		var req submitExpenseRequest
		if err := decodeJSON(r, &req); err != nil {
			writeDomainError(w, r, err)
			return
		}
		created, err := a.deps.Expenses.Submit(r.Context(), scope, req.AmountCents, req.Category, req.Description, req.ReceiptURL)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		audit.LogEvent(r.Context(), "expense.submitted", map[string]any{"subject": created.ID, "amount_cents": created.AmountCents})
		w.Header().Set("Location", "/v1/expenses/"+created.ID)
		writeJSON(w, http.StatusCreated, created)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleExpensesResource(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/v1/expenses/")
	switch {
	case len(parts) == 1:
		a.handleExpenseGet(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "approve":
		a.handleExpenseDecision(w, r, parts[0], "approved")
	case len(parts) == 2 && parts[1] == "reject":
		a.handleExpenseDecision(w, r, parts[0], "rejected")
	case len(parts) == 2 && parts[1] == "reimburse":
		a.handleExpenseReimburse(w, r, parts[0])
	default:
		writeError(w, r, http.StatusNotFound, "not found")
	}
}

func (a *API) handleExpenseGet(w http.ResponseWriter, r *http.Request, id string) {
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
	if !a.requireModule(w, r, scope, org.ModuleExpenses) {
		return
	}
	exp, err := a.deps.Expenses.Get(r.Context(), scope, id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if err := auth.Authorize(p, auth.OwnerOrRoleAtLeast(exp.UserID, auth.RoleManager)); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exp)
}

func (a *API) handleExpenseDecision(w http.ResponseWriter, r *http.Request, id, decision string) {
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
	if !a.requireModule(w, r, scope, org.ModuleExpenses) {
		return
	}
	if decision == "approved" {
		err = a.deps.Expenses.Approve(r.Context(), scope, id)
	} else {
		err = a.deps.Expenses.Reject(r.Context(), scope, id)
	}
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	audit.LogEvent(r.Context(), "expense.decided", map[string]any{"subject": id, "decision": decision})
	a.publish(notify.EventExpenseDecided, scope.OrgID(), id, scope.Principal().ID, decision)
	writeJSON(w, http.StatusOK, map[string]string{"status": decision})
}

func (a *API) handleExpenseReimburse(w http.ResponseWriter, r *http.Request, id string) {
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
	if !a.requireModule(w, r, scope, org.ModuleExpenses) {
		return
	}
	if err := a.deps.Expenses.MarkReimbursed(r.Context(), scope, id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	audit.LogEvent(r.Context(), "expense.reimbursed", map[string]any{"subject": id})
	writeJSON(w, http.StatusOK, map[string]string{"status": "reimbursed"})
}
