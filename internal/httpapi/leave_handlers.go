package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"peopledesk.org/internal/audit"
	"peopledesk.org/internal/auth"
	"peopledesk.org/internal/domain"
	"peopledesk.org/internal/leave"
	"peopledesk.org/internal/notify"
)

type submitLeaveRequest struct {
	Type   string `json:"type"`
	Start  string `json:"start"`
	End    string `json:"end"`
	Reason string `json:"reason"`
}

func parseDate(field, value string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, domain.Invalid(field, "must be a YYYY-MM-DD date")
	}
	return t, nil
}

func (a *API) handleLeavesCollection(w http.ResponseWriter, r *http.Request) {
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
		userID := r.URL.Query().Get("user_id")
		if userID == "" {
			userID = p.ID
		}
		if userID != p.ID {
			if _, ok := a.require(w, r, auth.RoleAtLeast(auth.RoleManager)); !ok {
				return
			}
		}
		list, err := a.deps.Leaves.ListByUser(r.Context(), scope, userID)
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
		var req submitLeaveRequest
		if err := decodeJSON(r, &req); err != nil {
			writeDomainError(w, r, err)
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
		created, err := a.deps.Leaves.Submit(r.Context(), scope, leave.Type(req.Type), domain.DateRange{Start: start, End: end}, req.Reason)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		audit.LogEvent(r.Context(), "leave.submitted", map[string]any{"subject": created.ID, "type": string(created.Type)})
		a.publish(notify.EventLeaveSubmitted, created.OrganizationID, created.ID, created.UserID, string(created.Type))
		w.Header().Set("Location", "/v1/leaves/"+created.ID)
		writeJSON(w, http.StatusCreated, created)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleLeavesResource(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/v1/leaves/")
	switch {
	case len(parts) == 1 && parts[0] == "pending":
		a.handleLeavesPending(w, r)
	case len(parts) == 1 && parts[0] == "balance":
		a.handleLeaveBalance(w, r)
	case len(parts) == 1 && parts[0] == "overlap":
		a.handleLeaveOverlap(w, r)
	case len(parts) == 1:
		a.handleLeaveGet(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "approve":
		a.handleLeaveDecision(w, r, parts[0], true)
	case len(parts) == 2 && parts[1] == "reject":
		a.handleLeaveDecision(w, r, parts[0], false)
	default:
		writeError(w, r, http.StatusNotFound, "not found")
	}
}

func (a *API) handleLeavesPending(w http.ResponseWriter, r *http.Request) {
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
	pending, err := a.deps.Leaves.Pending(r.Context(), scope)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pending)
}

func (a *API) handleLeaveGet(w http.ResponseWriter, r *http.Request, id string) {
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
	req, err := a.deps.Leaves.Get(r.Context(), scope, id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if err := auth.Authorize(p, auth.OwnerOrRoleAtLeast(req.UserID, auth.RoleManager)); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (a *API) handleLeaveDecision(w http.ResponseWriter, r *http.Request, id string, approve bool) {
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
	if approve {
		err = a.deps.Leaves.Approve(r.Context(), scope, id)
	} else {
		err = a.deps.Leaves.Reject(r.Context(), scope, id)
	}
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	decision := "rejected"
	if approve {
		decision = "approved"
	}
	audit.LogEvent(r.Context(), "leave.decided", map[string]any{"subject": id, "decision": decision})
	a.publish(notify.EventLeaveDecided, scope.OrgID(), id, scope.Principal().ID, decision)
	writeJSON(w, http.StatusOK, map[string]string{"status": decision})
}

func (a *API) handleLeaveBalance(w http.ResponseWriter, r *http.Request) {
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
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = p.ID
	}
	if userID != p.ID {
		if _, ok := a.require(w, r, auth.RoleAtLeast(auth.RoleManager)); !ok {
			return
		}
	}
	year := time.Now().UTC().Year()
	if raw := r.URL.Query().Get("year"); raw != "" {
		year, err = strconv.Atoi(raw)
		if err != nil {
			writeDomainError(w, r, domain.Invalid("year", "must be a number"))
			return
		}
	}
	balances, err := a.deps.Leaves.BalanceFor(r.Context(), scope, userID, year)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balances)
}

func (a *API) handleLeaveOverlap(w http.ResponseWriter, r *http.Request) {
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
	start, err := parseDate("start", r.URL.Query().Get("start"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	end, err := parseDate("end", r.URL.Query().Get("end"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	list, err := a.deps.Leaves.Overlapping(r.Context(), scope, domain.DateRange{Start: start, End: end}, p.ID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
