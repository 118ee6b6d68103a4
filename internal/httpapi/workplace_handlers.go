package httpapi

import (
	"net/http"
	"time"

	"peopledesk.org/internal/audit"
	"peopledesk.org/internal/auth"
	"peopledesk.org/internal/notify"
	"peopledesk.org/internal/org"
	"peopledesk.org/internal/workplace"
)

func (a *API) handleAnnouncementsCollection(w http.ResponseWriter, r *http.Request) {
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
		if !a.requireModule(w, r, scope, org.ModuleWorkplace) {
			return
		}
		list, err := a.deps.Workplace.ListAnnouncements(r.Context(), scope)
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
		if !a.requireModule(w, r, scope, org.ModuleWorkplace) {
			return
		}
		var req struct {
			Title  string `json:"title"`
			Body   string `json:"body"`
			Pinned bool   `json:"pinned"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeDomainError(w, r, err)
			return
		}
		created, err := a.deps.Workplace.PostAnnouncement(r.Context(), scope, req.Title, req.Body, req.Pinned)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		audit.LogEvent(r.Context(), "announcement.posted", map[string]any{"subject": created.ID})
		w.Header().Set("Location", "/v1/announcements/"+created.ID)
		writeJSON(w, http.StatusCreated, created)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleAnnouncementsResource(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/v1/announcements/")
	if len(parts) != 1 {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
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
	if !a.requireModule(w, r, scope, org.ModuleWorkplace) {
		return
	}
	if err := a.deps.Workplace.DeleteAnnouncement(r.Context(), scope, parts[0]); err != nil {
		writeDomainError(w, r, err)
		return
	}
	audit.LogEvent(r.Context(), "announcement.deleted", map[string]any{"subject": parts[0]})
	writeJSON(w, http.StatusNoContent, nil)
}

func (a *API) handleRequestsCollection(w http.ResponseWriter, r *http.Request) {
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
		if !a.requireModule(w, r, scope, org.ModuleWorkplace) {
			return
		}
		list, err := a.deps.Workplace.ListRequests(r.Context(), scope)
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
		if !a.requireModule(w, r, scope, org.ModuleWorkplace) {
			return
		}
		var req struct {
			Title    string `json:"title"`
			Category string `json:"category"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeDomainError(w, r, err)
			return
		}
		created, err := a.deps.Workplace.OpenRequest(r.Context(), scope, req.Title, req.Category)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		audit.LogEvent(r.Context(), "request.opened", map[string]any{"subject": created.ID})
		w.Header().Set("Location", "/v1/requests/"+created.ID)
		writeJSON(w, http.StatusCreated, created)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleRequestsResource(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/v1/requests/")
	switch {
	case len(parts) == 1:
		a.handleRequestGet(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "advance":
		a.handleRequestAdvance(w, r, parts[0])
	default:
		writeError(w, r, http.StatusNotFound, "not found")
	}
}

func (a *API) handleRequestGet(w http.ResponseWriter, r *http.Request, id string) {
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
	if !a.requireModule(w, r, scope, org.ModuleWorkplace) {
		return
	}
	got, err := a.deps.Workplace.GetRequest(r.Context(), scope, id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, got)
}

func (a *API) handleRequestAdvance(w http.ResponseWriter, r *http.Request, id string) {
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
	if !a.requireModule(w, r, scope, org.ModuleWorkplace) {
		return
	}
	var req struct {
		To string `json:"to"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}
	got, err := a.deps.Workplace.AdvanceRequest(r.Context(), scope, id, workplace.RequestStatus(req.To))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	audit.LogEvent(r.Context(), "request.advanced", map[string]any{"subject": id, "to": req.To})
	a.publish(notify.EventRequestAdvanced, scope.OrgID(), id, scope.Principal().ID, req.To)
	writeJSON(w, http.StatusOK, got)
}

func (a *API) handleMeetingsCollection(w http.ResponseWriter, r *http.Request) {
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
		if !a.requireModule(w, r, scope, org.ModuleWorkplace) {
			return
		}
		list, err := a.deps.Workplace.ListMeetings(r.Context(), scope)
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
		if !a.requireModule(w, r, scope, org.ModuleWorkplace) {
			return
		}
		var req struct {
			Title    string    `json:"title"`
			Room     string    `json:"room"`
			StartsAt time.Time `json:"starts_at"`
			EndsAt   time.Time `json:"ends_at"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeDomainError(w, r, err)
			return
		}
		created, err := a.deps.Workplace.BookMeeting(r.Context(), scope, req.Title, req.Room, req.StartsAt, req.EndsAt)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		audit.LogEvent(r.Context(), "meeting.booked", map[string]any{"subject": created.ID, "room": req.Room})
		w.Header().Set("Location", "/v1/meetings/"+created.ID)
		writeJSON(w, http.StatusCreated, created)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleMeetingsResource(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/v1/meetings/")
	if len(parts) != 1 {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
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
	if !a.requireModule(w, r, scope, org.ModuleWorkplace) {
		return
	}
	if err := a.deps.Workplace.CancelMeeting(r.Context(), scope, parts[0]); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
