// Package httpapi exposes the HTTP surface: session-authenticated /v1
// endpoints for the product, scope-checked /api/v1 endpoints for
// integrations, and the usual health and metrics plumbing.
package httpapi

import (
	"net/http"
	"time"

	"peopledesk.org/internal/asset"
	"peopledesk.org/internal/auth"
	"peopledesk.org/internal/expense"
	"peopledesk.org/internal/leave"
	"peopledesk.org/internal/notify"
	"peopledesk.org/internal/obs"
	"peopledesk.org/internal/onboard"
	"peopledesk.org/internal/org"
	"peopledesk.org/internal/people"
	"peopledesk.org/internal/reminders"
	"peopledesk.org/internal/task"
	"peopledesk.org/internal/tenant"
	"peopledesk.org/internal/workplace"
)

// ReadyProbe reports whether downstream dependencies are reachable.
type ReadyProbe func() bool

// Deps carries every service the API dispatches to.
type Deps struct {
	Resolver   *auth.Resolver
	Orgs       *org.Service
	People     *people.Service
	Leaves     *leave.Service
	Expenses   *expense.Service
	Tasks      *task.Service
	Onboarding *onboard.Service
	Assets     *asset.Service
	Workplace  *workplace.Service
	Reminders  *reminders.Service
	Notify     *notify.Dispatcher
}

// API is the HTTP handler set for the service.
type API struct {
	mux        *http.ServeMux
	deps       Deps
	readyProbe ReadyProbe
	version    string
}

// New builds the API and registers all routes.
func New(deps Deps, rp ReadyProbe, version string) *API {
	a := &API{
		mux:        http.NewServeMux(),
		deps:       deps,
		readyProbe: rp,
		version:    version,
	}
	a.routes()
	return a
}

func (a *API) routes() {
	m := a.mux

	m.HandleFunc("/healthz", a.handleHealthz)
	m.HandleFunc("/readyz", a.handleReadyz)
	m.HandleFunc("/v1/info", a.handleInfo)
	m.Handle("/metrics", obs.Handler())

	m.HandleFunc("/v1/auth/login", a.handleLogin)
	m.HandleFunc("/v1/invites/redeem", a.handleRedeem)

	m.Handle("/v1/auth/me", a.withAuth(http.HandlerFunc(a.handleMe)))
	m.Handle("/v1/auth/api-tokens", a.withAuth(http.HandlerFunc(a.handleAPITokens)))

	m.Handle("/v1/users", a.withAuth(http.HandlerFunc(a.handleUsersCollection)))
	m.Handle("/v1/users/", a.withAuth(http.HandlerFunc(a.handleUsersResource)))

	m.Handle("/v1/leaves", a.withAuth(http.HandlerFunc(a.handleLeavesCollection)))
	m.Handle("/v1/leaves/", a.withAuth(http.HandlerFunc(a.handleLeavesResource)))

	m.Handle("/v1/expenses", a.withAuth(http.HandlerFunc(a.handleExpensesCollection)))
	m.Handle("/v1/expenses/", a.withAuth(http.HandlerFunc(a.handleExpensesResource)))

	m.Handle("/v1/tasks", a.withAuth(http.HandlerFunc(a.handleTasksCollection)))
	m.Handle("/v1/tasks/", a.withAuth(http.HandlerFunc(a.handleTasksResource)))

	m.Handle("/v1/onboarding/templates", a.withAuth(http.HandlerFunc(a.handleTemplatesCollection)))
	m.Handle("/v1/onboarding/templates/", a.withAuth(http.HandlerFunc(a.handleTemplatesResource)))
	m.Handle("/v1/onboarding/runs", a.withAuth(http.HandlerFunc(a.handleRunsCollection)))
	m.Handle("/v1/onboarding/runs/", a.withAuth(http.HandlerFunc(a.handleRunsResource)))

	m.Handle("/v1/assets", a.withAuth(http.HandlerFunc(a.handleAssetsCollection)))
	m.Handle("/v1/assets/", a.withAuth(http.HandlerFunc(a.handleAssetsResource)))

	m.Handle("/v1/announcements", a.withAuth(http.HandlerFunc(a.handleAnnouncementsCollection)))
	m.Handle("/v1/announcements/", a.withAuth(http.HandlerFunc(a.handleAnnouncementsResource)))
	m.Handle("/v1/requests", a.withAuth(http.HandlerFunc(a.handleRequestsCollection)))
	m.Handle("/v1/requests/", a.withAuth(http.HandlerFunc(a.handleRequestsResource)))
	m.Handle("/v1/meetings", a.withAuth(http.HandlerFunc(a.handleMeetingsCollection)))
	m.Handle("/v1/meetings/", a.withAuth(http.HandlerFunc(a.handleMeetingsResource)))

	m.Handle("/v1/orgs", a.withAuth(http.HandlerFunc(a.handleOrgsCollection)))
	m.Handle("/v1/org", a.withAuth(http.HandlerFunc(a.handleOrg)))
	m.Handle("/v1/org/settings", a.withAuth(http.HandlerFunc(a.handleOrgSettings)))

	m.Handle("/v1/reminders", a.withAuth(http.HandlerFunc(a.handleReminders)))
	m.Handle("/v1/events", a.withAuth(http.HandlerFunc(a.handleEvents)))

	m.Handle("/api/v1/leaves", a.withAPIAuth(http.HandlerFunc(a.handlePublicLeaves)))
	m.Handle("/api/v1/tasks", a.withAPIAuth(http.HandlerFunc(a.handlePublicTasks)))
	m.Handle("/api/v1/expenses", a.withAPIAuth(http.HandlerFunc(a.handlePublicExpenses)))
	m.Handle("/api/v1/reminders", a.withAPIAuth(http.HandlerFunc(a.handlePublicReminders)))
}

// Handler returns the full middleware chain around the mux.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = obs.Instrument(h)
	h = LoggingJSON(h)
	h = SecurityHeaders(h)
	h = CORS(h)
	h = MaxBodyBytes(h, 1<<20)
	h = RequestID(h)
	return h
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if a.readyProbe != nil && !a.readyProbe() {
		obs.SetReady(false)
		writeError(w, r, http.StatusServiceUnavailable, "not ready")
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (a *API) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "peopledesk",
		"version": a.version,
	})
}

// scopeFor derives the tenant scope for the signed-in caller.
func scopeFor(r *http.Request) (tenant.Scope, error) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		return tenant.Scope{}, auth.ErrNotAuthenticated
	}
	return tenant.Require(p)
}

func principalFrom(r *http.Request) (auth.Principal, error) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		return auth.Principal{}, auth.ErrNotAuthenticated
	}
	return p, nil
}

// require evaluates an access rule for the caller and writes the error
// response on failure.
func (a *API) require(w http.ResponseWriter, r *http.Request, req auth.Requirement) (auth.Principal, bool) {
	p, err := principalFrom(r)
	if err != nil {
		writeDomainError(w, r, err)
		return auth.Principal{}, false
	}
	if err := auth.Authorize(p, req); err != nil {
		writeDomainError(w, r, err)
		return auth.Principal{}, false
	}
	return p, true
}

// publish fans a notification out to event-stream subscribers.
func (a *API) publish(event, orgID, subjectID, actorID, message string) {
	if a.deps.Notify == nil {
		return
	}
	a.deps.Notify.Publish(notify.Notification{
		Event:          event,
		OrganizationID: orgID,
		SubjectID:      subjectID,
		ActorID:        actorID,
		Message:        message,
		Timestamp:      time.Now().UTC(),
	})
}

// requireModule rejects the request when the organization has the module
// switched off or hidden. Missing modules look exactly like missing routes.
func (a *API) requireModule(w http.ResponseWriter, r *http.Request, scope tenant.Scope, moduleID string) bool {
	if scope.CrossTenant() {
		return true
	}
	o, err := a.deps.Orgs.Get(r.Context(), scope)
	if err != nil {
		writeDomainError(w, r, err)
		return false
	}
	if !o.ModuleEnabled(moduleID) {
		writeError(w, r, http.StatusNotFound, "not found")
		return false
	}
	return true
}
