package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"peopledesk.org/internal/asset"
	"peopledesk.org/internal/auth"
	"peopledesk.org/internal/expense"
	"peopledesk.org/internal/leave"
	"peopledesk.org/internal/notify"
	"peopledesk.org/internal/org"
	"peopledesk.org/internal/people"
	"peopledesk.org/internal/reminders"
	"peopledesk.org/internal/task"
	"peopledesk.org/internal/tenant"
)

type memReminders struct {
	leaves   *memLeaves
	tasks    *memTasks
	expenses *memExpenses
	dir      *memPeople
}

func (m *memReminders) PendingLeaves(ctx context.Context, scope tenant.Scope) ([]leave.Request, error) {
	return m.leaves.ListPending(ctx, scope)
}

func (m *memReminders) OverdueTasks(ctx context.Context, scope tenant.Scope, asOf time.Time) ([]task.Task, error) {
	all, _ := m.tasks.List(ctx, scope)
	var out []task.Task
	for _, t := range all {
		if t.Status != task.StatusDone && t.DueDate != nil && t.DueDate.Before(asOf) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memReminders) PendingExpenseCount(ctx context.Context, scope tenant.Scope) (int, error) {
	all, _ := m.expenses.List(ctx, scope)
	n := 0
	for _, e := range all {
		if e.Status == expense.StatusPending {
			n++
		}
	}
	return n, nil
}

func (m *memReminders) RenewingAssets(ctx context.Context, scope tenant.Scope, cutoff time.Time) ([]asset.Asset, error) {
	return nil, nil
}

func (m *memReminders) ActiveUsers(ctx context.Context, scope tenant.Scope) ([]people.User, error) {
	all, _ := m.dir.List(ctx, scope)
	var out []people.User
	for _, u := range all {
		if u.Status == auth.StatusActive {
			out = append(out, u)
		}
	}
	return out, nil
}

type fixture struct {
	srv    *httptest.Server
	people *memPeople
	orgs   *memOrgs
	leaves *memLeaves
}

func seedUser(t *testing.T, dir *memPeople, id, orgID, email string, role auth.Role, password string) {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	dir.users[id] = people.User{
		ID:             id,
		OrganizationID: orgID,
		Email:          email,
		Name:           id,
		Role:           role,
		Status:         auth.StatusActive,
		Employment:     people.EmploymentPermanent,
		PasswordHash:   hash,
	}
}

func newTestAPI(t *testing.T) *fixture {
	t.Helper()
	t.Setenv("PD_AUTH_SECRET", "test-secret")
	auth.ResetSecretForTests()
	t.Cleanup(auth.ResetSecretForTests)

	dir := newMemPeople()
	orgStore := newMemOrgs(dir)
	leaveStore := newMemLeaves()
	expenseStore := newMemExpenses()
	taskStore := newMemTasks()

	orgStore.orgs["org-1"] = org.Organization{ID: "org-1", Name: "Acme", Settings: org.DefaultSettings()}
	orgStore.orgs["org-2"] = org.Organization{ID: "org-2", Name: "Globex", Settings: org.DefaultSettings()}
	noModules := org.DefaultSettings()
	noModules.EnabledModules = map[string]bool{}
	orgStore.orgs["org-3"] = org.Organization{ID: "org-3", Name: "Initech", Settings: noModules}

	seedUser(t, dir, "u-admin-1", "org-1", "admin@acme.test", auth.RoleAdmin, "admin-pass-1")
	seedUser(t, dir, "u-manager-1", "org-1", "manager@acme.test", auth.RoleManager, "manager-pass-1")
	seedUser(t, dir, "u-member-1", "org-1", "member@acme.test", auth.RoleMember, "member-pass-1")
	seedUser(t, dir, "u-manager-2", "org-2", "manager@globex.test", auth.RoleManager, "manager-pass-2")
	seedUser(t, dir, "u-admin-3", "org-3", "admin@initech.test", auth.RoleAdmin, "admin-pass-3")

	resolver, err := auth.NewResolver(dir, auth.WithSuperAdmin("root@peopledesk.test", mustHash(t, "root-pass")))
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	orgSvc := org.NewService(orgStore)
	deps := Deps{
		Resolver: resolver,
		Orgs:     orgSvc,
		People:   people.NewService(dir),
		Leaves:   leave.NewService(leaveStore, dir, orgSvc),
		Expenses: expense.NewService(expenseStore),
		Tasks:    task.NewService(taskStore),
		Reminders: reminders.NewService(&memReminders{
			leaves: leaveStore, tasks: taskStore, expenses: expenseStore, dir: dir,
		}),
		Notify: notify.NewDispatcher(),
	}
	api := New(deps, func() bool { return true }, "test")
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, people: dir, orgs: orgStore, leaves: leaveStore}
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	h, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return h
}

type apiClient struct {
	t     *testing.T
	base  string
	token string
}

func (f *fixture) client(t *testing.T) *apiClient {
	return &apiClient{t: t, base: f.srv.URL}
}

func (c *apiClient) do(method, path string, body any) (int, map[string]any) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			c.t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.base+path, &buf)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func (c *apiClient) doList(method, path string) (int, []map[string]any) {
	c.t.Helper()
	req, err := http.NewRequest(method, c.base+path, nil)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var out []map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func (c *apiClient) login(email, password string) {
	c.t.Helper()
	status, body := c.do(http.MethodPost, "/v1/auth/login", map[string]string{
		"email": email, "password": password,
	})
	if status != http.StatusOK {
		c.t.Fatalf("login %s: status %d body %v", email, status, body)
	}
	token, _ := body["token"].(string)
	if token == "" {
		c.t.Fatalf("login %s: empty token", email)
	}
	c.token = token
}

func TestLoginAndMe(t *testing.T) {
	f := newTestAPI(t)
	c := f.client(t)
	c.login("admin@acme.test", "admin-pass-1")

	status, body := c.do(http.MethodGet, "/v1/auth/me", nil)
	if status != http.StatusOK {
		t.Fatalf("me: status %d", status)
	}
	if body["id"] != "u-admin-1" || body["organization_id"] != "org-1" {
		t.Fatalf("unexpected principal: %v", body)
	}
}

func TestLoginBadCredentialsUniform(t *testing.T) {
	f := newTestAPI(t)
	c := f.client(t)

	status, _ := c.do(http.MethodPost, "/v1/auth/login", map[string]string{
		"email": "admin@acme.test", "password": "wrong",
	})
	if status != http.StatusUnauthorized {
		t.Fatalf("wrong password: status %d", status)
	}
	status, _ = c.do(http.MethodPost, "/v1/auth/login", map[string]string{
		"email": "nobody@acme.test", "password": "whatever",
	})
	if status != http.StatusUnauthorized {
		t.Fatalf("unknown email: status %d", status)
	}
}

func TestLeaveLifecycle(t *testing.T) {
	f := newTestAPI(t)
	member := f.client(t)
	member.login("member@acme.test", "member-pass-1")

	status, created := member.do(http.MethodPost, "/v1/leaves", map[string]string{
		"type": "casual", "start": "2026-09-07", "end": "2026-09-09", "reason": "family visit",
	})
	if status != http.StatusCreated {
		t.Fatalf("submit: status %d body %v", status, created)
	}
	id, _ := created["id"].(string)
	if id == "" {
		t.Fatal("submit: missing id")
	}

	manager := f.client(t)
	manager.login("manager@acme.test", "manager-pass-1")

	status, pending := manager.doList(http.MethodGet, "/v1/leaves/pending")
	if status != http.StatusOK || len(pending) != 1 {
		t.Fatalf("pending: status %d len %d", status, len(pending))
	}

	status, _ = manager.do(http.MethodPost, "/v1/leaves/"+id+"/approve", nil)
	if status != http.StatusOK {
		t.Fatalf("approve: status %d", status)
	}

	// The decision is final: a second one conflicts.
	status, _ = manager.do(http.MethodPost, "/v1/leaves/"+id+"/reject", nil)
	if status != http.StatusConflict {
		t.Fatalf("second decision: status %d", status)
	}

	status, got := member.do(http.MethodGet, "/v1/leaves/"+id, nil)
	if status != http.StatusOK || got["status"] != "approved" {
		t.Fatalf("get after approve: status %d body %v", status, got)
	}

	status, balance := member.do(http.MethodGet, "/v1/leaves/balance?year=2026", nil)
	if status != http.StatusOK {
		t.Fatalf("balance: status %d", status)
	}
	casual, _ := balance["casual"].(map[string]any)
	if casual == nil || casual["used"] != float64(3) {
		t.Fatalf("balance casual: %v", balance)
	}
}

func TestLeaveApprovalNeedsManager(t *testing.T) {
	f := newTestAPI(t)
	member := f.client(t)
	member.login("member@acme.test", "member-pass-1")

	status, created := member.do(http.MethodPost, "/v1/leaves", map[string]string{
		"type": "sick", "start": "2026-09-10", "end": "2026-09-10",
	})
	if status != http.StatusCreated {
		t.Fatalf("submit: status %d", status)
	}
	id := created["id"].(string)

	status, _ = member.do(http.MethodPost, "/v1/leaves/"+id+"/approve", nil)
	if status != http.StatusForbidden {
		t.Fatalf("member approve: status %d", status)
	}
}

func TestTenantIsolation(t *testing.T) {
	f := newTestAPI(t)
	member := f.client(t)
	member.login("member@acme.test", "member-pass-1")

	status, created := member.do(http.MethodPost, "/v1/leaves", map[string]string{
		"type": "casual", "start": "2026-09-07", "end": "2026-09-08",
	})
	if status != http.StatusCreated {
		t.Fatalf("submit: status %d", status)
	}
	id := created["id"].(string)

	other := f.client(t)
	other.login("manager@globex.test", "manager-pass-2")

	// A row in another tenant reads exactly like a missing row.
	status, _ = other.do(http.MethodGet, "/v1/leaves/"+id, nil)
	if status != http.StatusNotFound {
		t.Fatalf("cross-tenant get: status %d", status)
	}
	status, _ = other.do(http.MethodPost, "/v1/leaves/"+id+"/approve", nil)
	if status != http.StatusNotFound {
		t.Fatalf("cross-tenant approve: status %d", status)
	}
	status, pending := other.doList(http.MethodGet, "/v1/leaves/pending")
	if status != http.StatusOK || len(pending) != 0 {
		t.Fatalf("cross-tenant pending: status %d len %d", status, len(pending))
	}
}

func TestInviteRedeemFlow(t *testing.T) {
	f := newTestAPI(t)
	admin := f.client(t)
	admin.login("admin@acme.test", "admin-pass-1")

	status, body := admin.do(http.MethodPost, "/v1/users", map[string]string{
		"email": "newhire@acme.test", "name": "New Hire", "role": "employee",
	})
	if status != http.StatusCreated {
		t.Fatalf("invite: status %d body %v", status, body)
	}
	token, _ := body["invite_token"].(string)
	if token == "" {
		t.Fatal("invite: missing token")
	}

	anon := f.client(t)
	status, redeemed := anon.do(http.MethodPost, "/v1/invites/redeem", map[string]string{
		"token": token, "password": "brand-new-pass",
	})
	if status != http.StatusOK {
		t.Fatalf("redeem: status %d body %v", status, redeemed)
	}
	if redeemed["status"] != auth.StatusActive {
		t.Fatalf("redeem: status field %v", redeemed["status"])
	}
	// The alias collapses onto the canonical role.
	if redeemed["role"] != "member" {
		t.Fatalf("redeem: role %v", redeemed["role"])
	}

	// Tokens are single use.
	status, _ = anon.do(http.MethodPost, "/v1/invites/redeem", map[string]string{
		"token": token, "password": "another-pass-123",
	})
	if status != http.StatusNotFound {
		t.Fatalf("second redeem: status %d", status)
	}

	hired := f.client(t)
	hired.login("newhire@acme.test", "brand-new-pass")
}

func TestInviteRequiresAdmin(t *testing.T) {
	f := newTestAPI(t)
	manager := f.client(t)
	manager.login("manager@acme.test", "manager-pass-1")

	status, _ := manager.do(http.MethodPost, "/v1/users", map[string]string{
		"email": "x@acme.test", "name": "X",
	})
	if status != http.StatusForbidden {
		t.Fatalf("manager invite: status %d", status)
	}
}

func TestExpenseSelfApprovalForbidden(t *testing.T) {
	f := newTestAPI(t)
	manager := f.client(t)
	manager.login("manager@acme.test", "manager-pass-1")

	status, created := manager.do(http.MethodPost, "/v1/expenses", map[string]any{
		"amount_cents": 4500, "category": "travel", "description": "airport taxi",
	})
	if status != http.StatusCreated {
		t.Fatalf("submit: status %d body %v", status, created)
	}
	id := created["id"].(string)

	status, _ = manager.do(http.MethodPost, "/v1/expenses/"+id+"/approve", nil)
	if status != http.StatusForbidden {
		t.Fatalf("self approve: status %d", status)
	}

	admin := f.client(t)
	admin.login("admin@acme.test", "admin-pass-1")
	status, _ = admin.do(http.MethodPost, "/v1/expenses/"+id+"/approve", nil)
	if status != http.StatusOK {
		t.Fatalf("admin approve: status %d", status)
	}
	// Any manager can mark the payout, not only admins.
	status, _ = manager.do(http.MethodPost, "/v1/expenses/"+id+"/reimburse", nil)
	if status != http.StatusOK {
		t.Fatalf("manager reimburse: status %d", status)
	}
	status, _ = admin.do(http.MethodPost, "/v1/expenses/"+id+"/reimburse", nil)
	if status != http.StatusConflict {
		t.Fatalf("second reimburse: status %d", status)
	}

	member := f.client(t)
	member.login("member@acme.test", "member-pass-1")
	status, _ = member.do(http.MethodPost, "/v1/expenses/"+id+"/reimburse", nil)
	if status != http.StatusForbidden {
		t.Fatalf("member reimburse: status %d", status)
	}
}

func TestModuleGate(t *testing.T) {
	f := newTestAPI(t)
	c := f.client(t)
	c.login("admin@initech.test", "admin-pass-3")

	// Expenses are switched off for this tenant; the route reads as absent.
	status, _ := c.do(http.MethodGet, "/v1/expenses", nil)
	if status != http.StatusNotFound {
		t.Fatalf("disabled module: status %d", status)
	}
	// Leave is a core module and stays reachable.
	status, _ = c.do(http.MethodGet, "/v1/leaves/balance", nil)
	if status != http.StatusOK {
		t.Fatalf("core module: status %d", status)
	}
}

func TestAPITokenScopes(t *testing.T) {
	f := newTestAPI(t)
	admin := f.client(t)
	admin.login("admin@acme.test", "admin-pass-1")

	status, body := admin.do(http.MethodPost, "/v1/auth/api-tokens", map[string]any{
		"scopes": []string{"read:leaves"},
	})
	if status != http.StatusCreated {
		t.Fatalf("mint token: status %d body %v", status, body)
	}
	apiToken := body["token"].(string)

	integ := f.client(t)
	integ.token = apiToken
	status, _ = integ.doList(http.MethodGet, "/api/v1/leaves?user_id=u-member-1")
	if status != http.StatusOK {
		t.Fatalf("scoped read: status %d", status)
	}

	// Held scopes bound the surface: no write scope, no write.
	status, _ = integ.do(http.MethodPost, "/api/v1/leaves", map[string]string{
		"user_id": "u-member-1", "type": "casual", "start": "2026-10-01", "end": "2026-10-01",
	})
	if status != http.StatusForbidden {
		t.Fatalf("missing scope: status %d", status)
	}

	// Session tokens are not API tokens.
	sess := f.client(t)
	sess.token = admin.token
	status, _ = sess.doList(http.MethodGet, "/api/v1/leaves?user_id=u-member-1")
	if status != http.StatusUnauthorized {
		t.Fatalf("session token on api surface: status %d", status)
	}
}

func TestAPITokenCannotWriteForeignUser(t *testing.T) {
	f := newTestAPI(t)
	admin := f.client(t)
	admin.login("admin@acme.test", "admin-pass-1")

	status, body := admin.do(http.MethodPost, "/v1/auth/api-tokens", map[string]any{
		"scopes": []string{"write:leaves"},
	})
	if status != http.StatusCreated {
		t.Fatalf("mint token: status %d body %v", status, body)
	}

	integ := f.client(t)
	integ.token = body["token"].(string)

	// A subject from another organization reads as missing.
	status, _ = integ.do(http.MethodPost, "/api/v1/leaves", map[string]string{
		"user_id": "u-manager-2", "type": "casual", "start": "2026-10-01", "end": "2026-10-01",
	})
	if status != http.StatusNotFound {
		t.Fatalf("foreign subject: status %d, want 404", status)
	}

	status, body = integ.do(http.MethodPost, "/api/v1/leaves", map[string]string{
		"user_id": "u-member-1", "type": "casual", "start": "2026-10-01", "end": "2026-10-01",
	})
	if status != http.StatusCreated {
		t.Fatalf("own subject: status %d body %v", status, body)
	}
	if body["organization_id"] != "org-1" || body["user_id"] != "u-member-1" {
		t.Fatalf("unexpected request row: %v", body)
	}
}

func TestAPITokenMintingRequiresAdmin(t *testing.T) {
	f := newTestAPI(t)
	manager := f.client(t)
	manager.login("manager@acme.test", "manager-pass-1")

	status, _ := manager.do(http.MethodPost, "/v1/auth/api-tokens", map[string]any{
		"scopes": []string{"read:leaves"},
	})
	if status != http.StatusForbidden {
		t.Fatalf("manager mint: status %d", status)
	}
}

func TestSuperAdminProvisioning(t *testing.T) {
	f := newTestAPI(t)
	root := f.client(t)
	root.login("root@peopledesk.test", "root-pass")

	status, body := root.do(http.MethodPost, "/v1/orgs", map[string]string{
		"name":           "Umbrella",
		"admin_email":    "admin@umbrella.test",
		"admin_name":     "Ada",
		"admin_password": "umbrella-pass",
	})
	if status != http.StatusCreated {
		t.Fatalf("provision: status %d body %v", status, body)
	}

	status, orgs := root.doList(http.MethodGet, "/v1/orgs")
	if status != http.StatusOK || len(orgs) != 4 {
		t.Fatalf("list orgs: status %d len %d", status, len(orgs))
	}

	// Tenant admins cannot touch the cross-tenant surface.
	admin := f.client(t)
	admin.login("admin@acme.test", "admin-pass-1")
	status, _ = admin.do(http.MethodGet, "/v1/orgs", nil)
	if status != http.StatusForbidden {
		t.Fatalf("tenant admin list orgs: status %d", status)
	}

	// The fresh admin can sign in immediately.
	fresh := f.client(t)
	fresh.login("admin@umbrella.test", "umbrella-pass")
}

func TestTaskDependencyCycleRejected(t *testing.T) {
	f := newTestAPI(t)
	c := f.client(t)
	c.login("manager@acme.test", "manager-pass-1")

	var ids []string
	for i := 0; i < 2; i++ {
		status, created := c.do(http.MethodPost, "/v1/tasks", map[string]any{
			"title": fmt.Sprintf("task %d", i),
		})
		if status != http.StatusCreated {
			t.Fatalf("create task: status %d", status)
		}
		ids = append(ids, created["id"].(string))
	}

	status, _ := c.do(http.MethodPost, "/v1/tasks/"+ids[0]+"/dependencies", map[string]string{
		"blocker_id": ids[1],
	})
	if status != http.StatusCreated {
		t.Fatalf("add edge: status %d", status)
	}
	status, _ = c.do(http.MethodPost, "/v1/tasks/"+ids[1]+"/dependencies", map[string]string{
		"blocker_id": ids[0],
	})
	if status != http.StatusBadRequest {
		t.Fatalf("cycle edge: status %d", status)
	}

	status, body := c.do(http.MethodGet, "/v1/tasks/"+ids[0]+"/ready", nil)
	if status != http.StatusOK || body["ready"] != false {
		t.Fatalf("ready with open blocker: status %d body %v", status, body)
	}
}

func TestRemindersFeed(t *testing.T) {
	f := newTestAPI(t)
	member := f.client(t)
	member.login("member@acme.test", "member-pass-1")
	status, _ := member.do(http.MethodPost, "/v1/leaves", map[string]string{
		"type": "casual", "start": "2026-09-07", "end": "2026-09-08",
	})
	if status != http.StatusCreated {
		t.Fatalf("submit: status %d", status)
	}

	manager := f.client(t)
	manager.login("manager@acme.test", "manager-pass-1")
	status, list := manager.doList(http.MethodGet, "/v1/reminders")
	if status != http.StatusOK {
		t.Fatalf("reminders: status %d", status)
	}
	found := false
	for _, r := range list {
		if r["kind"] == "pending_leave" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a pending_leave reminder, got %v", list)
	}

	// Members do not see the management feed.
	status, _ = member.do(http.MethodGet, "/v1/reminders", nil)
	if status != http.StatusForbidden {
		t.Fatalf("member reminders: status %d", status)
	}
}

func TestUnauthenticatedRequests(t *testing.T) {
	f := newTestAPI(t)
	c := f.client(t)

	status, _ := c.do(http.MethodGet, "/v1/users", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("no token: status %d", status)
	}
	c.token = "garbage"
	status, _ = c.do(http.MethodGet, "/v1/users", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("bad token: status %d", status)
	}
}
