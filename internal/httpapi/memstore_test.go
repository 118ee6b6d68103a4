package httpapi

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"peopledesk.org/internal/auth"
	"peopledesk.org/internal/domain"
	"peopledesk.org/internal/expense"
	"peopledesk.org/internal/ids"
	"peopledesk.org/internal/leave"
	"peopledesk.org/internal/org"
	"peopledesk.org/internal/people"
	"peopledesk.org/internal/task"
	"peopledesk.org/internal/tenant"
)

// In-memory stores backing the end-to-end tests. Each mirrors the SQL
// store's scoping and compare-and-set contracts.

type memPeople struct {
	mu    sync.Mutex
	users map[string]people.User
}

func newMemPeople() *memPeople {
	return &memPeople{users: make(map[string]people.User)}
}

func (m *memPeople) Insert(_ context.Context, scope tenant.Scope, u *people.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.ID = ids.New()
	u.OrganizationID = scope.OrgID()
	m.users[u.ID] = *u
	return nil
}

func (m *memPeople) Get(_ context.Context, scope tenant.Scope, id string) (people.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || (!scope.CrossTenant() && u.OrganizationID != scope.OrgID()) {
		return people.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (m *memPeople) GetByEmail(_ context.Context, scope tenant.Scope, email string) (people.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email && (scope.CrossTenant() || u.OrganizationID == scope.OrgID()) {
			return u, nil
		}
	}
	return people.User{}, domain.ErrNotFound
}

func (m *memPeople) List(_ context.Context, scope tenant.Scope) ([]people.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []people.User
	for _, u := range m.users {
		if scope.CrossTenant() || u.OrganizationID == scope.OrgID() {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memPeople) Update(_ context.Context, scope tenant.Scope, u people.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.users[u.ID]
	if !ok || cur.OrganizationID != scope.OrgID() {
		return domain.ErrNotFound
	}
	m.users[u.ID] = u
	return nil
}

func (m *memPeople) FindByInviteHash(_ context.Context, tokenHash string) (people.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.InviteTokenHash != "" && u.InviteTokenHash == tokenHash {
			return u, nil
		}
	}
	return people.User{}, domain.ErrNotFound
}

func (m *memPeople) Activate(_ context.Context, userID, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	if u.Status != auth.StatusInvited {
		return domain.ErrAlreadyProcessed
	}
	u.Status = auth.StatusActive
	u.PasswordHash = passwordHash
	u.InviteTokenHash = ""
	u.InviteExpiresAt = nil
	m.users[userID] = u
	return nil
}

func (m *memPeople) FindAccount(_ context.Context, id string) (auth.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return auth.Account{}, auth.ErrUserNotFound
	}
	return accountFor(u), nil
}

func (m *memPeople) FindAccountByEmail(_ context.Context, email string) (auth.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return accountFor(u), nil
		}
	}
	return auth.Account{}, auth.ErrUserNotFound
}

func accountFor(u people.User) auth.Account {
	return auth.Account{
		ID:             u.ID,
		OrganizationID: u.OrganizationID,
		Email:          u.Email,
		Name:           u.Name,
		Role:           u.Role,
		Status:         u.Status,
		PasswordHash:   u.PasswordHash,
	}
}

type memOrgs struct {
	mu   sync.Mutex
	orgs map[string]org.Organization
	dir  *memPeople
}

func newMemOrgs(dir *memPeople) *memOrgs {
	return &memOrgs{orgs: make(map[string]org.Organization), dir: dir}
}

func (m *memOrgs) Insert(_ context.Context, o *org.Organization) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.ID == "" {
		o.ID = fmt.Sprintf("org-%d", len(m.orgs)+1)
	}
	m.orgs[o.ID] = *o
	return nil
}

func (m *memOrgs) GetByID(_ context.Context, id string) (org.Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orgs[id]
	if !ok {
		return org.Organization{}, domain.ErrNotFound
	}
	return o, nil
}

func (m *memOrgs) Get(_ context.Context, scope tenant.Scope) (org.Organization, error) {
	return m.GetByID(context.Background(), scope.OrgID())
}

func (m *memOrgs) ListAll(_ context.Context) ([]org.Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []org.Organization
	for _, o := range m.orgs {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memOrgs) UpdateSettings(_ context.Context, scope tenant.Scope, settings org.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orgs[scope.OrgID()]
	if !ok {
		return domain.ErrNotFound
	}
	o.Settings = settings
	m.orgs[o.ID] = o
	return nil
}

func (m *memOrgs) InsertAdmin(_ context.Context, orgID string, admin *auth.Account) error {
	m.dir.mu.Lock()
	defer m.dir.mu.Unlock()
	if admin.ID == "" {
		admin.ID = fmt.Sprintf("u-%d", len(m.dir.users)+1)
	}
	m.dir.users[admin.ID] = people.User{
		ID:             admin.ID,
		OrganizationID: orgID,
		Email:          admin.Email,
		Name:           admin.Name,
		Role:           admin.Role,
		Status:         admin.Status,
		Employment:     people.EmploymentPermanent,
		PasswordHash:   admin.PasswordHash,
	}
	return nil
}

type memLeaves struct {
	mu   sync.Mutex
	rows map[string]leave.Request
}

func newMemLeaves() *memLeaves {
	return &memLeaves{rows: make(map[string]leave.Request)}
}

func (m *memLeaves) Insert(_ context.Context, scope tenant.Scope, req *leave.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	req.ID = ids.New()
	req.OrganizationID = scope.OrgID()
	m.rows[req.ID] = *req
	return nil
}

func (m *memLeaves) Get(_ context.Context, scope tenant.Scope, id string) (leave.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok || row.OrganizationID != scope.OrgID() {
		return leave.Request{}, domain.ErrNotFound
	}
	return row, nil
}

func (m *memLeaves) ListByUser(_ context.Context, scope tenant.Scope, userID string) ([]leave.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []leave.Request
	for _, row := range m.rows {
		if row.OrganizationID == scope.OrgID() && row.UserID == userID {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memLeaves) ListPending(_ context.Context, scope tenant.Scope) ([]leave.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []leave.Request
	for _, row := range m.rows {
		if row.OrganizationID == scope.OrgID() && row.Status == leave.StatusPending {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memLeaves) SetStatus(_ context.Context, scope tenant.Scope, id string, to leave.Status, decidedBy string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok || row.OrganizationID != scope.OrgID() {
		return domain.ErrNotFound
	}
	if row.Status != leave.StatusPending {
		return domain.ErrAlreadyProcessed
	}
	row.Status = to
	row.DecidedBy = decidedBy
	m.rows[id] = row
	return nil
}

func (m *memLeaves) ApprovedInYear(_ context.Context, scope tenant.Scope, userID string, year int) ([]leave.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []leave.Request
	for _, row := range m.rows {
		if row.OrganizationID != scope.OrgID() || row.UserID != userID || row.Status != leave.StatusApproved {
			continue
		}
		if row.Dates.Start.Year() == year || row.Dates.End.Year() == year {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *memLeaves) ApprovedOverlapping(_ context.Context, scope tenant.Scope, rng domain.DateRange, excludeUserID string) ([]leave.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []leave.Request
	for _, row := range m.rows {
		if row.OrganizationID != scope.OrgID() || row.Status != leave.StatusApproved {
			continue
		}
		if excludeUserID != "" && row.UserID == excludeUserID {
			continue
		}
		if row.Dates.Overlaps(rng) {
			out = append(out, row)
		}
	}
	return out, nil
}

type memExpenses struct {
	mu   sync.Mutex
	rows map[string]expense.Expense
}

func newMemExpenses() *memExpenses {
	return &memExpenses{rows: make(map[string]expense.Expense)}
}

func (m *memExpenses) Insert(_ context.Context, scope tenant.Scope, e *expense.Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = ids.New()
	e.OrganizationID = scope.OrgID()
	m.rows[e.ID] = *e
	return nil
}

func (m *memExpenses) Get(_ context.Context, scope tenant.Scope, id string) (expense.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok || row.OrganizationID != scope.OrgID() {
		return expense.Expense{}, domain.ErrNotFound
	}
	return row, nil
}

func (m *memExpenses) List(_ context.Context, scope tenant.Scope) ([]expense.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []expense.Expense
	for _, row := range m.rows {
		if row.OrganizationID == scope.OrgID() {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memExpenses) ListByUser(_ context.Context, scope tenant.Scope, userID string) ([]expense.Expense, error) {
	all, _ := m.List(context.Background(), scope)
	var out []expense.Expense
	for _, row := range all {
		if row.UserID == userID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *memExpenses) Transition(_ context.Context, scope tenant.Scope, id string, from, to expense.Status, approvedBy string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok || row.OrganizationID != scope.OrgID() {
		return domain.ErrNotFound
	}
	if row.Status != from {
		return domain.ErrAlreadyProcessed
	}
	row.Status = to
	if approvedBy != "" {
		row.ApprovedBy = approvedBy
	}
	m.rows[id] = row
	return nil
}

type memTasks struct {
	mu   sync.Mutex
	rows map[string]task.Task
	deps []task.Dependency
}

func newMemTasks() *memTasks {
	return &memTasks{rows: make(map[string]task.Task)}
}

func (m *memTasks) Insert(_ context.Context, scope tenant.Scope, t *task.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = ids.New()
	t.OrganizationID = scope.OrgID()
	m.rows[t.ID] = *t
	return nil
}

func (m *memTasks) Get(_ context.Context, scope tenant.Scope, id string) (task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok || row.OrganizationID != scope.OrgID() {
		return task.Task{}, domain.ErrNotFound
	}
	return row, nil
}

func (m *memTasks) List(_ context.Context, scope tenant.Scope) ([]task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []task.Task
	for _, row := range m.rows {
		if row.OrganizationID == scope.OrgID() {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memTasks) SetStatus(_ context.Context, scope tenant.Scope, id string, status task.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok || row.OrganizationID != scope.OrgID() {
		return domain.ErrNotFound
	}
	row.Status = status
	m.rows[id] = row
	return nil
}

func (m *memTasks) InsertDependency(_ context.Context, scope tenant.Scope, dep task.Dependency) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.deps {
		if d == dep {
			return nil
		}
	}
	m.deps = append(m.deps, dep)
	return nil
}

func (m *memTasks) DeleteDependency(_ context.Context, scope tenant.Scope, dep task.Dependency) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, d := range m.deps {
		if d == dep {
			m.deps = append(m.deps[:i], m.deps[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memTasks) Dependencies(_ context.Context, scope tenant.Scope) ([]task.Dependency, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]task.Dependency(nil), m.deps...), nil
}

func (m *memTasks) Blockers(_ context.Context, scope tenant.Scope, id string) ([]task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []task.Task
	for _, d := range m.deps {
		if d.BlockedID == id {
			if row, ok := m.rows[d.BlockerID]; ok {
				out = append(out, row)
			}
		}
	}
	return out, nil
}
