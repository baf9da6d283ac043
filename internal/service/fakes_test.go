package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"staff-portal/internal/domain"
	"staff-portal/internal/identity"
	"staff-portal/internal/repository"
)

var errBoom = errors.New("boom")

// fakeProvider 内存身份服务，可注入失败
type fakeProvider struct {
	mu         sync.Mutex
	identities map[string]identity.Metadata
	seq        int

	createErr error
	updateErr error
	deleteErr error
	// deleteFailures 按身份 ID 注入删除失败次数；负数表示一直失败
	deleteFailures map[string]int

	deleteCalls int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{identities: map[string]identity.Metadata{}}
}

func (p *fakeProvider) CreateIdentity(_ context.Context, email, _ string, md identity.Metadata) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createErr != nil {
		return "", p.createErr
	}
	p.seq++
	id := fmt.Sprintf("idp-%d", p.seq)
	p.identities[id] = md
	return id, nil
}

func (p *fakeProvider) UpdateIdentityMetadata(_ context.Context, id string, md identity.Metadata) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.updateErr != nil {
		return p.updateErr
	}
	if _, ok := p.identities[id]; !ok {
		return identity.ErrNotFound
	}
	p.identities[id] = md
	return nil
}

func (p *fakeProvider) DeleteIdentity(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleteCalls++
	if p.deleteErr != nil {
		return p.deleteErr
	}
	if n, ok := p.deleteFailures[id]; ok && n != 0 {
		if n > 0 {
			p.deleteFailures[id] = n - 1
		}
		return errBoom
	}
	delete(p.identities, id)
	return nil
}

func (p *fakeProvider) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.identities)
}

func (p *fakeProvider) has(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.identities[id]
	return ok
}

// fakeAccountsRepo 内存 Profile Store
type fakeAccountsRepo struct {
	mu       sync.Mutex
	accounts map[int64]*domain.Account
	nextID   int64

	createErr error
	updateErr error
	deleteErr error
	getErr    error
	listErr   error
}

func newFakeAccountsRepo() *fakeAccountsRepo {
	return &fakeAccountsRepo{accounts: map[int64]*domain.Account{}, nextID: 1}
}

var _ repository.AccountsRepository = (*fakeAccountsRepo)(nil)

func (r *fakeAccountsRepo) put(a domain.Account) *domain.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.ID == 0 {
		a.ID = r.nextID
	}
	if a.ID >= r.nextID {
		r.nextID = a.ID + 1
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(a.ID) * time.Minute)
	}
	r.accounts[a.ID] = &a
	return &a
}

func (r *fakeAccountsRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.accounts)
}

func (r *fakeAccountsRepo) get(id int64) (*domain.Account, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	return a, ok
}

func (r *fakeAccountsRepo) GetAccount(_ context.Context, id int64) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	a, ok := r.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *fakeAccountsRepo) filter(f repository.AccountFilters) []*domain.AccountListItem {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	var items []*domain.AccountListItem
	for _, a := range r.accounts {
		if f.Kind != "" && a.Kind != f.Kind {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(a.FullName), search) && !strings.Contains(strings.ToLower(a.Email), search) {
			continue
		}
		items = append(items, &domain.AccountListItem{Account: *a})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID > items[j].ID })
	return items
}

func (r *fakeAccountsRepo) ListAccounts(_ context.Context, f repository.AccountFilters, _ repository.Sort, page, size int) ([]*domain.AccountListItem, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, 0, r.listErr
	}
	items := r.filter(f)
	total := len(items)
	if total == 0 {
		return []*domain.AccountListItem{}, 0, nil
	}
	page = domain.ClampPage(page, total, size)
	start := (page - 1) * size
	end := start + size
	if end > total {
		end = total
	}
	return items[start:end], total, nil
}

func (r *fakeAccountsRepo) ExportAccounts(_ context.Context, f repository.AccountFilters, _ repository.Sort, limit int) ([]*domain.AccountListItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	items := r.filter(f)
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (r *fakeAccountsRepo) CreateAccount(_ context.Context, a *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	a.ID = r.nextID
	r.nextID++
	a.CreatedAt = time.Now()
	cp := *a
	r.accounts[a.ID] = &cp
	return nil
}

func (r *fakeAccountsRepo) UpdateAccount(_ context.Context, id int64, patch domain.AccountPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	a, ok := r.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	updated := patch.Apply(*a)
	r.accounts[id] = &updated
	return nil
}

func (r *fakeAccountsRepo) DeleteAccount(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteErr != nil {
		return r.deleteErr
	}
	if _, ok := r.accounts[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.accounts, id)
	return nil
}

// fakeAuditRepo 内存审计日志
type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []domain.AuditLogEntry
	err     error

	lastFilters repository.AuditLogFilters
	lastSort    repository.Sort
}

func (r *fakeAuditRepo) CreateAuditLog(_ context.Context, e *domain.AuditLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	e.ID = int64(len(r.entries) + 1)
	e.CreatedAt = time.Now()
	r.entries = append(r.entries, *e)
	return nil
}

func (r *fakeAuditRepo) ListAuditLogs(_ context.Context, f repository.AuditLogFilters, s repository.Sort, page, size int) ([]*domain.AuditLogEntry, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastFilters = f
	r.lastSort = s
	if r.err != nil {
		return nil, 0, r.err
	}
	var rows []*domain.AuditLogEntry
	for i := range r.entries {
		e := r.entries[i]
		if f.Type != "" && e.Type != f.Type {
			continue
		}
		if f.TargetType != "" && (e.ActedOnType == nil || *e.ActedOnType != f.TargetType) {
			continue
		}
		rows = append(rows, &e)
	}
	if rows == nil {
		rows = []*domain.AuditLogEntry{}
	}
	return rows, len(rows), nil
}

func (r *fakeAuditRepo) all() []domain.AuditLogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.AuditLogEntry(nil), r.entries...)
}

// fakeBranchesRepo / fakeRolesRepo 内存分店和角色
type fakeBranchesRepo struct {
	branches  map[int64]*domain.Branch
	deleteErr error
}

func (r *fakeBranchesRepo) GetBranch(_ context.Context, id int64) (*domain.Branch, error) {
	b, ok := r.branches[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *fakeBranchesRepo) ListBranches(_ context.Context, _ string, _, _ int) ([]*domain.Branch, int, error) {
	var out []*domain.Branch
	for _, b := range r.branches {
		out = append(out, b)
	}
	return out, len(out), nil
}

func (r *fakeBranchesRepo) CreateBranch(_ context.Context, name string) (*domain.Branch, error) {
	for _, b := range r.branches {
		if b.Name == name {
			return nil, repository.ErrDuplicate
		}
	}
	b := &domain.Branch{ID: int64(len(r.branches) + 100), Name: name}
	r.branches[b.ID] = b
	return b, nil
}

func (r *fakeBranchesRepo) UpdateBranch(_ context.Context, id int64, name string) error {
	b, ok := r.branches[id]
	if !ok {
		return repository.ErrNotFound
	}
	b.Name = name
	return nil
}

func (r *fakeBranchesRepo) DeleteBranch(_ context.Context, id int64) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	if _, ok := r.branches[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.branches, id)
	return nil
}

type fakeRolesRepo struct {
	roles map[int64]*domain.Role
}

func (r *fakeRolesRepo) GetRole(_ context.Context, id int64) (*domain.Role, error) {
	role, ok := r.roles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *role
	return &cp, nil
}

func (r *fakeRolesRepo) ListRoles(_ context.Context, _ string, _, _ int) ([]*domain.Role, int, error) {
	var out []*domain.Role
	for _, role := range r.roles {
		out = append(out, role)
	}
	return out, len(out), nil
}

func (r *fakeRolesRepo) CreateRole(_ context.Context, name, fullName string) (*domain.Role, error) {
	role := &domain.Role{ID: int64(len(r.roles) + 100), Name: name, FullName: fullName}
	r.roles[role.ID] = role
	return role, nil
}

func (r *fakeRolesRepo) UpdateRole(_ context.Context, id int64, name, fullName string) error {
	role, ok := r.roles[id]
	if !ok {
		return repository.ErrNotFound
	}
	role.Name, role.FullName = name, fullName
	return nil
}

func (r *fakeRolesRepo) DeleteRole(_ context.Context, id int64) error {
	if _, ok := r.roles[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.roles, id)
	return nil
}

// fakeOrphans 记录上报的残留
type fakeOrphans struct {
	mu      sync.Mutex
	reports []Orphan
}

func (f *fakeOrphans) ReportOrphan(_ context.Context, o Orphan) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, o)
	return nil
}

func (f *fakeOrphans) all() []Orphan {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Orphan(nil), f.reports...)
}
