package httpapi

import (
	"context"
	"fmt"

	"staff-portal/internal/domain"
	"staff-portal/internal/service"
)

func kindErr(kind error, msg string) error {
	return fmt.Errorf("%w: %s", kind, msg)
}

type stubProvisioning struct {
	createAdmin  service.CreateAdminAccountRequest
	createStaff  service.CreateStaffAccountRequest
	updatedID    int64
	updatedPatch domain.AccountPatch
	deletedID    int64
	actorID      int64

	accountResult service.Result[domain.Account]
	emptyResult   service.Result[service.Empty]
}

func (s *stubProvisioning) CreateAccount(ctx context.Context, req service.CreateAccountRequest) service.Result[domain.Account] {
	return s.accountResult
}

func (s *stubProvisioning) CreateAdminAccount(ctx context.Context, req service.CreateAdminAccountRequest) service.Result[domain.Account] {
	s.createAdmin = req
	return s.accountResult
}

func (s *stubProvisioning) CreateStaffAccount(ctx context.Context, req service.CreateStaffAccountRequest) service.Result[domain.Account] {
	s.createStaff = req
	return s.accountResult
}

func (s *stubProvisioning) UpdateAccount(ctx context.Context, id int64, patch domain.AccountPatch, actorID int64) service.Result[service.Empty] {
	s.updatedID, s.updatedPatch, s.actorID = id, patch, actorID
	return s.emptyResult
}

func (s *stubProvisioning) DeleteAccount(ctx context.Context, id int64, actorID int64) service.Result[service.Empty] {
	s.deletedID, s.actorID = id, actorID
	return s.emptyResult
}

type stubQueries struct {
	lastReq service.ListAccountsRequest
	list    service.Result[domain.Page[*domain.AccountListItem]]
	export  service.Result[service.ExportFile]
}

func (s *stubQueries) ListAccounts(ctx context.Context, req service.ListAccountsRequest) service.Result[domain.Page[*domain.AccountListItem]] {
	s.lastReq = req
	return s.list
}

func (s *stubQueries) ExportAccounts(ctx context.Context, req service.ListAccountsRequest) service.Result[service.ExportFile] {
	s.lastReq = req
	return s.export
}

type stubAudit struct {
	appended []domain.AuditLogEntry
	lastReq  service.QueryAuditLogRequest
	query    service.Result[domain.Page[*domain.AuditLogEntry]]
}

func (s *stubAudit) Append(ctx context.Context, entry domain.AuditLogEntry) {
	s.appended = append(s.appended, entry)
}

func (s *stubAudit) AppendAuditLog(ctx context.Context, entry domain.AuditLogEntry) service.Result[service.Empty] {
	s.appended = append(s.appended, entry)
	return service.Ok(&service.Empty{}, "Audit log recorded")
}

func (s *stubAudit) QueryAuditLog(ctx context.Context, req service.QueryAuditLogRequest) service.Result[domain.Page[*domain.AuditLogEntry]] {
	s.lastReq = req
	return s.query
}

type stubReference struct {
	calls   []string
	lastID  int64
	name    string
	full    string
	actorID int64
	empty   service.Result[service.Empty]
}

func (s *stubReference) ListBranches(ctx context.Context, req service.ListReferenceRequest) service.Result[domain.Page[*domain.Branch]] {
	s.calls = append(s.calls, "ListBranches")
	return service.Ok(&domain.Page[*domain.Branch]{Page: req.Page, PageSize: req.PageSize}, "")
}

func (s *stubReference) CreateBranch(ctx context.Context, name string, actorID int64) service.Result[domain.Branch] {
	s.calls = append(s.calls, "CreateBranch")
	s.name, s.actorID = name, actorID
	return service.Ok(&domain.Branch{ID: 1, Name: name}, "Branch created")
}

func (s *stubReference) UpdateBranch(ctx context.Context, id int64, name string, actorID int64) service.Result[service.Empty] {
	s.calls = append(s.calls, "UpdateBranch")
	s.lastID, s.name, s.actorID = id, name, actorID
	return s.empty
}

func (s *stubReference) DeleteBranch(ctx context.Context, id int64, actorID int64) service.Result[service.Empty] {
	s.calls = append(s.calls, "DeleteBranch")
	s.lastID, s.actorID = id, actorID
	return s.empty
}

func (s *stubReference) ListRoles(ctx context.Context, req service.ListReferenceRequest) service.Result[domain.Page[*domain.Role]] {
	s.calls = append(s.calls, "ListRoles")
	return service.Ok(&domain.Page[*domain.Role]{Page: req.Page, PageSize: req.PageSize}, "")
}

func (s *stubReference) CreateRole(ctx context.Context, name, fullName string, actorID int64) service.Result[domain.Role] {
	s.calls = append(s.calls, "CreateRole")
	s.name, s.full, s.actorID = name, fullName, actorID
	return service.Ok(&domain.Role{ID: 1, Name: name, FullName: fullName}, "Role created")
}

func (s *stubReference) UpdateRole(ctx context.Context, id int64, name, fullName string, actorID int64) service.Result[service.Empty] {
	s.calls = append(s.calls, "UpdateRole")
	s.lastID, s.name, s.full, s.actorID = id, name, fullName, actorID
	return s.empty
}

func (s *stubReference) DeleteRole(ctx context.Context, id int64, actorID int64) service.Result[service.Empty] {
	s.calls = append(s.calls, "DeleteRole")
	s.lastID, s.actorID = id, actorID
	return s.empty
}
