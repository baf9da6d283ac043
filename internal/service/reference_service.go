package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"staff-portal/internal/domain"
	"staff-portal/internal/repository"

	"go.uber.org/zap"
)

// ReferenceService 分店与员工角色管理
// 删除前检查 staffCount，仍被员工引用时拒绝删除
type ReferenceService interface {
	ListBranches(ctx context.Context, req ListReferenceRequest) Result[domain.Page[*domain.Branch]]
	CreateBranch(ctx context.Context, name string, actorID int64) Result[domain.Branch]
	UpdateBranch(ctx context.Context, id int64, name string, actorID int64) Result[Empty]
	DeleteBranch(ctx context.Context, id int64, actorID int64) Result[Empty]

	ListRoles(ctx context.Context, req ListReferenceRequest) Result[domain.Page[*domain.Role]]
	CreateRole(ctx context.Context, name, fullName string, actorID int64) Result[domain.Role]
	UpdateRole(ctx context.Context, id int64, name, fullName string, actorID int64) Result[Empty]
	DeleteRole(ctx context.Context, id int64, actorID int64) Result[Empty]
}

// ListReferenceRequest 分店/角色列表请求
type ListReferenceRequest struct {
	Search   string
	Page     int
	PageSize int
}

type referenceService struct {
	branches repository.BranchesRepository
	roles    repository.RolesRepository
	audit    AuditService
	pages    PageOptions
	logger   *zap.Logger
}

// NewReferenceService 创建 ReferenceService
func NewReferenceService(branches repository.BranchesRepository, roles repository.RolesRepository, audit AuditService, pages PageOptions, logger *zap.Logger) ReferenceService {
	return &referenceService{
		branches: branches,
		roles:    roles,
		audit:    audit,
		pages:    pages,
		logger:   logger,
	}
}

// storeFailure 将 repository 错误映射为错误类型
func storeFailure[T any](err error, what string, id int64, message string) Result[T] {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return Fail[T](newError(ErrNotFound, "%s %d not found", what, id), message)
	case errors.Is(err, repository.ErrReferenced):
		return Fail[T](newError(ErrReferentialGuard, "%s %d is still assigned to staff", what, id), message)
	case errors.Is(err, repository.ErrDuplicate):
		return Fail[T](newError(ErrValidation, "%s name already exists", what), message)
	}
	return Fail[T](wrapError(ErrProfileStore, err), message)
}

func (s *referenceService) appendAudit(ctx context.Context, typ domain.AuditLogType, actorID, targetID int64, target, message string, metadata map[string]any) {
	s.audit.Append(ctx, domain.AuditLogEntry{
		Type:        typ,
		ActorID:     actorRef(actorID),
		ActedOnID:   &targetID,
		ActedOnType: strPtr(target),
		Message:     message,
		Metadata:    metadata,
	})
}

// ============================================
// Branch
// ============================================

func (s *referenceService) ListBranches(ctx context.Context, req ListReferenceRequest) Result[domain.Page[*domain.Branch]] {
	page, size := s.pages.normalize(req.Page, req.PageSize)
	rows, total, err := s.branches.ListBranches(ctx, req.Search, page, size)
	if err != nil {
		s.logger.Error("Failed to list branches", zap.Error(err))
		return Fail[domain.Page[*domain.Branch]](wrapError(ErrProfileStore, err), "Failed to load branches")
	}
	return Ok(&domain.Page[*domain.Branch]{
		Rows:       rows,
		TotalCount: total,
		PageCount:  domain.PageCount(total, size),
		Page:       domain.ClampPage(page, total, size),
		PageSize:   size,
	}, "")
}

func (s *referenceService) CreateBranch(ctx context.Context, name string, actorID int64) Result[domain.Branch] {
	name = strings.TrimSpace(name)
	if name == "" {
		return Fail[domain.Branch](newError(ErrValidation, "branch name is required"), "Invalid branch")
	}
	branch, err := s.branches.CreateBranch(ctx, name)
	if err != nil {
		s.logger.Error("Failed to create branch", zap.String("name", name), zap.Error(err))
		return storeFailure[domain.Branch](err, "branch", 0, "Failed to create branch")
	}
	s.appendAudit(ctx, domain.AuditCreateBranch, actorID, branch.ID, domain.TargetBranch,
		fmt.Sprintf("Created branch %s", name), map[string]any{"name": name})
	return Ok(branch, "Branch created successfully")
}

func (s *referenceService) UpdateBranch(ctx context.Context, id int64, name string, actorID int64) Result[Empty] {
	name = strings.TrimSpace(name)
	if name == "" {
		return Fail[Empty](newError(ErrValidation, "branch name is required"), "Invalid branch")
	}
	prev, err := s.branches.GetBranch(ctx, id)
	if err != nil {
		return storeFailure[Empty](err, "branch", id, "Failed to update branch")
	}
	if err := s.branches.UpdateBranch(ctx, id, name); err != nil {
		s.logger.Error("Failed to update branch", zap.Int64("branch_id", id), zap.Error(err))
		return storeFailure[Empty](err, "branch", id, "Failed to update branch")
	}
	s.appendAudit(ctx, domain.AuditUpdateBranch, actorID, id, domain.TargetBranch,
		fmt.Sprintf("Renamed branch %s to %s", prev.Name, name),
		map[string]any{"previous_name": prev.Name, "name": name})
	return Ok(&Empty{}, "Branch updated successfully")
}

// DeleteBranch 删除分店；仍有员工时返回 ReferentialGuardError，不做任何修改
func (s *referenceService) DeleteBranch(ctx context.Context, id int64, actorID int64) Result[Empty] {
	branch, err := s.branches.GetBranch(ctx, id)
	if err != nil {
		return storeFailure[Empty](err, "branch", id, "Failed to delete branch")
	}
	if branch.StaffCount > 0 {
		return Fail[Empty](
			newError(ErrReferentialGuard, "branch %d still has %d staff", id, branch.StaffCount),
			"Reassign the staff of this branch before deleting it",
		)
	}
	if err := s.branches.DeleteBranch(ctx, id); err != nil {
		s.logger.Warn("Failed to delete branch", zap.Int64("branch_id", id), zap.Error(err))
		return storeFailure[Empty](err, "branch", id, "Failed to delete branch")
	}
	s.appendAudit(ctx, domain.AuditDeleteBranch, actorID, id, domain.TargetBranch,
		fmt.Sprintf("Deleted branch %s", branch.Name), map[string]any{"name": branch.Name})
	return Ok(&Empty{}, "Branch deleted successfully")
}

// ============================================
// Role
// ============================================

func (s *referenceService) ListRoles(ctx context.Context, req ListReferenceRequest) Result[domain.Page[*domain.Role]] {
	page, size := s.pages.normalize(req.Page, req.PageSize)
	rows, total, err := s.roles.ListRoles(ctx, req.Search, page, size)
	if err != nil {
		s.logger.Error("Failed to list roles", zap.Error(err))
		return Fail[domain.Page[*domain.Role]](wrapError(ErrProfileStore, err), "Failed to load roles")
	}
	return Ok(&domain.Page[*domain.Role]{
		Rows:       rows,
		TotalCount: total,
		PageCount:  domain.PageCount(total, size),
		Page:       domain.ClampPage(page, total, size),
		PageSize:   size,
	}, "")
}

func (s *referenceService) CreateRole(ctx context.Context, name, fullName string, actorID int64) Result[domain.Role] {
	name, fullName = strings.TrimSpace(name), strings.TrimSpace(fullName)
	if name == "" {
		return Fail[domain.Role](newError(ErrValidation, "role name is required"), "Invalid role")
	}
	role, err := s.roles.CreateRole(ctx, name, fullName)
	if err != nil {
		s.logger.Error("Failed to create role", zap.String("name", name), zap.Error(err))
		return storeFailure[domain.Role](err, "role", 0, "Failed to create role")
	}
	s.appendAudit(ctx, domain.AuditCreateRole, actorID, role.ID, domain.TargetRole,
		fmt.Sprintf("Created role %s", name), map[string]any{"name": name, "full_name": fullName})
	return Ok(role, "Role created successfully")
}

func (s *referenceService) UpdateRole(ctx context.Context, id int64, name, fullName string, actorID int64) Result[Empty] {
	name, fullName = strings.TrimSpace(name), strings.TrimSpace(fullName)
	if name == "" {
		return Fail[Empty](newError(ErrValidation, "role name is required"), "Invalid role")
	}
	prev, err := s.roles.GetRole(ctx, id)
	if err != nil {
		return storeFailure[Empty](err, "role", id, "Failed to update role")
	}
	if err := s.roles.UpdateRole(ctx, id, name, fullName); err != nil {
		s.logger.Error("Failed to update role", zap.Int64("role_id", id), zap.Error(err))
		return storeFailure[Empty](err, "role", id, "Failed to update role")
	}
	s.appendAudit(ctx, domain.AuditUpdateRole, actorID, id, domain.TargetRole,
		fmt.Sprintf("Updated role %s", name),
		map[string]any{"previous_name": prev.Name, "name": name, "full_name": fullName})
	return Ok(&Empty{}, "Role updated successfully")
}

// DeleteRole 删除角色；仍有员工时返回 ReferentialGuardError
func (s *referenceService) DeleteRole(ctx context.Context, id int64, actorID int64) Result[Empty] {
	role, err := s.roles.GetRole(ctx, id)
	if err != nil {
		return storeFailure[Empty](err, "role", id, "Failed to delete role")
	}
	if role.StaffCount > 0 {
		return Fail[Empty](
			newError(ErrReferentialGuard, "role %d still has %d staff", id, role.StaffCount),
			"Reassign the staff with this role before deleting it",
		)
	}
	if err := s.roles.DeleteRole(ctx, id); err != nil {
		s.logger.Warn("Failed to delete role", zap.Int64("role_id", id), zap.Error(err))
		return storeFailure[Empty](err, "role", id, "Failed to delete role")
	}
	s.appendAudit(ctx, domain.AuditDeleteRole, actorID, id, domain.TargetRole,
		fmt.Sprintf("Deleted role %s", role.Name), map[string]any{"name": role.Name})
	return Ok(&Empty{}, "Role deleted successfully")
}
