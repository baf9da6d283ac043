package repository

import (
	"context"

	"staff-portal/internal/domain"
)

// BranchesRepository 分店Repository接口
type BranchesRepository interface {
	GetBranch(ctx context.Context, id int64) (*domain.Branch, error)
	ListBranches(ctx context.Context, search string, page, size int) ([]*domain.Branch, int, error)
	CreateBranch(ctx context.Context, name string) (*domain.Branch, error)
	UpdateBranch(ctx context.Context, id int64, name string) error
	// DeleteBranch 仍有员工引用时返回 ErrReferenced
	DeleteBranch(ctx context.Context, id int64) error
}

// RolesRepository 员工角色Repository接口
type RolesRepository interface {
	GetRole(ctx context.Context, id int64) (*domain.Role, error)
	ListRoles(ctx context.Context, search string, page, size int) ([]*domain.Role, int, error)
	CreateRole(ctx context.Context, name, fullName string) (*domain.Role, error)
	UpdateRole(ctx context.Context, id int64, name, fullName string) error
	// DeleteRole 仍有员工引用时返回 ErrReferenced
	DeleteRole(ctx context.Context, id int64) error
}
