package repository

import (
	"context"

	"staff-portal/internal/domain"
)

// AccountsRepository 账户Repository接口（Profile Store）
// accounts 与 staff_profiles 的写入在同一个事务中完成
type AccountsRepository interface {
	GetAccount(ctx context.Context, id int64) (*domain.Account, error)
	ListAccounts(ctx context.Context, filters AccountFilters, sort Sort, page, size int) ([]*domain.AccountListItem, int, error)
	// ExportAccounts 不分页，最多返回 limit 行
	ExportAccounts(ctx context.Context, filters AccountFilters, sort Sort, limit int) ([]*domain.AccountListItem, error)

	// CreateAccount 写入 accounts（STAFF 同时写入 staff_profiles），回填 ID 和 CreatedAt
	CreateAccount(ctx context.Context, account *domain.Account) error
	UpdateAccount(ctx context.Context, id int64, patch domain.AccountPatch) error
	DeleteAccount(ctx context.Context, id int64) error
}

// AccountFilters 账户查询过滤器（AND 组合）
type AccountFilters struct {
	Kind         domain.AccountKind
	Search       string // 模糊搜索：full_name OR email
	RoleIDs      []int64
	BranchIDs    []int64
	CreatedByIDs []int64
	Nationality  string
}

// Sort 排序参数；Key 不在白名单内时回退到默认列
type Sort struct {
	Key       string
	Direction domain.SortDirection
}

func (s Sort) desc() bool { return s.Direction != domain.SortAsc }
