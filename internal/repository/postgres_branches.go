package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"staff-portal/internal/domain"
)

// PostgresBranchesRepository 分店Repository实现
type PostgresBranchesRepository struct {
	db *sql.DB
}

// NewPostgresBranchesRepository 创建分店Repository
func NewPostgresBranchesRepository(db *sql.DB) *PostgresBranchesRepository {
	return &PostgresBranchesRepository{db: db}
}

var _ BranchesRepository = (*PostgresBranchesRepository)(nil)

const branchColumns = `
		b.id,
		b.name,
		b.created_at,
		(SELECT COUNT(*) FROM staff_profiles sp WHERE sp.branch_id = b.id)`

func scanBranch(row rowScanner) (*domain.Branch, error) {
	var b domain.Branch
	if err := row.Scan(&b.ID, &b.Name, &b.CreatedAt, &b.StaffCount); err != nil {
		return nil, err
	}
	return &b, nil
}

// GetBranch 获取分店（含 staffCount）
func (r *PostgresBranchesRepository) GetBranch(ctx context.Context, id int64) (*domain.Branch, error) {
	b, err := scanBranch(r.db.QueryRowContext(ctx, "SELECT"+branchColumns+" FROM branches b WHERE b.id = $1", id))
	if err != nil {
		return nil, mapPQError(err)
	}
	return b, nil
}

// ListBranches 分页查询分店，按名称排序
func (r *PostgresBranchesRepository) ListBranches(ctx context.Context, search string, page, size int) ([]*domain.Branch, int, error) {
	if size <= 0 {
		size = 10
	}
	p := &predicate{}
	if s := strings.TrimSpace(search); s != "" {
		p.add("b.name ILIKE $%d ESCAPE '\\'", likePattern(s))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM branches b"+p.where(), p.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count branches: %w", err)
	}
	if total == 0 {
		return []*domain.Branch{}, 0, nil
	}

	page = domain.ClampPage(page, total, size)
	limit, args := p.page(size, (page-1)*size)
	rows, err := r.db.QueryContext(ctx, "SELECT"+branchColumns+" FROM branches b"+p.where()+" ORDER BY b.name ASC, b.id ASC"+limit, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list branches: %w", err)
	}
	defer rows.Close()

	branches := []*domain.Branch{}
	for rows.Next() {
		b, err := scanBranch(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan branch: %w", err)
		}
		branches = append(branches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return branches, total, nil
}

// CreateBranch 创建分店
func (r *PostgresBranchesRepository) CreateBranch(ctx context.Context, name string) (*domain.Branch, error) {
	b := &domain.Branch{Name: name}
	err := r.db.QueryRowContext(ctx, `INSERT INTO branches (name) VALUES ($1) RETURNING id, created_at`, name).
		Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert branch: %w", mapPQError(err))
	}
	return b, nil
}

// UpdateBranch 重命名分店
func (r *PostgresBranchesRepository) UpdateBranch(ctx context.Context, id int64, name string) error {
	return execOne(ctx, r.db, "UPDATE branches SET name = $1 WHERE id = $2", name, id)
}

// DeleteBranch 删除分店；外键 RESTRICT 兜底并发插入的员工
func (r *PostgresBranchesRepository) DeleteBranch(ctx context.Context, id int64) error {
	return execOne(ctx, r.db, "DELETE FROM branches WHERE id = $1", id)
}
