package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"staff-portal/internal/domain"
)

// PostgresRolesRepository 员工角色Repository实现
type PostgresRolesRepository struct {
	db *sql.DB
}

// NewPostgresRolesRepository 创建角色Repository
func NewPostgresRolesRepository(db *sql.DB) *PostgresRolesRepository {
	return &PostgresRolesRepository{db: db}
}

var _ RolesRepository = (*PostgresRolesRepository)(nil)

const roleColumns = `
		r.id,
		r.name,
		r.full_name,
		r.created_at,
		(SELECT COUNT(*) FROM staff_profiles sp WHERE sp.staff_role_id = r.id)`

func scanRole(row rowScanner) (*domain.Role, error) {
	var role domain.Role
	if err := row.Scan(&role.ID, &role.Name, &role.FullName, &role.CreatedAt, &role.StaffCount); err != nil {
		return nil, err
	}
	return &role, nil
}

// GetRole 获取角色（含 staffCount）
func (r *PostgresRolesRepository) GetRole(ctx context.Context, id int64) (*domain.Role, error) {
	role, err := scanRole(r.db.QueryRowContext(ctx, "SELECT"+roleColumns+" FROM roles r WHERE r.id = $1", id))
	if err != nil {
		return nil, mapPQError(err)
	}
	return role, nil
}

// ListRoles 分页查询角色；搜索 name 和 full_name
func (r *PostgresRolesRepository) ListRoles(ctx context.Context, search string, page, size int) ([]*domain.Role, int, error) {
	if size <= 0 {
		size = 10
	}
	p := &predicate{}
	if s := strings.TrimSpace(search); s != "" {
		p.add("(r.name ILIKE $%[1]d ESCAPE '\\' OR r.full_name ILIKE $%[1]d ESCAPE '\\')", likePattern(s))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM roles r"+p.where(), p.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count roles: %w", err)
	}
	if total == 0 {
		return []*domain.Role{}, 0, nil
	}

	page = domain.ClampPage(page, total, size)
	limit, args := p.page(size, (page-1)*size)
	rows, err := r.db.QueryContext(ctx, "SELECT"+roleColumns+" FROM roles r"+p.where()+" ORDER BY r.name ASC, r.id ASC"+limit, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	roles := []*domain.Role{}
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return roles, total, nil
}

// CreateRole 创建角色
func (r *PostgresRolesRepository) CreateRole(ctx context.Context, name, fullName string) (*domain.Role, error) {
	role := &domain.Role{Name: name, FullName: fullName}
	err := r.db.QueryRowContext(ctx, `INSERT INTO roles (name, full_name) VALUES ($1, $2) RETURNING id, created_at`, name, fullName).
		Scan(&role.ID, &role.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert role: %w", mapPQError(err))
	}
	return role, nil
}

// UpdateRole 更新角色名称
func (r *PostgresRolesRepository) UpdateRole(ctx context.Context, id int64, name, fullName string) error {
	return execOne(ctx, r.db, "UPDATE roles SET name = $1, full_name = $2 WHERE id = $3", name, fullName, id)
}

// DeleteRole 删除角色
func (r *PostgresRolesRepository) DeleteRole(ctx context.Context, id int64) error {
	return execOne(ctx, r.db, "DELETE FROM roles WHERE id = $1", id)
}
