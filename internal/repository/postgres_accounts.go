package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"staff-portal/internal/domain"

	"github.com/lib/pq"
)

// PostgresAccountsRepository 账户Repository实现
type PostgresAccountsRepository struct {
	db *sql.DB
}

// NewPostgresAccountsRepository 创建账户Repository
func NewPostgresAccountsRepository(db *sql.DB) *PostgresAccountsRepository {
	return &PostgresAccountsRepository{db: db}
}

// 确保实现了接口
var _ AccountsRepository = (*PostgresAccountsRepository)(nil)

const accountColumns = `
		a.id,
		a.identity_id,
		a.email,
		a.full_name,
		a.profile_picture_url,
		a.kind,
		a.created_by,
		a.created_at,
		sp.branch_id,
		sp.staff_role_id,
		sp.phone_number,
		sp.nationality,
		b.name,
		r.name,
		c.full_name`

const accountJoins = `
		FROM accounts a
		LEFT JOIN staff_profiles sp ON sp.account_id = a.id
		LEFT JOIN branches b ON b.id = sp.branch_id
		LEFT JOIN roles r ON r.id = sp.staff_role_id
		LEFT JOIN accounts c ON c.id = a.created_by`

var accountSortColumns = map[string]string{
	"createdAt":   "a.created_at",
	"created_at":  "a.created_at",
	"fullName":    "a.full_name",
	"full_name":   "a.full_name",
	"email":       "a.email",
	"branch":      "b.name",
	"role":        "r.name",
	"createdBy":   "c.full_name",
	"created_by":  "c.full_name",
	"nationality": "sp.nationality",
}

// accountPredicate 账户过滤条件；COUNT 与列表查询共用
func accountPredicate(f AccountFilters) *predicate {
	p := &predicate{}
	if f.Kind != "" {
		p.add("a.kind = $%d", string(f.Kind))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		p.add("(a.full_name ILIKE $%[1]d ESCAPE '\\' OR a.email ILIKE $%[1]d ESCAPE '\\')", likePattern(s))
	}
	if len(f.RoleIDs) > 0 {
		p.add("sp.staff_role_id = ANY($%d)", pq.Array(f.RoleIDs))
	}
	if len(f.BranchIDs) > 0 {
		p.add("sp.branch_id = ANY($%d)", pq.Array(f.BranchIDs))
	}
	if len(f.CreatedByIDs) > 0 {
		p.add("a.created_by = ANY($%d)", pq.Array(f.CreatedByIDs))
	}
	if n := strings.TrimSpace(f.Nationality); n != "" {
		p.add("LOWER(sp.nationality) = LOWER($%d)", n)
	}
	return p
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccountItem(row rowScanner) (*domain.AccountListItem, error) {
	var item domain.AccountListItem
	var identityID, pictureURL, phone, nationality, branchName, roleName, creatorName sql.NullString
	var createdBy, branchID, roleID sql.NullInt64
	var kind string

	err := row.Scan(
		&item.ID,
		&identityID,
		&item.Email,
		&item.FullName,
		&pictureURL,
		&kind,
		&createdBy,
		&item.CreatedAt,
		&branchID,
		&roleID,
		&phone,
		&nationality,
		&branchName,
		&roleName,
		&creatorName,
	)
	if err != nil {
		return nil, err
	}

	item.Kind = domain.AccountKind(kind)
	item.IdentityID = nullStringPtr(identityID)
	item.ProfilePictureURL = nullStringPtr(pictureURL)
	item.CreatedBy = nullInt64Ptr(createdBy)
	if branchID.Valid && roleID.Valid {
		item.Staff = &domain.StaffProfile{
			BranchID:    branchID.Int64,
			StaffRoleID: roleID.Int64,
			PhoneNumber: nullStringPtr(phone),
			Nationality: nullStringPtr(nationality),
		}
	}
	item.BranchName = nullStringPtr(branchName)
	item.RoleName = nullStringPtr(roleName)
	item.CreatorName = nullStringPtr(creatorName)
	return &item, nil
}

// GetAccount 按ID获取账户（含 STAFF 扩展信息）
func (r *PostgresAccountsRepository) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	query := "SELECT" + accountColumns + accountJoins + " WHERE a.id = $1"
	item, err := scanAccountItem(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapPQError(err)
	}
	return &item.Account, nil
}

// ListAccounts 分页查询账户
// 页码超过最后一页时返回最后一页，保证 total == 0 当且仅当 rows 为空
func (r *PostgresAccountsRepository) ListAccounts(ctx context.Context, filters AccountFilters, sort Sort, page, size int) ([]*domain.AccountListItem, int, error) {
	if size <= 0 {
		size = 10
	}
	p := accountPredicate(filters)

	// 1. 统计总数
	var total int
	countQuery := "SELECT COUNT(*)" + accountJoins + p.where()
	if err := r.db.QueryRowContext(ctx, countQuery, p.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count accounts: %w", err)
	}
	if total == 0 {
		return []*domain.AccountListItem{}, 0, nil
	}

	// 2. 分页查询
	page = domain.ClampPage(page, total, size)
	limit, args := p.page(size, (page-1)*size)
	query := "SELECT" + accountColumns + accountJoins + p.where() +
		orderBy(accountSortColumns, sort.Key, "a.created_at", sort.desc(), "a.id") + limit

	items, err := r.queryItems(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ExportAccounts 导出查询，与 ListAccounts 使用同一过滤条件
func (r *PostgresAccountsRepository) ExportAccounts(ctx context.Context, filters AccountFilters, sort Sort, limit int) ([]*domain.AccountListItem, error) {
	p := accountPredicate(filters)
	pageClause, args := p.page(limit, 0)
	query := "SELECT" + accountColumns + accountJoins + p.where() +
		orderBy(accountSortColumns, sort.Key, "a.created_at", sort.desc(), "a.id") + pageClause
	return r.queryItems(ctx, query, args...)
}

func (r *PostgresAccountsRepository) queryItems(ctx context.Context, query string, args ...any) ([]*domain.AccountListItem, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	items := []*domain.AccountListItem{}
	for rows.Next() {
		item, err := scanAccountItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}
	return items, nil
}

// CreateAccount 创建账户
// STAFF 的 staff_profiles 行与 accounts 行在同一事务中写入，任一失败整体回滚
func (r *PostgresAccountsRepository) CreateAccount(ctx context.Context, account *domain.Account) error {
	if account == nil {
		return fmt.Errorf("account is required")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO accounts (identity_id, email, full_name, profile_picture_url, kind, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`,
		account.IdentityID,
		account.Email,
		account.FullName,
		account.ProfilePictureURL,
		string(account.Kind),
		account.CreatedBy,
	).Scan(&account.ID, &account.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", mapPQError(err))
	}

	if account.Staff != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO staff_profiles (account_id, branch_id, staff_role_id, phone_number, nationality)
			VALUES ($1, $2, $3, $4, $5)
		`,
			account.ID,
			account.Staff.BranchID,
			account.Staff.StaffRoleID,
			account.Staff.PhoneNumber,
			account.Staff.Nationality,
		)
		if err != nil {
			return fmt.Errorf("failed to insert staff profile: %w", mapPQError(err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit account: %w", err)
	}
	return nil
}

// UpdateAccount 部分更新；accounts 与 staff_profiles 在同一事务中更新
func (r *PostgresAccountsRepository) UpdateAccount(ctx context.Context, id int64, patch domain.AccountPatch) error {
	if patch.IsEmpty() {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if patch.HasAccountFields() {
		set, args := buildSet(
			setField{"full_name", patch.FullName != nil, patch.FullName},
			setField{"profile_picture_url", patch.ProfilePictureURL != nil, patch.ProfilePictureURL},
		)
		args = append(args, id)
		query := fmt.Sprintf("UPDATE accounts SET %s WHERE id = $%d", set, len(args))
		if err := execOne(ctx, tx, query, args...); err != nil {
			return fmt.Errorf("failed to update account: %w", err)
		}
	}

	if patch.HasStaffFields() {
		set, args := buildSet(
			setField{"branch_id", patch.BranchID != nil, patch.BranchID},
			setField{"staff_role_id", patch.StaffRoleID != nil, patch.StaffRoleID},
			setField{"phone_number", patch.PhoneNumber != nil, patch.PhoneNumber},
			setField{"nationality", patch.Nationality != nil, patch.Nationality},
		)
		args = append(args, id)
		query := fmt.Sprintf("UPDATE staff_profiles SET %s WHERE account_id = $%d", set, len(args))
		if err := execOne(ctx, tx, query, args...); err != nil {
			return fmt.Errorf("failed to update staff profile: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit account update: %w", err)
	}
	return nil
}

// DeleteAccount 删除账户；staff_profiles 由外键 ON DELETE CASCADE 删除
func (r *PostgresAccountsRepository) DeleteAccount(ctx context.Context, id int64) error {
	if err := execOne(ctx, r.db, "DELETE FROM accounts WHERE id = $1", id); err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	return nil
}

type setField struct {
	column  string
	present bool
	value   any
}

func buildSet(fields ...setField) (string, []any) {
	var parts []string
	var args []any
	for _, f := range fields {
		if !f.present {
			continue
		}
		args = append(args, f.value)
		parts = append(parts, fmt.Sprintf("%s = $%d", f.column, len(args)))
	}
	return strings.Join(parts, ", "), args
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// execOne 执行写操作，影响 0 行时返回 ErrNotFound
func execOne(ctx context.Context, db execer, query string, args ...any) error {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapPQError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
