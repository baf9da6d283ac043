package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"staff-portal/internal/domain"
)

// PostgresAuditLogsRepository 审计日志Repository实现
type PostgresAuditLogsRepository struct {
	db *sql.DB
}

// NewPostgresAuditLogsRepository 创建审计日志Repository
func NewPostgresAuditLogsRepository(db *sql.DB) *PostgresAuditLogsRepository {
	return &PostgresAuditLogsRepository{db: db}
}

var _ AuditLogsRepository = (*PostgresAuditLogsRepository)(nil)

var auditSortColumns = map[string]string{
	"createdAt":  "created_at",
	"created_at": "created_at",
	"type":       "type",
	"actorId":    "actor_id",
	"actor_id":   "actor_id",
}

func auditPredicate(f AuditLogFilters) *predicate {
	p := &predicate{}
	if f.ActorID != nil {
		p.add("actor_id = $%d", *f.ActorID)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		p.add("(message ILIKE $%[1]d ESCAPE '\\' OR type ILIKE $%[1]d ESCAPE '\\')", likePattern(s))
	}
	if f.Type != "" {
		p.add("type = $%d", string(f.Type))
	}
	if f.TargetType != "" {
		p.add("acted_on_type = $%d", f.TargetType)
	}
	return p
}

// CreateAuditLog 写入审计日志
func (r *PostgresAuditLogsRepository) CreateAuditLog(ctx context.Context, entry *domain.AuditLogEntry) error {
	if entry == nil {
		return fmt.Errorf("audit entry is required")
	}
	metadata := entry.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal audit metadata: %w", err)
	}

	err = r.db.QueryRowContext(ctx, `
		INSERT INTO audit_logs (type, actor_id, acted_on_id, acted_on_type, message, metadata)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb)
		RETURNING id, created_at
	`,
		string(entry.Type),
		entry.ActorID,
		entry.ActedOnID,
		entry.ActedOnType,
		entry.Message,
		string(raw),
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

// ListAuditLogs 分页查询审计日志，COUNT 与列表共用同一过滤条件
func (r *PostgresAuditLogsRepository) ListAuditLogs(ctx context.Context, filters AuditLogFilters, sort Sort, page, size int) ([]*domain.AuditLogEntry, int, error) {
	if size <= 0 {
		size = 10
	}
	p := auditPredicate(filters)

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_logs"+p.where(), p.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}
	if total == 0 {
		return []*domain.AuditLogEntry{}, 0, nil
	}

	page = domain.ClampPage(page, total, size)
	limit, args := p.page(size, (page-1)*size)
	query := `
		SELECT id, type, actor_id, acted_on_id, acted_on_type, message, metadata::text, created_at
		FROM audit_logs` + p.where() +
		orderBy(auditSortColumns, sort.Key, "created_at", sort.desc(), "id") + limit

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	entries := []*domain.AuditLogEntry{}
	for rows.Next() {
		var e domain.AuditLogEntry
		var typ string
		var actorID, actedOnID sql.NullInt64
		var actedOnType, metadata sql.NullString
		if err := rows.Scan(&e.ID, &typ, &actorID, &actedOnID, &actedOnType, &e.Message, &metadata, &e.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan audit log: %w", err)
		}
		e.Type = domain.AuditLogType(typ)
		e.ActorID = nullInt64Ptr(actorID)
		e.ActedOnID = nullInt64Ptr(actedOnID)
		e.ActedOnType = nullStringPtr(actedOnType)
		e.Metadata = map[string]any{}
		if metadata.Valid && metadata.String != "" {
			_ = json.Unmarshal([]byte(metadata.String), &e.Metadata)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate audit logs: %w", err)
	}
	return entries, total, nil
}
