package repository

import (
	"context"

	"staff-portal/internal/domain"
)

// AuditLogsRepository 审计日志Repository接口（只追加，不提供修改和删除）
type AuditLogsRepository interface {
	// CreateAuditLog 写入审计日志，回填 ID 和 CreatedAt
	CreateAuditLog(ctx context.Context, entry *domain.AuditLogEntry) error
	ListAuditLogs(ctx context.Context, filters AuditLogFilters, sort Sort, page, size int) ([]*domain.AuditLogEntry, int, error)
}

// AuditLogFilters 审计日志查询过滤器（AND 组合）
type AuditLogFilters struct {
	ActorID    *int64
	Search     string // 模糊搜索：message OR type
	Type       domain.AuditLogType
	TargetType string
}
