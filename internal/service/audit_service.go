package service

import (
	"context"
	"strings"
	"time"

	"staff-portal/internal/domain"
	"staff-portal/internal/repository"

	"go.uber.org/zap"
)

// AuditService 审计日志服务
type AuditService interface {
	// Append 写入审计日志；失败只记录日志，不返回错误
	Append(ctx context.Context, entry domain.AuditLogEntry)
	// AppendAuditLog 对外写入接口（best-effort）
	AppendAuditLog(ctx context.Context, entry domain.AuditLogEntry) Result[Empty]
	QueryAuditLog(ctx context.Context, req QueryAuditLogRequest) Result[domain.Page[*domain.AuditLogEntry]]
}

type auditService struct {
	repo          repository.AuditLogsRepository
	systemActorID int64
	pages         PageOptions
	logger        *zap.Logger
}

// NewAuditService 创建 AuditService
// systemActorID: 未提供操作人时的缺省值，0 表示写入 NULL
func NewAuditService(repo repository.AuditLogsRepository, systemActorID int64, pages PageOptions, logger *zap.Logger) AuditService {
	return &auditService{
		repo:          repo,
		systemActorID: systemActorID,
		pages:         pages,
		logger:        logger,
	}
}

// QueryAuditLogRequest 审计日志查询请求
type QueryAuditLogRequest struct {
	ActorID    *int64
	Search     string
	Type       string
	TargetType string
	Page       int
	PageSize   int
	SortKey    string
	SortDir    string
}

func (s *auditService) Append(ctx context.Context, entry domain.AuditLogEntry) {
	if entry.ActorID == nil && s.systemActorID != 0 {
		actor := s.systemActorID
		entry.ActorID = &actor
	}
	if entry.Metadata == nil {
		entry.Metadata = map[string]any{}
	}
	// 与查询过滤条件一致，统一大写
	if entry.ActedOnType != nil {
		target := strings.ToUpper(strings.TrimSpace(*entry.ActedOnType))
		if target == "" {
			entry.ActedOnType = nil
		} else {
			entry.ActedOnType = &target
		}
	}

	// 审计在主操作成功之后写入，请求取消不影响审计
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := s.repo.CreateAuditLog(actx, &entry); err != nil {
		s.logger.Error("Failed to append audit log",
			zap.Error(wrapError(ErrAuditLog, err)),
			zap.String("type", string(entry.Type)),
			zap.Any("actor_id", entry.ActorID),
			zap.Any("acted_on_id", entry.ActedOnID),
			zap.String("message", entry.Message),
		)
	}
}

func (s *auditService) AppendAuditLog(ctx context.Context, entry domain.AuditLogEntry) Result[Empty] {
	if !entry.Type.Valid() {
		return Fail[Empty](newError(ErrValidation, "unknown audit log type %q", entry.Type), "Invalid audit log entry")
	}
	entry.Message = strings.TrimSpace(entry.Message)
	if entry.Message == "" {
		return Fail[Empty](newError(ErrValidation, "message is required"), "Invalid audit log entry")
	}
	entry.ID = 0
	entry.CreatedAt = time.Time{}

	s.Append(ctx, entry)
	return Ok(&Empty{}, "Audit log recorded")
}

func (s *auditService) QueryAuditLog(ctx context.Context, req QueryAuditLogRequest) Result[domain.Page[*domain.AuditLogEntry]] {
	filters := repository.AuditLogFilters{
		ActorID:    req.ActorID,
		Search:     strings.TrimSpace(req.Search),
		TargetType: strings.ToUpper(strings.TrimSpace(req.TargetType)),
	}
	if t := strings.TrimSpace(req.Type); t != "" {
		typ := domain.AuditLogType(strings.ToUpper(t))
		if !typ.Valid() {
			return Fail[domain.Page[*domain.AuditLogEntry]](newError(ErrValidation, "unknown audit log type %q", t), "Invalid filter")
		}
		filters.Type = typ
	}

	page, size := s.pages.normalize(req.Page, req.PageSize)
	sort := repository.Sort{Key: req.SortKey, Direction: domain.ParseSortDirection(req.SortDir)}
	rows, total, err := s.repo.ListAuditLogs(ctx, filters, sort, page, size)
	if err != nil {
		s.logger.Error("Failed to query audit logs", zap.Error(err))
		return Fail[domain.Page[*domain.AuditLogEntry]](wrapError(ErrProfileStore, err), "Failed to load audit logs")
	}

	return Ok(&domain.Page[*domain.AuditLogEntry]{
		Rows:       rows,
		TotalCount: total,
		PageCount:  domain.PageCount(total, size),
		Page:       domain.ClampPage(page, total, size),
		PageSize:   size,
	}, "")
}
