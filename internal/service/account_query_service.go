package service

import (
	"context"
	"strings"

	"staff-portal/internal/domain"
	"staff-portal/internal/repository"

	"go.uber.org/zap"
)

// AccountQueryService 账户列表查询与导出
type AccountQueryService interface {
	ListAccounts(ctx context.Context, req ListAccountsRequest) Result[domain.Page[*domain.AccountListItem]]
	ExportAccounts(ctx context.Context, req ListAccountsRequest) Result[ExportFile]
}

type accountQueryService struct {
	repo          repository.AccountsRepository
	pages         PageOptions
	exportMaxRows int
	logger        *zap.Logger
}

// NewAccountQueryService 创建 AccountQueryService
func NewAccountQueryService(repo repository.AccountsRepository, pages PageOptions, exportMaxRows int, logger *zap.Logger) AccountQueryService {
	if exportMaxRows <= 0 {
		exportMaxRows = 5000
	}
	return &accountQueryService{
		repo:          repo,
		pages:         pages,
		exportMaxRows: exportMaxRows,
		logger:        logger,
	}
}

// ListAccountsRequest 账户列表请求（导出时忽略 Page/PageSize）
type ListAccountsRequest struct {
	Kind     string // 必填：ADMIN / STAFF
	Page     int
	PageSize int
	Search   string // fullName OR email
	SortKey  string // 未知值回退到 createdAt
	SortDir  string // 默认 desc

	RoleIDs      []int64
	BranchIDs    []int64
	CreatedByIDs []int64
	Nationality  string
}

// ExportFile 导出文件
type ExportFile struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Content     []byte `json:"-"`
	Rows        int    `json:"rows"`
}

func (req ListAccountsRequest) filters(kind domain.AccountKind) repository.AccountFilters {
	return repository.AccountFilters{
		Kind:         kind,
		Search:       strings.TrimSpace(req.Search),
		RoleIDs:      req.RoleIDs,
		BranchIDs:    req.BranchIDs,
		CreatedByIDs: req.CreatedByIDs,
		Nationality:  strings.TrimSpace(req.Nationality),
	}
}

func (req ListAccountsRequest) sort() repository.Sort {
	return repository.Sort{Key: req.SortKey, Direction: domain.ParseSortDirection(req.SortDir)}
}

func (s *accountQueryService) ListAccounts(ctx context.Context, req ListAccountsRequest) Result[domain.Page[*domain.AccountListItem]] {
	kind, ok := domain.ParseAccountKind(req.Kind)
	if !ok {
		return Fail[domain.Page[*domain.AccountListItem]](newError(ErrValidation, "unknown account kind %q", req.Kind), "Invalid filter")
	}

	page, size := s.pages.normalize(req.Page, req.PageSize)
	rows, total, err := s.repo.ListAccounts(ctx, req.filters(kind), req.sort(), page, size)
	if err != nil {
		s.logger.Error("Failed to list accounts", zap.String("kind", string(kind)), zap.Error(err))
		return Fail[domain.Page[*domain.AccountListItem]](wrapError(ErrProfileStore, err), "Failed to load accounts")
	}

	return Ok(&domain.Page[*domain.AccountListItem]{
		Rows:       rows,
		TotalCount: total,
		PageCount:  domain.PageCount(total, size),
		Page:       domain.ClampPage(page, total, size),
		PageSize:   size,
	}, "")
}

// ExportAccounts 按列表过滤条件导出全部结果（最多 exportMaxRows 行）
func (s *accountQueryService) ExportAccounts(ctx context.Context, req ListAccountsRequest) Result[ExportFile] {
	kind, ok := domain.ParseAccountKind(req.Kind)
	if !ok {
		return Fail[ExportFile](newError(ErrValidation, "unknown account kind %q", req.Kind), "Invalid filter")
	}

	rows, err := s.repo.ExportAccounts(ctx, req.filters(kind), req.sort(), s.exportMaxRows)
	if err != nil {
		s.logger.Error("Failed to export accounts", zap.String("kind", string(kind)), zap.Error(err))
		return Fail[ExportFile](wrapError(ErrProfileStore, err), "Failed to export accounts")
	}

	content, err := renderAccountsWorkbook(kind, rows)
	if err != nil {
		s.logger.Error("Failed to render accounts workbook", zap.Error(err))
		return Fail[ExportFile](wrapError(ErrProfileStore, err), "Failed to export accounts")
	}

	return Ok(&ExportFile{
		Filename:    strings.ToLower(string(kind)) + "_accounts.xlsx",
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Content:     content,
		Rows:        len(rows),
	}, "")
}
