package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"staff-portal/internal/domain"
	"staff-portal/internal/service"

	"go.uber.org/zap"
)

const auditLogsPath = "/admin/api/v1/audit-logs"

// AuditLogsHandler 审计日志 Handler
type AuditLogsHandler struct {
	audit  service.AuditService
	logger *zap.Logger
}

// NewAuditLogsHandler 创建审计日志 Handler
func NewAuditLogsHandler(audit service.AuditService, logger *zap.Logger) *AuditLogsHandler {
	return &AuditLogsHandler{audit: audit, logger: logger}
}

// ServeHTTP 实现 http.Handler 接口
func (h *AuditLogsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != auditLogsPath {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	switch r.Method {
	case http.MethodGet:
		h.QueryAuditLog(w, r)
	case http.MethodPost:
		h.AppendAuditLog(w, r)
	default:
		methodNotAllowed(w)
	}
}

// QueryAuditLog 分页查询审计日志
func (h *AuditLogsHandler) QueryAuditLog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := service.QueryAuditLogRequest{
		Search:     q.Get("search"),
		Type:       q.Get("type"),
		TargetType: q.Get("acted_on_type"),
		Page:       parseInt(q.Get("page"), 1),
		PageSize:   parseInt(firstNonEmpty(q.Get("page_size"), q.Get("size")), 0),
		SortKey:    q.Get("sort"),
		SortDir:    q.Get("order"),
	}
	if raw := strings.TrimSpace(q.Get("actor_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			badRequest(w, "invalid actor_id")
			return
		}
		req.ActorID = &id
	}
	writeResult(w, http.StatusOK, h.audit.QueryAuditLog(r.Context(), req))
}

type appendAuditLogBody struct {
	Type        string         `json:"type"`
	ActedOnID   *int64         `json:"acted_on_id"`
	ActedOnType *string        `json:"acted_on_type"`
	Message     string         `json:"message"`
	Metadata    map[string]any `json:"metadata"`
}

// AppendAuditLog 追加一条审计日志；操作人取自请求头
func (h *AuditLogsHandler) AppendAuditLog(w http.ResponseWriter, r *http.Request) {
	actorID, err := actorFromReq(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var body appendAuditLogBody
	if err := readBodyJSON(r, maxBodyBytes, &body); err != nil {
		badRequest(w, "invalid json body")
		return
	}

	entry := domain.AuditLogEntry{
		Type:        domain.AuditLogType(strings.ToUpper(strings.TrimSpace(body.Type))),
		ActedOnID:   body.ActedOnID,
		ActedOnType: body.ActedOnType,
		Message:     body.Message,
		Metadata:    body.Metadata,
	}
	if actorID != 0 {
		entry.ActorID = &actorID
	}
	writeResult(w, http.StatusCreated, h.audit.AppendAuditLog(r.Context(), entry))
}
