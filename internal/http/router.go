package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	r := &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
	r.Handle("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return r
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

// HandleHandler 支持 http.Handler 接口
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterAccountRoutes 管理员/员工账户
func (r *Router) RegisterAccountRoutes(h *AccountsHandler) {
	r.HandleHandler(adminsPath, h)
	r.HandleHandler(adminsPath+"/", h)
	r.HandleHandler(staffPath, h)
	r.HandleHandler(staffPath+"/", h)
	r.HandleHandler(accountsPath, h)
}

// RegisterAuditLogRoutes 审计日志
func (r *Router) RegisterAuditLogRoutes(h *AuditLogsHandler) {
	r.HandleHandler(auditLogsPath, h)
}

// RegisterReferenceRoutes 分店/员工角色
func (r *Router) RegisterReferenceRoutes(h *ReferenceHandler) {
	r.HandleHandler(branchesPath, h)
	r.HandleHandler(branchesPath+"/", h)
	r.HandleHandler(rolesPath, h)
	r.HandleHandler(rolesPath+"/", h)
}
