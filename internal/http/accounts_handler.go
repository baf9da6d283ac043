package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"staff-portal/internal/domain"
	"staff-portal/internal/service"

	"go.uber.org/zap"
)

const (
	adminsPath   = "/admin/api/v1/admins"
	staffPath    = "/admin/api/v1/staff"
	accountsPath = "/admin/api/v1/accounts/"
)

// AccountsHandler 管理员/员工账户 Handler
type AccountsHandler struct {
	provisioning service.ProvisioningService
	queries      service.AccountQueryService
	logger       *zap.Logger
}

// NewAccountsHandler 创建账户 Handler
func NewAccountsHandler(provisioning service.ProvisioningService, queries service.AccountQueryService, logger *zap.Logger) *AccountsHandler {
	return &AccountsHandler{
		provisioning: provisioning,
		queries:      queries,
		logger:       logger,
	}
}

// ServeHTTP 实现 http.Handler 接口
func (h *AccountsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case adminsPath, staffPath:
		kind := domain.AccountKindAdmin
		if r.URL.Path == staffPath {
			kind = domain.AccountKindStaff
		}
		switch r.Method {
		case http.MethodGet:
			h.ListAccounts(w, r, kind)
		case http.MethodPost:
			h.CreateAccount(w, r, kind)
		default:
			methodNotAllowed(w)
		}
		return
	case adminsPath + "/export", staffPath + "/export":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		kind := domain.AccountKindAdmin
		if strings.HasPrefix(r.URL.Path, staffPath) {
			kind = domain.AccountKindStaff
		}
		h.ExportAccounts(w, r, kind)
		return
	}

	if strings.HasPrefix(r.URL.Path, accountsPath) {
		id, ok := pathID(r.URL.Path, accountsPath)
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		switch r.Method {
		case http.MethodPut:
			h.UpdateAccount(w, r, id)
		case http.MethodDelete:
			h.DeleteAccount(w, r, id)
		default:
			methodNotAllowed(w)
		}
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

// createAccountBody 创建账户请求体（staff 字段仅 STAFF 使用）
type createAccountBody struct {
	Email             string  `json:"email"`
	Password          string  `json:"password"`
	FullName          string  `json:"full_name"`
	ProfilePictureURL *string `json:"profile_picture_url"`
	BranchID          int64   `json:"branch_id"`
	StaffRoleID       int64   `json:"staff_role_id"`
	PhoneNumber       *string `json:"phone_number"`
	Nationality       *string `json:"nationality"`
}

// CreateAccount 创建管理员或员工
func (h *AccountsHandler) CreateAccount(w http.ResponseWriter, r *http.Request, kind domain.AccountKind) {
	ctx := r.Context()

	// 1. 参数解析
	actorID, err := actorFromReq(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var body createAccountBody
	if err := readBodyJSON(r, maxBodyBytes, &body); err != nil {
		badRequest(w, "invalid json body")
		return
	}
	idemKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))

	// 2. 调用 Service
	var res service.Result[domain.Account]
	if kind == domain.AccountKindStaff {
		res = h.provisioning.CreateStaffAccount(ctx, service.CreateStaffAccountRequest{
			Email:             body.Email,
			Password:          body.Password,
			FullName:          body.FullName,
			ProfilePictureURL: body.ProfilePictureURL,
			BranchID:          body.BranchID,
			StaffRoleID:       body.StaffRoleID,
			PhoneNumber:       body.PhoneNumber,
			Nationality:       body.Nationality,
			ActorID:           actorID,
			IdempotencyKey:    idemKey,
		})
	} else {
		if body.BranchID != 0 || body.StaffRoleID != 0 {
			badRequest(w, "admin accounts have no staff attributes")
			return
		}
		res = h.provisioning.CreateAdminAccount(ctx, service.CreateAdminAccountRequest{
			Email:             body.Email,
			Password:          body.Password,
			FullName:          body.FullName,
			ProfilePictureURL: body.ProfilePictureURL,
			ActorID:           actorID,
			IdempotencyKey:    idemKey,
		})
	}

	// 3. 返回响应
	writeResult(w, http.StatusCreated, res)
}

// UpdateAccount 部分更新账户
func (h *AccountsHandler) UpdateAccount(w http.ResponseWriter, r *http.Request, id int64) {
	actorID, err := actorFromReq(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var patch domain.AccountPatch
	if err := readBodyJSON(r, maxBodyBytes, &patch); err != nil {
		badRequest(w, "invalid json body")
		return
	}
	writeResult(w, http.StatusOK, h.provisioning.UpdateAccount(r.Context(), id, patch, actorID))
}

// DeleteAccount 删除账户
func (h *AccountsHandler) DeleteAccount(w http.ResponseWriter, r *http.Request, id int64) {
	actorID, err := actorFromReq(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	writeResult(w, http.StatusOK, h.provisioning.DeleteAccount(r.Context(), id, actorID))
}

func listRequestFromQuery(r *http.Request, kind domain.AccountKind) (service.ListAccountsRequest, error) {
	q := r.URL.Query()
	req := service.ListAccountsRequest{
		Kind:        string(kind),
		Page:        parseInt(q.Get("page"), 1),
		PageSize:    parseInt(firstNonEmpty(q.Get("page_size"), q.Get("size")), 0),
		Search:      q.Get("search"),
		SortKey:     q.Get("sort"),
		SortDir:     q.Get("order"),
		Nationality: q.Get("nationality"),
	}
	var err error
	if req.RoleIDs, err = parseIDList(q["role_ids"]); err != nil {
		return req, fmt.Errorf("role_ids: %w", err)
	}
	if req.BranchIDs, err = parseIDList(q["branch_ids"]); err != nil {
		return req, fmt.Errorf("branch_ids: %w", err)
	}
	if req.CreatedByIDs, err = parseIDList(q["created_by_ids"]); err != nil {
		return req, fmt.Errorf("created_by_ids: %w", err)
	}
	return req, nil
}

// ListAccounts 分页查询账户
func (h *AccountsHandler) ListAccounts(w http.ResponseWriter, r *http.Request, kind domain.AccountKind) {
	req, err := listRequestFromQuery(r, kind)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	writeResult(w, http.StatusOK, h.queries.ListAccounts(r.Context(), req))
}

// ExportAccounts 导出 Excel
func (h *AccountsHandler) ExportAccounts(w http.ResponseWriter, r *http.Request, kind domain.AccountKind) {
	req, err := listRequestFromQuery(r, kind)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	res := h.queries.ExportAccounts(r.Context(), req)
	if res.Err() != nil {
		writeResult(w, http.StatusOK, res)
		return
	}

	file := res.Data
	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(file.Content); err != nil {
		h.logger.Warn("Failed to write export", zap.Error(err))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
