package httpapi

import (
	"net/http"
	"strings"

	"staff-portal/internal/service"

	"go.uber.org/zap"
)

const (
	branchesPath = "/admin/api/v1/branches"
	rolesPath    = "/admin/api/v1/roles"
)

// ReferenceHandler 分店/员工角色 Handler
type ReferenceHandler struct {
	reference service.ReferenceService
	logger    *zap.Logger
}

// NewReferenceHandler 创建分店/角色 Handler
func NewReferenceHandler(reference service.ReferenceService, logger *zap.Logger) *ReferenceHandler {
	return &ReferenceHandler{reference: reference, logger: logger}
}

type referenceBody struct {
	Name     string `json:"name"`
	FullName string `json:"full_name"`
}

// ServeHTTP 实现 http.Handler 接口
func (h *ReferenceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var base string
	switch {
	case strings.HasPrefix(r.URL.Path, branchesPath):
		base = branchesPath
	case strings.HasPrefix(r.URL.Path, rolesPath):
		base = rolesPath
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	isRole := base == rolesPath

	// 集合路径
	if r.URL.Path == base {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r, isRole)
		case http.MethodPost:
			h.create(w, r, isRole)
		default:
			methodNotAllowed(w)
		}
		return
	}

	// 单个资源路径
	id, ok := pathID(r.URL.Path, base+"/")
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	switch r.Method {
	case http.MethodPut:
		h.update(w, r, id, isRole)
	case http.MethodDelete:
		h.delete(w, r, id, isRole)
	default:
		methodNotAllowed(w)
	}
}

func (h *ReferenceHandler) list(w http.ResponseWriter, r *http.Request, isRole bool) {
	q := r.URL.Query()
	req := service.ListReferenceRequest{
		Search:   q.Get("search"),
		Page:     parseInt(q.Get("page"), 1),
		PageSize: parseInt(firstNonEmpty(q.Get("page_size"), q.Get("size")), 0),
	}
	if isRole {
		writeResult(w, http.StatusOK, h.reference.ListRoles(r.Context(), req))
		return
	}
	writeResult(w, http.StatusOK, h.reference.ListBranches(r.Context(), req))
}

func (h *ReferenceHandler) create(w http.ResponseWriter, r *http.Request, isRole bool) {
	actorID, body, ok := h.parseWrite(w, r)
	if !ok {
		return
	}
	if isRole {
		writeResult(w, http.StatusCreated, h.reference.CreateRole(r.Context(), body.Name, body.FullName, actorID))
		return
	}
	writeResult(w, http.StatusCreated, h.reference.CreateBranch(r.Context(), body.Name, actorID))
}

func (h *ReferenceHandler) update(w http.ResponseWriter, r *http.Request, id int64, isRole bool) {
	actorID, body, ok := h.parseWrite(w, r)
	if !ok {
		return
	}
	if isRole {
		writeResult(w, http.StatusOK, h.reference.UpdateRole(r.Context(), id, body.Name, body.FullName, actorID))
		return
	}
	writeResult(w, http.StatusOK, h.reference.UpdateBranch(r.Context(), id, body.Name, actorID))
}

func (h *ReferenceHandler) delete(w http.ResponseWriter, r *http.Request, id int64, isRole bool) {
	actorID, err := actorFromReq(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	if isRole {
		writeResult(w, http.StatusOK, h.reference.DeleteRole(r.Context(), id, actorID))
		return
	}
	writeResult(w, http.StatusOK, h.reference.DeleteBranch(r.Context(), id, actorID))
}

func (h *ReferenceHandler) parseWrite(w http.ResponseWriter, r *http.Request) (int64, referenceBody, bool) {
	var body referenceBody
	actorID, err := actorFromReq(r)
	if err != nil {
		badRequest(w, err.Error())
		return 0, body, false
	}
	if err := readBodyJSON(r, maxBodyBytes, &body); err != nil {
		badRequest(w, "invalid json body")
		return 0, body, false
	}
	return actorID, body, true
}
