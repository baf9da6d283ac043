package httpapi

import (
	"errors"
	"net/http"

	"staff-portal/internal/service"
)

// statusFor 错误类型 -> HTTP 状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrReferentialGuard):
		return http.StatusConflict
	case errors.Is(err, service.ErrIdentityProvider), errors.Is(err, service.ErrMetadataSync):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeResult 写出 {data, error, message}；失败时按错误类型选择状态码
func writeResult[T any](w http.ResponseWriter, okStatus int, res service.Result[T]) {
	status := okStatus
	if err := res.Err(); err != nil {
		status = statusFor(err)
	}
	writeJSON(w, status, res)
}

// badRequest 请求本身无法解析（未进入 service）
func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, service.Result[service.Empty]{
		Error:   service.ErrValidation.Error() + ": " + msg,
		Message: "Invalid request",
	})
}

func methodNotAllowed(w http.ResponseWriter) {
	w.WriteHeader(http.StatusMethodNotAllowed)
}
