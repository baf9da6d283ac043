package identity

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// GoTrueClient GoTrue（Supabase Auth）admin API 客户端
// 使用 service role key 调用 /auth/v1/admin/users
type GoTrueClient struct {
	// http 用于幂等请求（PUT/DELETE），失败自动重试
	http *resty.Client
	// create 不重试：重复 POST 可能创建出第二个身份或返回 email 冲突
	create *resty.Client
	logger *zap.Logger
}

// NewGoTrueClient 创建 GoTrue 客户端
func NewGoTrueClient(baseURL, serviceKey string, timeout time.Duration, retryCount int, logger *zap.Logger) *GoTrueClient {
	newClient := func(retries int) *resty.Client {
		return resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(timeout).
			SetRetryCount(retries).
			SetRetryWaitTime(200 * time.Millisecond).
			SetRetryMaxWaitTime(2 * time.Second).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json").
			SetHeader("apikey", serviceKey).
			SetAuthToken(serviceKey)
	}
	return &GoTrueClient{
		http:   newClient(retryCount),
		create: newClient(0),
		logger: logger,
	}
}

var _ Provider = (*GoTrueClient)(nil)

type adminUserRequest struct {
	Email        string   `json:"email,omitempty"`
	Password     string   `json:"password,omitempty"`
	EmailConfirm bool     `json:"email_confirm,omitempty"`
	UserMetadata Metadata `json:"user_metadata,omitempty"`
}

type adminUserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// errorResponse GoTrue 错误体（不同版本字段不同）
type errorResponse struct {
	Code      any    `json:"code"`
	ErrorCode string `json:"error_code"`
	Msg       string `json:"msg"`
	Message   string `json:"message"`
	Error     string `json:"error"`
	ErrorDesc string `json:"error_description"`
}

func (e *errorResponse) text() string {
	for _, s := range []string{e.Msg, e.Message, e.ErrorDesc, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

func usersPath(identityID string) string {
	return "/auth/v1/admin/users/" + url.PathEscape(identityID)
}

// CreateIdentity 创建已确认邮箱的身份
func (c *GoTrueClient) CreateIdentity(ctx context.Context, email, password string, md Metadata) (string, error) {
	var result adminUserResponse
	var apiErr errorResponse
	resp, err := c.create.R().
		SetContext(ctx).
		SetBody(adminUserRequest{
			Email:        email,
			Password:     password,
			EmailConfirm: true,
			UserMetadata: md,
		}).
		SetResult(&result).
		SetError(&apiErr).
		Post("/auth/v1/admin/users")
	if err != nil {
		c.logger.Error("Identity provider call failed", zap.String("op", "create"), zap.Error(err))
		return "", fmt.Errorf("failed to call identity provider: %w", err)
	}

	if resp.IsError() {
		if isEmailTaken(resp.StatusCode(), &apiErr) {
			return "", fmt.Errorf("%w: %s", ErrEmailTaken, email)
		}
		return "", statusError("create identity", resp.StatusCode(), &apiErr)
	}
	if result.ID == "" {
		return "", fmt.Errorf("identity provider returned no id")
	}

	c.logger.Debug("Identity created", zap.String("identity_id", result.ID))
	return result.ID, nil
}

// UpdateIdentityMetadata 覆盖 user_metadata
func (c *GoTrueClient) UpdateIdentityMetadata(ctx context.Context, identityID string, md Metadata) error {
	var apiErr errorResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(adminUserRequest{UserMetadata: md}).
		SetError(&apiErr).
		Put(usersPath(identityID))
	if err != nil {
		c.logger.Error("Identity provider call failed", zap.String("op", "update_metadata"), zap.Error(err))
		return fmt.Errorf("failed to call identity provider: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, identityID)
	}
	if resp.IsError() {
		return statusError("update identity metadata", resp.StatusCode(), &apiErr)
	}
	return nil
}

// DeleteIdentity 删除身份；404 视为已删除
func (c *GoTrueClient) DeleteIdentity(ctx context.Context, identityID string) error {
	var apiErr errorResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetError(&apiErr).
		Delete(usersPath(identityID))
	if err != nil {
		c.logger.Error("Identity provider call failed", zap.String("op", "delete"), zap.Error(err))
		return fmt.Errorf("failed to call identity provider: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		c.logger.Debug("Identity already absent", zap.String("identity_id", identityID))
		return nil
	}
	if resp.IsError() {
		return statusError("delete identity", resp.StatusCode(), &apiErr)
	}
	return nil
}

func isEmailTaken(status int, apiErr *errorResponse) bool {
	if apiErr.ErrorCode == "email_exists" || apiErr.ErrorCode == "user_already_exists" {
		return true
	}
	if status != http.StatusUnprocessableEntity && status != http.StatusConflict && status != http.StatusBadRequest {
		return false
	}
	return strings.Contains(strings.ToLower(apiErr.text()), "already")
}

func statusError(op string, status int, apiErr *errorResponse) error {
	if msg := apiErr.text(); msg != "" {
		return fmt.Errorf("%s: identity provider returned %d: %s", op, status, msg)
	}
	return fmt.Errorf("%s: identity provider returned %d", op, status)
}
