// Package identity 外部身份服务客户端（登录凭证与身份元数据）
package identity

import (
	"context"
	"errors"
	"strconv"
)

var (
	// ErrNotFound 身份不存在
	ErrNotFound = errors.New("identity not found")
	// ErrEmailTaken 邮箱已被注册（邮箱唯一性只由身份服务保证）
	ErrEmailTaken = errors.New("email already registered")
)

// 身份元数据 key
const (
	MetaRole      = "role"
	MetaFullName  = "full_name"
	MetaAccountID = "account_id"
)

// Metadata 身份上的附加信息（user_metadata）
type Metadata map[string]any

// NewMetadata 创建身份元数据；accountID 为 0 时不写入
func NewMetadata(role, fullName string, accountID int64) Metadata {
	md := Metadata{
		MetaRole:     role,
		MetaFullName: fullName,
	}
	if accountID != 0 {
		md[MetaAccountID] = strconv.FormatInt(accountID, 10)
	}
	return md
}

// Provider 身份服务接口
type Provider interface {
	// CreateIdentity 创建登录身份，返回 identity id
	CreateIdentity(ctx context.Context, email, password string, md Metadata) (string, error)
	// UpdateIdentityMetadata 覆盖身份元数据；身份不存在返回 ErrNotFound
	UpdateIdentityMetadata(ctx context.Context, identityID string, md Metadata) error
	// DeleteIdentity 删除身份；身份已不存在视为成功
	DeleteIdentity(ctx context.Context, identityID string) error
}
