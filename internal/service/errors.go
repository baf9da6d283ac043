package service

import (
	"errors"
	"fmt"
)

// 错误类型；错误文本即类型名，Result.Error 以类型名开头
var (
	ErrValidation       = errors.New("ValidationError")
	ErrIdentityProvider = errors.New("IdentityProviderError")
	ErrProfileStore     = errors.New("ProfileStoreError")
	ErrMetadataSync     = errors.New("MetadataSyncError")
	ErrNotFound         = errors.New("NotFoundError")
	ErrReferentialGuard = errors.New("ReferentialGuardError")
	ErrAuditLog         = errors.New("AuditLogError")
)

var errorKinds = []error{
	ErrValidation,
	ErrIdentityProvider,
	ErrProfileStore,
	ErrMetadataSync,
	ErrNotFound,
	ErrReferentialGuard,
	ErrAuditLog,
}

// ErrorKind 返回 err 所属的错误类型，未知时返回 nil
func ErrorKind(err error) error {
	for _, kind := range errorKinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

func newError(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

func wrapError(kind, err error) error {
	return fmt.Errorf("%w: %w", kind, err)
}
