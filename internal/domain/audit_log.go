package domain

import "time"

// AuditLogType 固定的审计动作
type AuditLogType string

const (
	AuditCreateAdminAccount AuditLogType = "CREATE_ADMIN_ACCOUNT"
	AuditUpdateAdminAccount AuditLogType = "UPDATE_ADMIN_ACCOUNT"
	AuditDeleteAdminAccount AuditLogType = "DELETE_ADMIN_ACCOUNT"
	AuditCreateStaffAccount AuditLogType = "CREATE_STAFF_ACCOUNT"
	AuditUpdateStaffAccount AuditLogType = "UPDATE_STAFF_ACCOUNT"
	AuditDeleteStaffAccount AuditLogType = "DELETE_STAFF_ACCOUNT"
	AuditCreateBranch       AuditLogType = "CREATE_BRANCH"
	AuditUpdateBranch       AuditLogType = "UPDATE_BRANCH"
	AuditDeleteBranch       AuditLogType = "DELETE_BRANCH"
	AuditCreateRole         AuditLogType = "CREATE_ROLE"
	AuditUpdateRole         AuditLogType = "UPDATE_ROLE"
	AuditDeleteRole         AuditLogType = "DELETE_ROLE"
)

var auditLogTypes = map[AuditLogType]bool{
	AuditCreateAdminAccount: true,
	AuditUpdateAdminAccount: true,
	AuditDeleteAdminAccount: true,
	AuditCreateStaffAccount: true,
	AuditUpdateStaffAccount: true,
	AuditDeleteStaffAccount: true,
	AuditCreateBranch:       true,
	AuditUpdateBranch:       true,
	AuditDeleteBranch:       true,
	AuditCreateRole:         true,
	AuditUpdateRole:         true,
	AuditDeleteRole:         true,
}

// Valid 是否为已知动作
func (t AuditLogType) Valid() bool { return auditLogTypes[t] }

// 被操作对象类型
const (
	TargetAccount = "ACCOUNT"
	TargetBranch  = "BRANCH"
	TargetRole    = "ROLE"
)

// AuditLogEntry 审计日志（对应 audit_logs 表，只追加不修改）
// ActorID / ActedOnID 为软引用，可能指向已删除账户
type AuditLogEntry struct {
	ID          int64          `json:"id"`
	Type        AuditLogType   `json:"type"`
	ActorID     *int64         `json:"actor_id"`
	ActedOnID   *int64         `json:"acted_on_id,omitempty"`
	ActedOnType *string        `json:"acted_on_type,omitempty"`
	Message     string         `json:"message"`
	Metadata    map[string]any `json:"metadata"`
	CreatedAt   time.Time      `json:"created_at"`
}

// AccountAuditType 按账户类型选择审计动作
func AccountAuditType(kind AccountKind, verb string) AuditLogType {
	suffix := "_ADMIN_ACCOUNT"
	if kind == AccountKindStaff {
		suffix = "_STAFF_ACCOUNT"
	}
	return AuditLogType(verb + suffix)
}
