package domain

import (
	"strings"
	"time"
)

// AccountKind 账户类型
type AccountKind string

const (
	AccountKindAdmin AccountKind = "ADMIN"
	AccountKindStaff AccountKind = "STAFF"
)

// ParseAccountKind 解析账户类型（大小写不敏感）
func ParseAccountKind(s string) (AccountKind, bool) {
	switch AccountKind(strings.ToUpper(strings.TrimSpace(s))) {
	case AccountKindAdmin:
		return AccountKindAdmin, true
	case AccountKindStaff:
		return AccountKindStaff, true
	}
	return "", false
}

// Account 账户领域模型（对应 accounts 表，STAFF 额外关联 staff_profiles）
type Account struct {
	ID                int64         `json:"id"`
	IdentityID        *string       `json:"identity_id"` // 仅在创建窗口内为 NULL
	Email             string        `json:"email"`
	FullName          string        `json:"full_name"`
	ProfilePictureURL *string       `json:"profile_picture_url,omitempty"`
	Kind              AccountKind   `json:"kind"`
	CreatedBy         *int64        `json:"created_by"`
	CreatedAt         time.Time     `json:"created_at"`
	Staff             *StaffProfile `json:"staff,omitempty"`
}

// StaffProfile STAFF 扩展信息（对应 staff_profiles 表）
type StaffProfile struct {
	BranchID    int64   `json:"branch_id"`
	StaffRoleID int64   `json:"staff_role_id"`
	PhoneNumber *string `json:"phone_number,omitempty"`
	Nationality *string `json:"nationality,omitempty"`
}

// AccountPatch 部分更新；nil 字段保持原值。email 不可通过此路径修改。
type AccountPatch struct {
	FullName          *string `json:"full_name,omitempty"`
	ProfilePictureURL *string `json:"profile_picture_url,omitempty"`
	BranchID          *int64  `json:"branch_id,omitempty"`
	StaffRoleID       *int64  `json:"staff_role_id,omitempty"`
	PhoneNumber       *string `json:"phone_number,omitempty"`
	Nationality       *string `json:"nationality,omitempty"`
}

// IsEmpty 没有任何字段需要更新
func (p AccountPatch) IsEmpty() bool {
	return !p.HasAccountFields() && !p.HasStaffFields()
}

// HasAccountFields 是否包含 accounts 表字段
func (p AccountPatch) HasAccountFields() bool {
	return p.FullName != nil || p.ProfilePictureURL != nil
}

// HasStaffFields 是否包含 staff_profiles 表字段
func (p AccountPatch) HasStaffFields() bool {
	return p.BranchID != nil || p.StaffRoleID != nil || p.PhoneNumber != nil || p.Nationality != nil
}

// ChangedFields 返回 patch 中出现的字段名（用于审计 metadata）
func (p AccountPatch) ChangedFields() []string {
	var fields []string
	if p.FullName != nil {
		fields = append(fields, "full_name")
	}
	if p.ProfilePictureURL != nil {
		fields = append(fields, "profile_picture_url")
	}
	if p.BranchID != nil {
		fields = append(fields, "branch_id")
	}
	if p.StaffRoleID != nil {
		fields = append(fields, "staff_role_id")
	}
	if p.PhoneNumber != nil {
		fields = append(fields, "phone_number")
	}
	if p.Nationality != nil {
		fields = append(fields, "nationality")
	}
	return fields
}

// Apply 将 patch 合并到账户副本上
func (p AccountPatch) Apply(a Account) Account {
	if p.FullName != nil {
		a.FullName = *p.FullName
	}
	if p.ProfilePictureURL != nil {
		a.ProfilePictureURL = p.ProfilePictureURL
	}
	if a.Staff != nil && p.HasStaffFields() {
		staff := *a.Staff
		if p.BranchID != nil {
			staff.BranchID = *p.BranchID
		}
		if p.StaffRoleID != nil {
			staff.StaffRoleID = *p.StaffRoleID
		}
		if p.PhoneNumber != nil {
			staff.PhoneNumber = p.PhoneNumber
		}
		if p.Nationality != nil {
			staff.Nationality = p.Nationality
		}
		a.Staff = &staff
	}
	return a
}

// AccountListItem 列表行：账户 + 关联的 branch/role/creator 名称
type AccountListItem struct {
	Account
	BranchName  *string `json:"branch_name,omitempty"`
	RoleName    *string `json:"role_name,omitempty"`
	CreatorName *string `json:"creator_name,omitempty"`
}
