package domain

import "time"

// Branch 分店（staffCount 为派生字段）
type Branch struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	StaffCount int       `json:"staff_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// Role 员工角色（staffCount 为派生字段）
type Role struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	FullName   string    `json:"full_name"`
	StaffCount int       `json:"staff_count"`
	CreatedAt  time.Time `json:"created_at"`
}
