package domain

import "strings"

// SortDirection 排序方向
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// ParseSortDirection 未知值回退到 desc
func ParseSortDirection(s string) SortDirection {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "asc") || strings.EqualFold(s, "ascend") {
		return SortAsc
	}
	return SortDesc
}

// Page 分页结果
type Page[T any] struct {
	Rows       []T `json:"rows"`
	TotalCount int `json:"total_count"`
	PageCount  int `json:"page_count"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
}

// PageCount ceil(total / size)
func PageCount(total, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

// ClampPage 规范化页码：page < 1 取 1；超出最后一页时取最后一页
func ClampPage(page, total, size int) int {
	if page < 1 {
		page = 1
	}
	if last := PageCount(total, size); last > 0 && page > last {
		page = last
	}
	return page
}
