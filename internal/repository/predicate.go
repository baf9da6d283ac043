package repository

import (
	"fmt"
	"strings"
)

// predicate WHERE 条件构造器
// 同一个 predicate 同时用于 COUNT 查询和分页查询，保证 totalCount 与 rows 使用相同过滤条件
type predicate struct {
	clauses []string
	args    []any
}

// add 追加条件；clause 中用 %[1]d 引用本次参数的占位符序号
func (p *predicate) add(clause string, arg any) {
	p.args = append(p.args, arg)
	p.clauses = append(p.clauses, fmt.Sprintf(clause, len(p.args)))
}

func (p *predicate) where() string {
	if len(p.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(p.clauses, " AND ")
}

// page 返回带 LIMIT/OFFSET 的参数副本和占位符
func (p *predicate) page(size, offset int) (string, []any) {
	args := make([]any, 0, len(p.args)+2)
	args = append(args, p.args...)
	args = append(args, size, offset)
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(p.args)+1, len(p.args)+2), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern 子串匹配；转义 LIKE 通配符，配合 ESCAPE '\' 使用
func likePattern(s string) string {
	return "%" + likeEscaper.Replace(strings.TrimSpace(s)) + "%"
}

// orderBy 白名单排序；未知 key 回退到 fallback
func orderBy(columns map[string]string, key, fallback string, desc bool, tieBreak string) string {
	col, ok := columns[key]
	if !ok {
		col = fallback
	}
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	clause := " ORDER BY " + col + " " + dir
	if tieBreak != "" && tieBreak != col {
		clause += ", " + tieBreak + " " + dir
	}
	return clause
}
