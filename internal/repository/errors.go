package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("record not found")
	// ErrReferenced 记录仍被引用（外键约束 23503）
	ErrReferenced = errors.New("record is still referenced")
	// ErrDuplicate 唯一约束冲突（23505）
	ErrDuplicate = errors.New("duplicate record")
)

// mapPQError 将 lib/pq 错误码映射为 repository 错误
func mapPQError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23503":
			return fmt.Errorf("%w: %s", ErrReferenced, pqErr.Message)
		case "23505":
			return fmt.Errorf("%w: %s", ErrDuplicate, pqErr.Message)
		}
	}
	return err
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullInt64Ptr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}
