package service

// Result 统一返回结构 {data, error, message}
// 终态下 data 与 error 恰有一个非空；部分成功时 data 为空、error 为空、message 为告警
type Result[T any] struct {
	Data    *T     `json:"data"`
	Error   string `json:"error"`
	Message string `json:"message"`

	err error
}

// Empty 无返回数据的操作
type Empty struct{}

// Err 返回原始错误，可用 errors.Is 判断错误类型
func (r Result[T]) Err() error { return r.err }

// Succeeded 是否成功（含部分成功）
func (r Result[T]) Succeeded() bool { return r.err == nil }

// IsWarning 是否为部分成功
func (r Result[T]) IsWarning() bool { return r.err == nil && r.Data == nil }

// Ok 成功结果
func Ok[T any](data *T, message string) Result[T] {
	return Result[T]{Data: data, Message: message}
}

// Fail 失败结果；Error 为 err 的文本
func Fail[T any](err error, message string) Result[T] {
	return Result[T]{Error: err.Error(), Message: message, err: err}
}

// Warn 部分成功：data 与 error 均为空，message 为告警
func Warn[T any](message string) Result[T] {
	return Result[T]{Message: message}
}
