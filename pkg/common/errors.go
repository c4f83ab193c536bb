package common

import "errors"

var (
	// ErrNotFound 未找到错误
	ErrNotFound = errors.New("not found")

	// ErrConcurrencyConflict 乐观并发冲突，revision 已被其他写入者更新
	ErrConcurrencyConflict = errors.New("concurrency conflict")

	// ErrQuoteClosed 赔率已关闭，不允许再变更
	ErrQuoteClosed = errors.New("quote closed")

	// ErrQuoteSuspended 赔率已挂起
	ErrQuoteSuspended = errors.New("quote suspended")

	// ErrInvalidInput 无效输入错误
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoActivePolicy 没有激活的赔率策略
	ErrNoActivePolicy = errors.New("no active policy")

	// ErrInvariantViolation 数据不变式被破坏（例如同一结果存在多条 active 赔率）
	// 出现该错误说明上游数据已损坏，需要告警
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrStorageFailed 存储失败错误
	ErrStorageFailed = errors.New("storage failed")

	// ErrUnknownOutcome 未知的结果类型
	ErrUnknownOutcome = errors.New("unknown outcome type")
)

// 应用错误码
const (
	CodeStorageFailed = "STORAGE_FAILED"
)

// AppError 应用错误
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is 按错误码匹配对应的哨兵错误，让调用方用 errors.Is 判断
func (e *AppError) Is(target error) bool {
	switch e.Code {
	case CodeStorageFailed:
		return target == ErrStorageFailed
	}
	return false
}

// NewAppError 创建应用错误
func NewAppError(code string, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// StorageError 包装数据库访问失败
func StorageError(message string, cause error) *AppError {
	return NewAppError(CodeStorageFailed, message, cause)
}
