package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind 业务错误类别
type ErrorKind string

const (
	ErrKindValidation    ErrorKind = "validation"     // 请求参数不合法
	ErrKindNotFound      ErrorKind = "not_found"      // 目标资源不存在
	ErrKindDuplicate     ErrorKind = "duplicate"      // 唯一约束冲突（重复操作）
	ErrKindBlocked       ErrorKind = "blocked"        // 双方存在拉黑关系
	ErrKindNotAuthorized ErrorKind = "not_authorized" // 无权操作目标资源
	ErrKindInvalidState  ErrorKind = "invalid_state"  // 当前状态不允许该转换
	ErrKindTransient     ErrorKind = "transient"      // 存储/基础设施临时故障，可重试
)

// AppError 统一业务错误
// service 层返回 *AppError，handler 层根据 Kind 映射 HTTP 状态码
type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error // 底层错误（可为 nil）
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// 构造函数快捷方法

func ValidationError(msg string) *AppError {
	return &AppError{Kind: ErrKindValidation, Message: msg}
}

func NotFoundError(msg string) *AppError {
	return &AppError{Kind: ErrKindNotFound, Message: msg}
}

func DuplicateError(msg string) *AppError {
	return &AppError{Kind: ErrKindDuplicate, Message: msg}
}

func BlockedError(msg string) *AppError {
	return &AppError{Kind: ErrKindBlocked, Message: msg}
}

func NotAuthorizedError(msg string) *AppError {
	return &AppError{Kind: ErrKindNotAuthorized, Message: msg}
}

func InvalidStateError(msg string) *AppError {
	return &AppError{Kind: ErrKindInvalidState, Message: msg}
}

func TransientError(msg string, err error) *AppError {
	return &AppError{Kind: ErrKindTransient, Message: msg, Err: err}
}

// IsKind 判断错误是否属于某个业务类别
func IsKind(err error, kind ErrorKind) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

// HTTPStatus 业务错误类别到 HTTP 状态码的映射
func HTTPStatus(err error) int {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError
	}

	switch appErr.Kind {
	case ErrKindValidation:
		return http.StatusBadRequest
	case ErrKindNotFound:
		return http.StatusNotFound
	case ErrKindDuplicate:
		return http.StatusConflict
	case ErrKindBlocked, ErrKindNotAuthorized:
		return http.StatusForbidden
	case ErrKindInvalidState:
		return http.StatusConflict
	case ErrKindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
