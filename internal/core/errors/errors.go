// Package errors 提供统一的错误处理机制
//
// 错误码用于日志分类与重连决策，所有错误都可以通过 errors.Is() 和 errors.As() 检查。
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode 错误码类型
type ErrorCode string

// 错误码定义
const (
	// 配置与参数
	CodeConfigError  ErrorCode = "CONFIG_ERROR"
	CodeInvalidParam ErrorCode = "INVALID_PARAM"
	CodeModeMismatch ErrorCode = "MODE_MISMATCH"
	CodeInvalidState ErrorCode = "INVALID_STATE"

	// 网络与连接
	CodeNetworkError     ErrorCode = "NETWORK_ERROR"
	CodeNetworkDown      ErrorCode = "NETWORK_DOWN"
	CodeTimeout          ErrorCode = "TIMEOUT"
	CodeChannelClosed    ErrorCode = "CHANNEL_CLOSED"
	CodeNotConnected     ErrorCode = "NOT_CONNECTED"
	CodeHandshakeFailed  ErrorCode = "HANDSHAKE_FAILED"
	CodeProxyAuthFailed  ErrorCode = "PROXY_AUTH_FAILED"
	CodeUnknownTransport ErrorCode = "UNKNOWN_TRANSPORT"

	// 数据
	CodeFrameTooLong ErrorCode = "FRAME_TOO_LONG"
	CodeQueueFull    ErrorCode = "QUEUE_FULL"

	// 系统
	CodeInternal      ErrorCode = "INTERNAL_ERROR"
	CodeCancelled     ErrorCode = "CANCELLED"
	CodeServiceClosed ErrorCode = "SERVICE_CLOSED"
	CodeCleanupError  ErrorCode = "CLEANUP_ERROR"
)

// Error 统一错误类型
type Error struct {
	Code    ErrorCode // 错误码
	Message string    // 错误消息
	Cause   error     // 原始错误
}

// Error 实现 error 接口
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 支持 errors.Unwrap
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is 按错误码比较
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New 创建新错误
func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf 创建格式化错误
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap 包装错误
func Wrap(err error, code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message, Cause: err}
}

// Wrapf 格式化包装错误
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// GetCode 从错误链中提取错误码，非 *Error 返回 CodeInternal
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsCode 检查错误链中是否含有指定错误码
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsRetryable 判断失败后是否允许自动重连
//
// 代理认证失败与启动模式冲突不可重试，配置错误仍计入正常的重连周期。
func IsRetryable(err error) bool {
	if err == nil {
		return true
	}
	switch GetCode(err) {
	case CodeProxyAuthFailed, CodeModeMismatch:
		return false
	default:
		return true
	}
}

// Is 重导出 errors.Is
var Is = errors.Is

// As 重导出 errors.As
var As = errors.As

// Join 重导出 errors.Join
var Join = errors.Join
