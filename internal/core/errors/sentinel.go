package errors

// 预定义哨兵错误（用于 errors.Is 比较）
var (
	ErrConfigError  = New(CodeConfigError, "configuration error")
	ErrInvalidParam = New(CodeInvalidParam, "invalid parameter")
	ErrModeMismatch = New(CodeModeMismatch, "start mode already fixed")
	ErrInvalidState = New(CodeInvalidState, "invalid state")

	ErrNetworkError     = New(CodeNetworkError, "network error")
	ErrNetworkDown      = New(CodeNetworkDown, "network unavailable")
	ErrTimeout          = New(CodeTimeout, "operation timeout")
	ErrChannelClosed    = New(CodeChannelClosed, "channel closed")
	ErrNotConnected     = New(CodeNotConnected, "not connected")
	ErrHandshakeFailed  = New(CodeHandshakeFailed, "handshake failed")
	ErrProxyAuthFailed  = New(CodeProxyAuthFailed, "proxy authentication failed")
	ErrUnknownTransport = New(CodeUnknownTransport, "unknown transport protocol")

	ErrFrameTooLong = New(CodeFrameTooLong, "frame too long")
	ErrQueueFull    = New(CodeQueueFull, "write queue full")

	ErrCancelled     = New(CodeCancelled, "operation cancelled")
	ErrServiceClosed = New(CodeServiceClosed, "service closed")
)
