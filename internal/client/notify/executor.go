// Package notify 会话状态通知的投递：执行器与监听器分发
package notify

import (
	"context"

	corelog "proxylink/internal/core/log"
	"proxylink/internal/core/safe"
)

// DefaultQueueSize 默认通知队列长度
const DefaultQueueSize = 128

// Executor 回调执行面，调用方的回调都经由它投递
type Executor interface {
	Execute(fn func())
}

// ExecutorFunc 函数形式的 Executor
type ExecutorFunc func(fn func())

// Execute 实现 Executor
func (f ExecutorFunc) Execute(fn func()) {
	f(fn)
}

// Inline 在调用方协程上直接执行
var Inline Executor = ExecutorFunc(func(fn func()) { fn() })

// SerialExecutor 单 worker 串行执行器，按提交顺序执行
type SerialExecutor struct {
	ctx  context.Context
	pool *safe.Pool
}

// NewSerialExecutor 创建串行执行器，ctx 取消后停止
func NewSerialExecutor(ctx context.Context) *SerialExecutor {
	if ctx == nil {
		ctx = context.Background()
	}
	return &SerialExecutor{
		ctx:  ctx,
		pool: safe.NewPool(ctx, "session-notify", 1, DefaultQueueSize),
	}
}

// Execute 实现 Executor，队列满时等待空位
func (e *SerialExecutor) Execute(fn func()) {
	if err := e.pool.SubmitWait(e.ctx, fn); err != nil {
		corelog.Debugf("Notify: callback dropped: %v", err)
	}
}

// Close 停止执行器，未执行的回调被丢弃
func (e *SerialExecutor) Close() {
	e.pool.Close()
}
