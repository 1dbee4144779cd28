// Package dispose 提供带上下文的资源生命周期管理
//
// Dispose 持有一个可取消的 context 与一组清理函数；Close 或父 context 取消时，
// 清理函数按注册的逆序各执行一次。
package dispose

import (
	"context"
	"fmt"
	"sync"

	corelog "proxylink/internal/core/log"
)

// DisposeError 清理过程中的错误信息
type DisposeError struct {
	HandlerIndex int
	ResourceName string
	Err          error
}

func (e *DisposeError) Error() string {
	if e.ResourceName != "" {
		return fmt.Sprintf("cleanup resource[%s] handler[%d] failed: %v", e.ResourceName, e.HandlerIndex, e.Err)
	}
	return fmt.Sprintf("cleanup handler[%d] failed: %v", e.HandlerIndex, e.Err)
}

func (e *DisposeError) Unwrap() error {
	return e.Err
}

// DisposeResult 清理结果
type DisposeResult struct {
	Errors         []*DisposeError
	ActualDisposal bool // 本次调用是否实际执行了释放
}

// HasErrors 是否存在清理错误
func (r *DisposeResult) HasErrors() bool {
	return len(r.Errors) > 0
}

func (r *DisposeResult) Error() string {
	if !r.HasErrors() {
		return ""
	}
	return fmt.Sprintf("dispose cleanup failed with %d errors", len(r.Errors))
}

// Dispose 资源管理结构体
type Dispose struct {
	mu       sync.Mutex
	name     string
	closed   bool
	ctx      context.Context
	cancel   context.CancelFunc
	handlers []func() error
	errors   []*DisposeError
	done     chan struct{}
}

// NewDispose 创建绑定父 context 的 Dispose
func NewDispose(parent context.Context, name string) *Dispose {
	d := &Dispose{}
	d.SetCtx(parent, name)
	return d
}

// SetCtx 绑定父 context，只能调用一次
func (d *Dispose) SetCtx(parent context.Context, name string) {
	d.mu.Lock()
	if d.ctx != nil {
		d.mu.Unlock()
		corelog.Warnf("Dispose: ctx of %s already set", d.name)
		return
	}
	if parent == nil {
		parent = context.Background()
	}
	d.name = name
	d.ctx, d.cancel = context.WithCancel(parent)
	d.done = make(chan struct{})
	ctx := d.ctx
	d.mu.Unlock()

	go func() {
		<-ctx.Done()
		d.Close()
	}()
}

// Ctx 返回资源的 context，Close 后被取消
func (d *Dispose) Ctx() context.Context {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctx == nil {
		return context.Background()
	}
	return d.ctx
}

// Name 资源名称
func (d *Dispose) Name() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.name
}

// Done 清理完成后关闭
func (d *Dispose) Done() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.done == nil {
		d.done = make(chan struct{})
	}
	return d.done
}

// IsClosed 是否已关闭
func (d *Dispose) IsClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// AddCleanHandler 注册清理函数；已关闭时立即执行
func (d *Dispose) AddCleanHandler(f func() error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		if err := f(); err != nil {
			corelog.Errorf("Dispose: late cleanup handler of %s failed: %v", d.name, err)
		}
		return
	}
	d.handlers = append(d.handlers, f)
	d.mu.Unlock()
}

// Close 取消 context 并执行清理函数，重复调用返回首次的结果
func (d *Dispose) Close() *DisposeResult {
	d.mu.Lock()
	if d.closed {
		errs := d.errors
		d.mu.Unlock()
		return &DisposeResult{Errors: errs}
	}
	d.closed = true
	handlers := d.handlers
	d.handlers = nil
	cancel := d.cancel
	if d.done == nil {
		d.done = make(chan struct{})
	}
	done := d.done
	name := d.name
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	result := &DisposeResult{ActualDisposal: true}
	for i := len(handlers) - 1; i >= 0; i-- {
		if err := handlers[i](); err != nil {
			de := &DisposeError{HandlerIndex: i, ResourceName: name, Err: err}
			result.Errors = append(result.Errors, de)
			corelog.Errorf("Dispose: %v", de)
		}
	}

	d.mu.Lock()
	d.errors = result.Errors
	d.mu.Unlock()
	close(done)
	return result
}
